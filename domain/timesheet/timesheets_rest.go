package timesheet

import (
	"net/http"
	"worklog/bizerror"
	"worklog/common"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

const PathTimesheets = "/v1/timesheets"

func RegisterTimesheetsRestAPI(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group(PathTimesheets, middleWares...)
	g.POST("", handleCreateTimesheet)
	g.GET("", handleQueryTimesheets)
	g.GET(":id", handleDetailTimesheet)
	g.PUT(":id", handleUpdateTimesheet)
	g.DELETE(":id", handleDeleteTimesheet)

	g.POST(":id/submit", handleSubmitTimesheet)
	g.POST(":id/approve", handleApproveTimesheet)
	g.POST(":id/reject", handleRejectTimesheet)

	g.GET(":id/events", handleTimesheetEvents)
}

func handleCreateTimesheet(c *gin.Context) {
	creation := TimesheetCreation{}
	if err := c.ShouldBindBodyWith(&creation, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	record, err := CreateTimesheetFunc(c.Request.Context(), &creation)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, record)
}

func handleQueryTimesheets(c *gin.Context) {
	query := TimesheetQuery{}
	if err := c.ShouldBindQuery(&query); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	records, err := QueryTimesheetsFunc(c.Request.Context(), &query)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, &common.PagedBody{List: records, Total: uint64(len(records))})
}

func handleDetailTimesheet(c *gin.Context) {
	record, err := DetailTimesheetFunc(c.Request.Context(), parseIdParam(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, record)
}

func handleUpdateTimesheet(c *gin.Context) {
	updating := TimesheetUpdating{}
	if err := c.ShouldBindBodyWith(&updating, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	record, err := UpdateTimesheetFunc(c.Request.Context(), parseIdParam(c), &updating)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, record)
}

func handleDeleteTimesheet(c *gin.Context) {
	if err := DeleteTimesheetFunc(c.Request.Context(), parseIdParam(c)); err != nil {
		panic(err)
	}
	c.Status(http.StatusNoContent)
}

func handleSubmitTimesheet(c *gin.Context) {
	record, err := SubmitTimesheetFunc(c.Request.Context(), parseIdParam(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, record)
}

func handleApproveTimesheet(c *gin.Context) {
	record, err := ApproveTimesheetFunc(c.Request.Context(), parseIdParam(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, record)
}

func handleRejectTimesheet(c *gin.Context) {
	rejection := RejectionReq{}
	if err := c.ShouldBindBodyWith(&rejection, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	record, err := RejectTimesheetFunc(c.Request.Context(), parseIdParam(c), &rejection)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, record)
}

func handleTimesheetEvents(c *gin.Context) {
	records, err := TimesheetEventsFunc(c.Request.Context(), parseIdParam(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, &common.PagedBody{List: records, Total: uint64(len(records))})
}

func parseIdParam(c *gin.Context) types.ID {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	return id
}
