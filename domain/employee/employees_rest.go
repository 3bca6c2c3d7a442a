package employee

import (
	"errors"
	"net/http"
	"worklog/bizerror"
	"worklog/common"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

var PathEmployees = "/v1/employees"

func RegisterEmployeesRestAPI(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group(PathEmployees, middleWares...)

	g.GET("", handleQueryEmployees)
	g.POST("", handleCreateEmployee)
	g.GET(":id", handleDetailEmployee)
	g.PUT(":id", handleUpdateEmployee)
	g.DELETE(":id", handleDeleteEmployee)
}

func handleCreateEmployee(c *gin.Context) {
	creation := EmployeeCreation{}
	if err := c.ShouldBindBodyWith(&creation, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	record, err := CreateEmployeeFunc(c.Request.Context(), &creation)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, record)
}

func handleQueryEmployees(c *gin.Context) {
	records, err := QueryEmployeesFunc(c.Request.Context())
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, &common.PagedBody{List: records, Total: uint64(len(records))})
}

func handleDetailEmployee(c *gin.Context) {
	record, err := DetailEmployeeFunc(c.Request.Context(), parseIdParam(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, record)
}

func handleUpdateEmployee(c *gin.Context) {
	updating := EmployeeUpdating{}
	if err := c.ShouldBindBodyWith(&updating, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	record, err := UpdateEmployeeFunc(c.Request.Context(), parseIdParam(c), &updating)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, record)
}

func handleDeleteEmployee(c *gin.Context) {
	if err := DeleteEmployeeFunc(c.Request.Context(), parseIdParam(c)); err != nil {
		panic(err)
	}
	c.Status(http.StatusNoContent)
}

func parseIdParam(c *gin.Context) types.ID {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: errors.New("invalid id '" + c.Param("id") + "'")})
	}
	return id
}
