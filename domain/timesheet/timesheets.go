package timesheet

import (
	"context"
	"fmt"
	"strconv"
	"worklog/bizerror"
	"worklog/common"
	"worklog/domain/employee"
	"worklog/domain/project"
	"worklog/domain/state"
	"worklog/domain/task"
	"worklog/event"
	"worklog/persistence"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

// MaxDailyHours caps the total effort an employee may log per calendar day,
// across all entries.
const MaxDailyHours = 24

// EventSourceType tags timesheet records in the audit trail.
const EventSourceType = "timesheet"

const (
	ActionSubmit  = "submit"
	ActionApprove = "approve"
	ActionReject  = "reject"
	ActionReopen  = "reopen"
)

var (
	StateSaved     = state.State{Name: "Saved", Category: state.Draft}
	StateSubmitted = state.State{Name: "Submitted", Category: state.InReview}
	StateApproved  = state.State{Name: "Approved", Category: state.Done}
	StateRejected  = state.State{Name: "Rejected", Category: state.Returned}

	TimesheetStateMachine = state.NewStateMachine(
		[]state.State{StateSaved, StateSubmitted, StateApproved, StateRejected},
		[]state.Transition{
			{Name: ActionSubmit, From: StateSaved, To: StateSubmitted},
			{Name: ActionApprove, From: StateSubmitted, To: StateApproved},
			{Name: ActionReject, From: StateSubmitted, To: StateRejected},
			{Name: ActionReopen, From: StateRejected, To: StateSaved},
		})
)

type Timesheet struct {
	ID types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`

	EntryDate common.Date `json:"entryDate" gorm:"index:idx_employee_date" sql:"type:DATE NOT NULL"`
	ProjectID types.ID    `json:"projectId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	// ProjectName is denormalized from the project record and healed on
	// every validation when it diverges.
	ProjectName   string   `json:"projectName" sql:"type:VARCHAR(255)"`
	TaskID        types.ID `json:"taskId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	EmployeeID    string   `json:"employeeId" gorm:"index:idx_employee_date" sql:"type:VARCHAR(50) NOT NULL"`
	EffortInHours float64  `json:"effortInHours" sql:"type:DECIMAL(5,2) NOT NULL"`
	Description   string   `json:"description" sql:"type:VARCHAR(1000)"`

	Status          string `json:"status" sql:"type:VARCHAR(20) NOT NULL"`
	ManagerComments string `json:"managerComments" sql:"type:VARCHAR(500)"`

	CreatedBy     string          `json:"createdBy" sql:"type:VARCHAR(50)"`
	LastUpdatedBy string          `json:"lastUpdatedBy" sql:"type:VARCHAR(50)"`
	CreateTime    types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
	UpdateTime    types.Timestamp `json:"updateTime" sql:"type:DATETIME(6)"`
}

type TimesheetCreation struct {
	EntryDate     common.Date `json:"entryDate"`
	ProjectID     types.ID    `json:"projectId"`
	ProjectName   string      `json:"projectName" binding:"lte=255"`
	TaskID        types.ID    `json:"taskId"`
	EmployeeID    string      `json:"employeeId" binding:"lte=50"`
	EffortInHours float64     `json:"effortInHours"`
	Description   string      `json:"description" binding:"lte=1000"`
	Status        string      `json:"status"`

	CreatedBy string `json:"createdBy" binding:"lte=50"`
}

// TimesheetUpdating is a partial patch. It carries no status: transitions go
// through the submit/approve/reject actions only.
type TimesheetUpdating struct {
	EntryDate     common.Date `json:"entryDate"`
	ProjectID     types.ID    `json:"projectId"`
	ProjectName   string      `json:"projectName" binding:"lte=255"`
	TaskID        types.ID    `json:"taskId"`
	EmployeeID    string      `json:"employeeId" binding:"lte=50"`
	EffortInHours float64     `json:"effortInHours"`
	Description   string      `json:"description" binding:"lte=1000"`

	LastUpdatedBy string `json:"lastUpdatedBy" binding:"lte=50"`
}

type TimesheetQuery struct {
	EmployeeID string   `json:"employeeId" form:"employeeId"`
	ProjectID  types.ID `json:"projectId" form:"projectId"`
	Status     string   `json:"status" form:"status"`
	StartDate  string   `json:"startDate" form:"startDate"`
	EndDate    string   `json:"endDate" form:"endDate"`
}

type RejectionReq struct {
	Reason string `json:"reason" binding:"required,lte=500"`
}

var (
	idWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	CreateTimesheetFunc  = CreateTimesheet
	DetailTimesheetFunc  = DetailTimesheet
	QueryTimesheetsFunc  = QueryTimesheets
	UpdateTimesheetFunc  = UpdateTimesheet
	DeleteTimesheetFunc  = DeleteTimesheet
	SubmitTimesheetFunc  = SubmitTimesheet
	ApproveTimesheetFunc = ApproveTimesheet
	RejectTimesheetFunc  = RejectTimesheet

	TimesheetEventsFunc = TimesheetEvents
)

// IsEmployeeReferencedByTimesheet blocks employee deletion while timesheet
// entries name the employee.
func IsEmployeeReferencedByTimesheet(e employee.Employee, tx *gorm.DB) error {
	var t Timesheet
	err := tx.Where("employee_id = ? OR created_by = ? OR last_updated_by = ?", e.EmpID, e.EmpID, e.EmpID).
		First(&t).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	} else if err != nil {
		return err
	}
	return &bizerror.ErrDependencyExists{Entity: "employee " + e.EmpID, Dependents: []string{"timesheets"}}
}

func IsProjectReferencedByTimesheet(p project.Project, tx *gorm.DB) error {
	var t Timesheet
	if err := tx.Where(&Timesheet{ProjectID: p.ID}).First(&t).Error; err == gorm.ErrRecordNotFound {
		return nil
	} else if err != nil {
		return err
	}
	return &bizerror.ErrDependencyExists{Entity: "project " + p.ID.String(), Dependents: []string{"timesheets"}}
}

func IsTaskReferencedByTimesheet(t task.Task, tx *gorm.DB) error {
	var ts Timesheet
	if err := tx.Where(&Timesheet{TaskID: t.ID}).First(&ts).Error; err == gorm.ErrRecordNotFound {
		return nil
	} else if err != nil {
		return err
	}
	return &bizerror.ErrDependencyExists{Entity: "task " + t.ID.String(), Dependents: []string{"timesheets"}}
}

func CreateTimesheet(ctx context.Context, c *TimesheetCreation) (*Timesheet, error) {
	r := &Timesheet{
		ID:            common.NextId(idWorker),
		EntryDate:     c.EntryDate,
		ProjectID:     c.ProjectID,
		ProjectName:   c.ProjectName,
		TaskID:        c.TaskID,
		EmployeeID:    c.EmployeeID,
		EffortInHours: c.EffortInHours,
		Description:   c.Description,
		Status:        c.Status,

		CreatedBy:  c.CreatedBy,
		CreateTime: types.CurrentTimestamp(),
	}
	if r.Status == "" {
		r.Status = StateSaved.Name
	}

	err := persistence.ActiveDataSourceManager.GormDB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := validateTimesheet(r, 0, tx); err != nil {
			return err
		}
		if err := employee.CheckEmployeeRef("created by", r.CreatedBy, tx); err != nil {
			return err
		}
		if err := tx.Create(r).Error; err != nil {
			return err
		}
		return event.CreateEvent(EventSourceType, r.ID, eventDesc(r),
			event.EventCategoryCreated, nil, r.CreatedBy, tx)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func DetailTimesheet(ctx context.Context, id types.ID) (*Timesheet, error) {
	var t Timesheet
	if err := persistence.ActiveDataSourceManager.GormDB(ctx).
		Where(&Timesheet{ID: id}).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func QueryTimesheets(ctx context.Context, q *TimesheetQuery) ([]Timesheet, error) {
	db := persistence.ActiveDataSourceManager.GormDB(ctx).Order("entry_date ASC, ID ASC")
	if q.EmployeeID != "" {
		db = db.Where("employee_id = ?", q.EmployeeID)
	}
	if q.ProjectID != 0 {
		db = db.Where("project_id = ?", q.ProjectID)
	}
	if q.Status != "" {
		if _, found := TimesheetStateMachine.FindState(q.Status); !found {
			return nil, &bizerror.ErrBadParam{Cause: fmt.Errorf("unknown status '%s'", q.Status)}
		}
		db = db.Where("status = ?", q.Status)
	}
	if q.StartDate != "" {
		d, err := common.ParseDate(q.StartDate)
		if err != nil {
			return nil, &bizerror.ErrBadParam{Cause: err}
		}
		db = db.Where("entry_date >= ?", d)
	}
	if q.EndDate != "" {
		d, err := common.ParseDate(q.EndDate)
		if err != nil {
			return nil, &bizerror.ErrBadParam{Cause: err}
		}
		db = db.Where("entry_date <= ?", d)
	}

	timesheets := []Timesheet{}
	if err := db.Find(&timesheets).Error; err != nil {
		return nil, err
	}
	return timesheets, nil
}

func UpdateTimesheet(ctx context.Context, id types.ID, u *TimesheetUpdating) (*Timesheet, error) {
	var merged Timesheet
	err := persistence.ActiveDataSourceManager.GormDB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Set("gorm:query_option", "FOR UPDATE").
			Where(&Timesheet{ID: id}).First(&merged).Error; err != nil {
			return err
		}

		current, found := TimesheetStateMachine.FindState(merged.Status)
		if !found || !current.Category.Editable() {
			return &bizerror.ErrRecordLocked{Status: merged.Status, Action: "updated"}
		}

		if !u.EntryDate.IsZero() {
			merged.EntryDate = u.EntryDate
		}
		if u.ProjectID != 0 {
			merged.ProjectID = u.ProjectID
		}
		if u.ProjectName != "" {
			merged.ProjectName = u.ProjectName
		}
		if u.TaskID != 0 {
			merged.TaskID = u.TaskID
		}
		if u.EmployeeID != "" {
			merged.EmployeeID = u.EmployeeID
		}
		if u.EffortInHours != 0 {
			merged.EffortInHours = u.EffortInHours
		}
		if u.Description != "" {
			merged.Description = u.Description
		}
		// editing a rejected entry re-enters the draft state; the manager
		// comments stay visible until the next review
		if merged.Status == StateRejected.Name {
			merged.Status = StateSaved.Name
		}
		merged.LastUpdatedBy = u.LastUpdatedBy
		merged.UpdateTime = types.CurrentTimestamp()

		if err := validateTimesheet(&merged, id, tx); err != nil {
			return err
		}
		if err := employee.CheckEmployeeRef("last updated by", merged.LastUpdatedBy, tx); err != nil {
			return err
		}

		return tx.Model(&Timesheet{}).Where(&Timesheet{ID: id}).Update(map[string]interface{}{
			"entry_date": merged.EntryDate, "project_id": merged.ProjectID,
			"project_name": merged.ProjectName, "task_id": merged.TaskID,
			"employee_id": merged.EmployeeID, "effort_in_hours": merged.EffortInHours,
			"description": merged.Description, "status": merged.Status,
			"last_updated_by": merged.LastUpdatedBy, "update_time": merged.UpdateTime,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &merged, nil
}

func DeleteTimesheet(ctx context.Context, id types.ID) error {
	return persistence.ActiveDataSourceManager.GormDB(ctx).Transaction(func(tx *gorm.DB) error {
		var t Timesheet
		if err := tx.Where(&Timesheet{ID: id}).First(&t).Error; err != nil {
			return err
		}
		current, found := TimesheetStateMachine.FindState(t.Status)
		if !found || !current.Category.Editable() {
			return &bizerror.ErrRecordLocked{Status: t.Status, Action: "deleted"}
		}
		if err := tx.Delete(Timesheet{}, "id = ?", id).Error; err != nil {
			return err
		}
		return event.CreateEvent(EventSourceType, id, eventDesc(&t),
			event.EventCategoryDeleted, nil, t.LastUpdatedBy, tx)
	})
}

func SubmitTimesheet(ctx context.Context, id types.ID) (*Timesheet, error) {
	return transitionTimesheet(ctx, id, ActionSubmit, "")
}

func ApproveTimesheet(ctx context.Context, id types.ID) (*Timesheet, error) {
	return transitionTimesheet(ctx, id, ActionApprove, "")
}

func RejectTimesheet(ctx context.Context, id types.ID, r *RejectionReq) (*Timesheet, error) {
	if r == nil || r.Reason == "" {
		return nil, &bizerror.ErrValidation{Message: "a rejection reason is required"}
	}
	return transitionTimesheet(ctx, id, ActionReject, r.Reason)
}

func transitionTimesheet(ctx context.Context, id types.ID, action, comments string) (*Timesheet, error) {
	t, found := TimesheetStateMachine.FindTransition(action)
	if !found {
		return nil, &bizerror.ErrValidation{Message: "unknown workflow action '" + action + "'"}
	}

	var updated Timesheet
	err := persistence.ActiveDataSourceManager.GormDB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Set("gorm:query_option", "FOR UPDATE").
			Where(&Timesheet{ID: id}).First(&updated).Error; err != nil {
			return err
		}
		if updated.Status != t.From.Name {
			return &bizerror.ErrInvalidStateTransition{Current: updated.Status, Requested: t.To.Name}
		}

		now := types.CurrentTimestamp()
		updates := map[string]interface{}{"status": t.To.Name, "update_time": now}
		if action == ActionReject {
			updates["manager_comments"] = comments
		}

		q := tx.Model(&Timesheet{}).Where("id = ? AND status = ?", id, t.From.Name).Update(updates)
		if err := q.Error; err != nil {
			return err
		}
		if q.RowsAffected != 1 {
			return fmt.Errorf("expected affected row is 1, but actual is " + strconv.FormatInt(q.RowsAffected, 10))
		}

		if err := event.CreateEvent(EventSourceType, id, eventDesc(&updated),
			event.EventCategoryStatusTransited,
			[]event.UpdatedProperty{{PropertyName: "status", OldValue: t.From.Name, NewValue: t.To.Name}},
			updated.LastUpdatedBy, tx); err != nil {
			return err
		}

		updated.Status = t.To.Name
		updated.UpdateTime = now
		if action == ActionReject {
			updated.ManagerComments = comments
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// validateTimesheet runs the full rule sequence against the (merged) entry.
// It must run inside the same transaction as the following write: the
// employee row is read FOR UPDATE so concurrent entries for one employee
// serialize on the daily-cap check.
func validateTimesheet(ts *Timesheet, excludeId types.ID, tx *gorm.DB) error {
	if ts.EntryDate.IsZero() {
		return &bizerror.ErrValidation{Message: "timesheet date is required"}
	}
	if ts.EntryDate.After(common.Today()) {
		return &bizerror.ErrValidation{Message: "timesheet date can not be in the future"}
	}

	if ts.ProjectID == 0 {
		return &bizerror.ErrValidation{Message: "project id is required"}
	}
	if ts.TaskID == 0 {
		return &bizerror.ErrValidation{Message: "task id is required"}
	}
	if ts.EmployeeID == "" {
		return &bizerror.ErrValidation{Message: "employee id is required"}
	}

	if ts.EffortInHours <= 0 {
		return &bizerror.ErrValidation{Message: "effort in hours must be a positive number"}
	}
	if ts.EffortInHours > MaxDailyHours {
		return &bizerror.ErrValidation{Message: "effort in hours can not exceed 24 for a single entry"}
	}

	var emp employee.Employee
	err := tx.Set("gorm:query_option", "FOR UPDATE").
		Where(&employee.Employee{EmpID: ts.EmployeeID}).First(&emp).Error
	if err == gorm.ErrRecordNotFound {
		return &bizerror.ErrValidation{Message: "employee with emp id '" + ts.EmployeeID + "' does not exist"}
	} else if err != nil {
		return err
	}

	p, err := project.FindProjectFunc(ts.ProjectID, tx)
	if err != nil {
		return err
	}
	if p == nil {
		return &bizerror.ErrValidation{Message: "project with id '" + ts.ProjectID.String() + "' does not exist"}
	}
	if p.Status == project.StatusCompleted {
		return &bizerror.ErrValidation{Message: "can not log time against completed project '" + p.Name + "'"}
	}
	if ts.ProjectName != p.Name {
		common.Log.Warnf("timesheet project name '%s' does not match project %s, healing to '%s'",
			ts.ProjectName, ts.ProjectID.String(), p.Name)
		ts.ProjectName = p.Name
	}

	t, err := task.FindTaskFunc(ts.TaskID, tx)
	if err != nil {
		return err
	}
	if t == nil {
		return &bizerror.ErrValidation{Message: "task with id '" + ts.TaskID.String() + "' does not exist"}
	}
	if t.ProjectID != ts.ProjectID {
		return &bizerror.ErrValidation{Message: "task '" + ts.TaskID.String() +
			"' does not belong to project '" + ts.ProjectID.String() + "'"}
	}

	logged, err := loggedHours(tx, ts.EmployeeID, ts.EntryDate, excludeId)
	if err != nil {
		return err
	}
	if logged+ts.EffortInHours > MaxDailyHours {
		return &bizerror.ErrValidation{Message: fmt.Sprintf(
			"total hours for employee '%s' on %s can not exceed 24: already logged %v, attempted total %v",
			ts.EmployeeID, ts.EntryDate.String(), logged, logged+ts.EffortInHours)}
	}

	if _, found := TimesheetStateMachine.FindState(ts.Status); !found {
		return &bizerror.ErrValidation{Message: "invalid timesheet status '" + ts.Status +
			"', must be one of: Saved, Submitted, Approved, Rejected"}
	}

	if len(ts.Description) > 1000 {
		return &bizerror.ErrValidation{Message: "description can not exceed 1000 characters"}
	}
	if len(ts.ManagerComments) > 500 {
		return &bizerror.ErrValidation{Message: "manager comments can not exceed 500 characters"}
	}
	return nil
}

// TimesheetEvents lists the audit trail of one timesheet entry. The trail of
// a deleted entry stays readable; an id that never existed is not found.
func TimesheetEvents(ctx context.Context, id types.ID) ([]event.EventRecord, error) {
	db := persistence.ActiveDataSourceManager.GormDB(ctx)
	records, err := event.QueryEvents(EventSourceType, id, db)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		var t Timesheet
		if err := db.Where(&Timesheet{ID: id}).First(&t).Error; err != nil {
			return nil, err
		}
	}
	return records, nil
}

func eventDesc(t *Timesheet) string {
	return fmt.Sprintf("%s %s %vh", t.EmployeeID, t.EntryDate.String(), t.EffortInHours)
}

func loggedHours(tx *gorm.DB, empId string, date common.Date, excludeId types.ID) (float64, error) {
	row := struct{ Total float64 }{}
	q := tx.Model(&Timesheet{}).Select("COALESCE(SUM(effort_in_hours), 0) AS total").
		Where("employee_id = ? AND entry_date = ?", empId, date)
	if excludeId != 0 {
		q = q.Where("id != ?", excludeId)
	}
	if err := q.Scan(&row).Error; err != nil {
		return 0, err
	}
	return row.Total, nil
}
