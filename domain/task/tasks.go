package task

import (
	"context"
	"worklog/bizerror"
	"worklog/common"
	"worklog/domain/employee"
	"worklog/domain/project"
	"worklog/persistence"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

type Task struct {
	ID types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`

	ProjectID       types.ID    `json:"projectId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Name            string      `json:"name" sql:"type:VARCHAR(255) NOT NULL"`
	Description     string      `json:"description" sql:"type:VARCHAR(1000)"`
	ExpectedOutcome string      `json:"expectedOutcome" sql:"type:VARCHAR(1000)"`
	StartDate       common.Date `json:"startDate" sql:"type:DATE"`
	CompletionDate  common.Date `json:"completionDate" sql:"type:DATE"`
	EstimatedHours  float64     `json:"estimatedHours" sql:"type:DECIMAL(7,2)"`
	ActualHours     float64     `json:"actualHours" sql:"type:DECIMAL(7,2)"`
	AssigneeID      string      `json:"assigneeId" sql:"type:VARCHAR(50)"`

	CreatedBy     string          `json:"createdBy" sql:"type:VARCHAR(50)"`
	LastUpdatedBy string          `json:"lastUpdatedBy" sql:"type:VARCHAR(50)"`
	CreateTime    types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
	UpdateTime    types.Timestamp `json:"updateTime" sql:"type:DATETIME(6)"`
}

type TaskCreation struct {
	ProjectID       types.ID    `json:"projectId" binding:"required"`
	Name            string      `json:"name" binding:"required,lte=255"`
	Description     string      `json:"description" binding:"lte=1000"`
	ExpectedOutcome string      `json:"expectedOutcome" binding:"lte=1000"`
	StartDate       common.Date `json:"startDate"`
	CompletionDate  common.Date `json:"completionDate"`
	EstimatedHours  float64     `json:"estimatedHours"`
	ActualHours     float64     `json:"actualHours"`
	AssigneeID      string      `json:"assigneeId" binding:"lte=50"`

	CreatedBy string `json:"createdBy" binding:"lte=50"`
}

// TaskUpdating is a partial patch; the owning project can not change.
type TaskUpdating struct {
	Name            string      `json:"name" binding:"lte=255"`
	Description     string      `json:"description" binding:"lte=1000"`
	ExpectedOutcome string      `json:"expectedOutcome" binding:"lte=1000"`
	StartDate       common.Date `json:"startDate"`
	CompletionDate  common.Date `json:"completionDate"`
	EstimatedHours  float64     `json:"estimatedHours"`
	ActualHours     float64     `json:"actualHours"`
	AssigneeID      string      `json:"assigneeId" binding:"lte=50"`

	LastUpdatedBy string `json:"lastUpdatedBy" binding:"lte=50"`
}

type TaskQuery struct {
	ProjectID types.ID `json:"projectId" form:"projectId"`
}

var (
	idWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	CreateTaskFunc = CreateTask
	DetailTaskFunc = DetailTask
	QueryTasksFunc = QueryTasks
	UpdateTaskFunc = UpdateTask
	DeleteTaskFunc = DeleteTask

	FindTaskFunc = FindTask

	DeleteCheckFuncs []func(t Task, tx *gorm.DB) error
)

// FindTask loads a task by id, returning nil when absent.
func FindTask(id types.ID, tx *gorm.DB) (*Task, error) {
	var t Task
	if err := tx.Where(&Task{ID: id}).First(&t).Error; err == gorm.ErrRecordNotFound {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return &t, nil
}

// IsEmployeeReferencedByTask blocks employee deletion while the employee is
// still assigned to a task or named in its audit fields.
func IsEmployeeReferencedByTask(e employee.Employee, tx *gorm.DB) error {
	var t Task
	err := tx.Where("assignee_id = ? OR created_by = ? OR last_updated_by = ?", e.EmpID, e.EmpID, e.EmpID).
		First(&t).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	} else if err != nil {
		return err
	}
	return &bizerror.ErrDependencyExists{Entity: "employee " + e.EmpID, Dependents: []string{"tasks"}}
}

// IsProjectReferencedByTask blocks project deletion while tasks remain.
func IsProjectReferencedByTask(p project.Project, tx *gorm.DB) error {
	var t Task
	if err := tx.Where(&Task{ProjectID: p.ID}).First(&t).Error; err == gorm.ErrRecordNotFound {
		return nil
	} else if err != nil {
		return err
	}
	return &bizerror.ErrDependencyExists{Entity: "project " + p.ID.String(), Dependents: []string{"tasks"}}
}

func CreateTask(ctx context.Context, c *TaskCreation) (*Task, error) {
	r := &Task{
		ID:              common.NextId(idWorker),
		ProjectID:       c.ProjectID,
		Name:            c.Name,
		Description:     c.Description,
		ExpectedOutcome: c.ExpectedOutcome,
		StartDate:       c.StartDate,
		CompletionDate:  c.CompletionDate,
		EstimatedHours:  c.EstimatedHours,
		ActualHours:     c.ActualHours,
		AssigneeID:      c.AssigneeID,

		CreatedBy:  c.CreatedBy,
		CreateTime: types.CurrentTimestamp(),
	}

	err := persistence.ActiveDataSourceManager.GormDB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := validateTask(r, tx); err != nil {
			return err
		}
		if err := employee.CheckEmployeeRef("created by", r.CreatedBy, tx); err != nil {
			return err
		}
		return tx.Create(r).Error
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func DetailTask(ctx context.Context, id types.ID) (*Task, error) {
	var t Task
	if err := persistence.ActiveDataSourceManager.GormDB(ctx).
		Where(&Task{ID: id}).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func QueryTasks(ctx context.Context, q *TaskQuery) ([]Task, error) {
	tasks := []Task{}
	db := persistence.ActiveDataSourceManager.GormDB(ctx).Order("ID ASC")
	if q.ProjectID != 0 {
		db = db.Where("project_id = ?", q.ProjectID)
	}
	if err := db.Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func UpdateTask(ctx context.Context, id types.ID, u *TaskUpdating) (*Task, error) {
	var merged Task
	err := persistence.ActiveDataSourceManager.GormDB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(&Task{ID: id}).First(&merged).Error; err != nil {
			return err
		}

		if u.Name != "" {
			merged.Name = u.Name
		}
		if u.Description != "" {
			merged.Description = u.Description
		}
		if u.ExpectedOutcome != "" {
			merged.ExpectedOutcome = u.ExpectedOutcome
		}
		if !u.StartDate.IsZero() {
			merged.StartDate = u.StartDate
		}
		if !u.CompletionDate.IsZero() {
			merged.CompletionDate = u.CompletionDate
		}
		if u.EstimatedHours != 0 {
			merged.EstimatedHours = u.EstimatedHours
		}
		if u.ActualHours != 0 {
			merged.ActualHours = u.ActualHours
		}
		if u.AssigneeID != "" {
			merged.AssigneeID = u.AssigneeID
		}
		merged.LastUpdatedBy = u.LastUpdatedBy
		merged.UpdateTime = types.CurrentTimestamp()

		if err := validateTask(&merged, tx); err != nil {
			return err
		}
		if err := employee.CheckEmployeeRef("last updated by", merged.LastUpdatedBy, tx); err != nil {
			return err
		}

		return tx.Model(&Task{}).Where(&Task{ID: id}).Update(map[string]interface{}{
			"name": merged.Name, "description": merged.Description,
			"expected_outcome": merged.ExpectedOutcome,
			"start_date":       merged.StartDate, "completion_date": merged.CompletionDate,
			"estimated_hours": merged.EstimatedHours, "actual_hours": merged.ActualHours,
			"assignee_id":     merged.AssigneeID,
			"last_updated_by": merged.LastUpdatedBy, "update_time": merged.UpdateTime,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &merged, nil
}

func DeleteTask(ctx context.Context, id types.ID) error {
	return persistence.ActiveDataSourceManager.GormDB(ctx).Transaction(func(tx *gorm.DB) error {
		var t Task
		if err := tx.Where(&Task{ID: id}).First(&t).Error; err != nil {
			return err
		}
		for _, f := range DeleteCheckFuncs {
			if err := f(t, tx); err != nil {
				return err
			}
		}
		return tx.Delete(Task{}, "id = ?", id).Error
	})
}

func validateTask(t *Task, tx *gorm.DB) error {
	if t.Name == "" {
		return &bizerror.ErrValidation{Message: "task name is required"}
	}
	if t.ProjectID == 0 {
		return &bizerror.ErrValidation{Message: "project id is required"}
	}
	if !t.StartDate.IsZero() && !t.CompletionDate.IsZero() && t.StartDate.After(t.CompletionDate) {
		return &bizerror.ErrValidation{Message: "task start date can not be after completion date"}
	}
	if t.EstimatedHours < 0 {
		return &bizerror.ErrValidation{Message: "estimated hours can not be negative"}
	}
	if t.ActualHours < 0 {
		return &bizerror.ErrValidation{Message: "actual hours can not be negative"}
	}

	p, err := project.FindProjectFunc(t.ProjectID, tx)
	if err != nil {
		return err
	}
	if p == nil {
		return &bizerror.ErrValidation{Message: "project with id '" + t.ProjectID.String() + "' does not exist"}
	}

	return employee.CheckEmployeeRef("assignee", t.AssigneeID, tx)
}
