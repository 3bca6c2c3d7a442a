package project

import (
	"context"
	"worklog/bizerror"
	"worklog/common"
	"worklog/domain/employee"
	"worklog/persistence"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

const (
	StatusOpen       = "open"
	StatusInProgress = "inprogress"
	StatusCompleted  = "completed"
)

var statuses = []string{StatusOpen, StatusInProgress, StatusCompleted}

type Project struct {
	ID types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`

	Name        string `json:"name" sql:"type:VARCHAR(255) NOT NULL"`
	Description string `json:"description" sql:"type:VARCHAR(1000)"`
	Status      string `json:"status" sql:"type:VARCHAR(20) NOT NULL"`

	DevStartDate common.Date `json:"devStartDate" sql:"type:DATE"`
	DevEndDate   common.Date `json:"devEndDate" sql:"type:DATE"`
	QaStartDate  common.Date `json:"qaStartDate" sql:"type:DATE"`
	QaEndDate    common.Date `json:"qaEndDate" sql:"type:DATE"`
	UitStartDate common.Date `json:"uitStartDate" sql:"type:DATE"`
	UitEndDate   common.Date `json:"uitEndDate" sql:"type:DATE"`
	GoLiveDate   common.Date `json:"goLiveDate" sql:"type:DATE"`

	CreatedBy     string          `json:"createdBy" sql:"type:VARCHAR(50)"`
	LastUpdatedBy string          `json:"lastUpdatedBy" sql:"type:VARCHAR(50)"`
	CreateTime    types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
	UpdateTime    types.Timestamp `json:"updateTime" sql:"type:DATETIME(6)"`
}

type ProjectCreation struct {
	Name        string `json:"name" binding:"required,lte=255"`
	Description string `json:"description" binding:"lte=1000"`
	Status      string `json:"status"`

	DevStartDate common.Date `json:"devStartDate"`
	DevEndDate   common.Date `json:"devEndDate"`
	QaStartDate  common.Date `json:"qaStartDate"`
	QaEndDate    common.Date `json:"qaEndDate"`
	UitStartDate common.Date `json:"uitStartDate"`
	UitEndDate   common.Date `json:"uitEndDate"`
	GoLiveDate   common.Date `json:"goLiveDate"`

	CreatedBy string `json:"createdBy" binding:"lte=50"`
}

// ProjectUpdating is a partial patch: empty fields keep the stored value,
// including Status.
type ProjectUpdating struct {
	Name        string `json:"name" binding:"lte=255"`
	Description string `json:"description" binding:"lte=1000"`
	Status      string `json:"status"`

	DevStartDate common.Date `json:"devStartDate"`
	DevEndDate   common.Date `json:"devEndDate"`
	QaStartDate  common.Date `json:"qaStartDate"`
	QaEndDate    common.Date `json:"qaEndDate"`
	UitStartDate common.Date `json:"uitStartDate"`
	UitEndDate   common.Date `json:"uitEndDate"`
	GoLiveDate   common.Date `json:"goLiveDate"`

	LastUpdatedBy string `json:"lastUpdatedBy" binding:"lte=50"`
}

var (
	idWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	CreateProjectFunc = CreateProject
	DetailProjectFunc = DetailProject
	QueryProjectsFunc = QueryProjects
	UpdateProjectFunc = UpdateProject
	DeleteProjectFunc = DeleteProject

	FindProjectFunc = FindProject

	DeleteCheckFuncs []func(p Project, tx *gorm.DB) error
)

// IsEmployeeReferencedByProject blocks employee deletion while the employee
// is still named in a project's audit fields.
func IsEmployeeReferencedByProject(e employee.Employee, tx *gorm.DB) error {
	var p Project
	err := tx.Where("created_by = ? OR last_updated_by = ?", e.EmpID, e.EmpID).First(&p).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	} else if err != nil {
		return err
	}
	return &bizerror.ErrDependencyExists{Entity: "employee " + e.EmpID, Dependents: []string{"projects"}}
}

// FindProject loads a project by id, returning nil when absent.
func FindProject(id types.ID, tx *gorm.DB) (*Project, error) {
	var p Project
	if err := tx.Where(&Project{ID: id}).First(&p).Error; err == gorm.ErrRecordNotFound {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return &p, nil
}

func CreateProject(ctx context.Context, c *ProjectCreation) (*Project, error) {
	r := &Project{
		ID:          common.NextId(idWorker),
		Name:        c.Name,
		Description: c.Description,
		Status:      c.Status,

		DevStartDate: c.DevStartDate, DevEndDate: c.DevEndDate,
		QaStartDate: c.QaStartDate, QaEndDate: c.QaEndDate,
		UitStartDate: c.UitStartDate, UitEndDate: c.UitEndDate,
		GoLiveDate: c.GoLiveDate,

		CreatedBy:  c.CreatedBy,
		CreateTime: types.CurrentTimestamp(),
	}
	if r.Status == "" {
		r.Status = StatusOpen
	}

	err := persistence.ActiveDataSourceManager.GormDB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := validateProject(r, tx); err != nil {
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

func DetailProject(ctx context.Context, id types.ID) (*Project, error) {
	var p Project
	if err := persistence.ActiveDataSourceManager.GormDB(ctx).
		Where(&Project{ID: id}).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func QueryProjects(ctx context.Context) ([]Project, error) {
	projects := []Project{}
	db := persistence.ActiveDataSourceManager.GormDB(ctx)
	if err := db.Order("ID ASC").Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

func UpdateProject(ctx context.Context, id types.ID, u *ProjectUpdating) (*Project, error) {
	var merged Project
	err := persistence.ActiveDataSourceManager.GormDB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(&Project{ID: id}).First(&merged).Error; err != nil {
			return err
		}

		if u.Name != "" {
			merged.Name = u.Name
		}
		if u.Description != "" {
			merged.Description = u.Description
		}
		if u.Status != "" {
			merged.Status = u.Status
		}
		mergeDate := func(dst *common.Date, src common.Date) {
			if !src.IsZero() {
				*dst = src
			}
		}
		mergeDate(&merged.DevStartDate, u.DevStartDate)
		mergeDate(&merged.DevEndDate, u.DevEndDate)
		mergeDate(&merged.QaStartDate, u.QaStartDate)
		mergeDate(&merged.QaEndDate, u.QaEndDate)
		mergeDate(&merged.UitStartDate, u.UitStartDate)
		mergeDate(&merged.UitEndDate, u.UitEndDate)
		mergeDate(&merged.GoLiveDate, u.GoLiveDate)
		merged.LastUpdatedBy = u.LastUpdatedBy
		merged.UpdateTime = types.CurrentTimestamp()

		if err := validateProject(&merged, tx); err != nil {
			return err
		}
		if err := employee.CheckEmployeeRef("last updated by", merged.LastUpdatedBy, tx); err != nil {
			return err
		}

		return tx.Model(&Project{}).Where(&Project{ID: id}).Update(map[string]interface{}{
			"name": merged.Name, "description": merged.Description, "status": merged.Status,
			"dev_start_date": merged.DevStartDate, "dev_end_date": merged.DevEndDate,
			"qa_start_date": merged.QaStartDate, "qa_end_date": merged.QaEndDate,
			"uit_start_date": merged.UitStartDate, "uit_end_date": merged.UitEndDate,
			"go_live_date":    merged.GoLiveDate,
			"last_updated_by": merged.LastUpdatedBy, "update_time": merged.UpdateTime,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &merged, nil
}

func DeleteProject(ctx context.Context, id types.ID) error {
	return persistence.ActiveDataSourceManager.GormDB(ctx).Transaction(func(tx *gorm.DB) error {
		var p Project
		if err := tx.Where(&Project{ID: id}).First(&p).Error; err != nil {
			return err
		}
		for _, f := range DeleteCheckFuncs {
			if err := f(p, tx); err != nil {
				return err
			}
		}
		return tx.Delete(Project{}, "id = ?", id).Error
	})
}

func validateProject(p *Project, tx *gorm.DB) error {
	if p.Name == "" {
		return &bizerror.ErrValidation{Message: "project name is required"}
	}
	if !isValidStatus(p.Status) {
		return &bizerror.ErrValidation{Message: "invalid project status '" + p.Status +
			"', must be one of: open, inprogress, completed"}
	}

	type datePair struct {
		label string
		a, b  common.Date
	}
	ordered := []datePair{
		{"development start date / development end date", p.DevStartDate, p.DevEndDate},
		{"QA start date / QA end date", p.QaStartDate, p.QaEndDate},
		{"UIT start date / UIT end date", p.UitStartDate, p.UitEndDate},
		// phase sequencing: dev -> QA -> UIT -> go-live
		{"development end date / QA start date", p.DevEndDate, p.QaStartDate},
		{"QA end date / UIT start date", p.QaEndDate, p.UitStartDate},
		{"UIT end date / go-live date", p.UitEndDate, p.GoLiveDate},
	}
	for _, pair := range ordered {
		if !pair.a.IsZero() && !pair.b.IsZero() && pair.a.After(pair.b) {
			return &bizerror.ErrValidation{Message: "invalid date order: " + pair.label}
		}
	}
	return nil
}

func isValidStatus(s string) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}
