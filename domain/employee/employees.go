package employee

import (
	"context"
	"worklog/bizerror"
	"worklog/common"
	"worklog/persistence"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

type Employee struct {
	ID types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`

	EmpID       string      `json:"empId" gorm:"unique_index:uni_emp_id" sql:"type:VARCHAR(50) NOT NULL"`
	Name        string      `json:"name" sql:"type:VARCHAR(50) NOT NULL"`
	Designation string      `json:"designation" sql:"type:VARCHAR(100) NOT NULL"`
	Skills      string      `json:"skills" sql:"type:VARCHAR(500)"`
	DateOfJoin  common.Date `json:"dateOfJoin" sql:"type:DATE"`

	CreatedBy     string          `json:"createdBy" sql:"type:VARCHAR(50)"`
	LastUpdatedBy string          `json:"lastUpdatedBy" sql:"type:VARCHAR(50)"`
	CreateTime    types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
	UpdateTime    types.Timestamp `json:"updateTime" sql:"type:DATETIME(6)"`
}

type EmployeeCreation struct {
	EmpID       string      `json:"empId" binding:"required,lte=50"`
	Name        string      `json:"name" binding:"required,lte=50"`
	Designation string      `json:"designation" binding:"required,lte=100"`
	Skills      string      `json:"skills" binding:"lte=500"`
	DateOfJoin  common.Date `json:"dateOfJoin"`

	CreatedBy string `json:"createdBy" binding:"lte=50"`
}

// EmployeeUpdating carries the mutable fields only. EmpID is a business key
// and never changes after creation.
type EmployeeUpdating struct {
	Name        string      `json:"name" binding:"lte=50"`
	Designation string      `json:"designation" binding:"lte=100"`
	Skills      string      `json:"skills" binding:"lte=500"`
	DateOfJoin  common.Date `json:"dateOfJoin"`

	LastUpdatedBy string `json:"lastUpdatedBy" binding:"lte=50"`
}

var (
	idWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	CreateEmployeeFunc = CreateEmployee
	DetailEmployeeFunc = DetailEmployee
	QueryEmployeesFunc = QueryEmployees
	UpdateEmployeeFunc = UpdateEmployee
	DeleteEmployeeFunc = DeleteEmployee

	FindByEmpIdFunc = FindByEmpId

	// DeleteCheckFuncs guard employee deletion. Dependent packages register
	// their reference checks here at wiring time.
	DeleteCheckFuncs []func(e Employee, tx *gorm.DB) error
)

// FindByEmpId loads an employee by business key, returning nil when absent.
func FindByEmpId(empId string, tx *gorm.DB) (*Employee, error) {
	var e Employee
	if err := tx.Where(&Employee{EmpID: empId}).First(&e).Error; err == gorm.ErrRecordNotFound {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return &e, nil
}

// CheckEmployeeRef validates an audit or assignment reference. Empty values
// pass, unknown business keys fail validation.
func CheckEmployeeRef(field, empId string, tx *gorm.DB) error {
	if empId == "" {
		return nil
	}
	e, err := FindByEmpIdFunc(empId, tx)
	if err != nil {
		return err
	}
	if e == nil {
		return &bizerror.ErrValidation{Message: field + ": employee with emp id '" + empId + "' does not exist"}
	}
	return nil
}

func CreateEmployee(ctx context.Context, c *EmployeeCreation) (*Employee, error) {
	if c.DateOfJoin.IsZero() {
		return nil, &bizerror.ErrValidation{Message: "date of join is required"}
	}

	var r *Employee
	err := persistence.ActiveDataSourceManager.GormDB(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := FindByEmpIdFunc(c.EmpID, tx)
		if err != nil {
			return err
		}
		if existing != nil {
			return &bizerror.ErrDuplicateRecord{Entity: "employee", Key: c.EmpID}
		}
		if err := CheckEmployeeRef("created by", c.CreatedBy, tx); err != nil {
			return err
		}

		r = &Employee{
			ID:          common.NextId(idWorker),
			EmpID:       c.EmpID,
			Name:        c.Name,
			Designation: c.Designation,
			Skills:      c.Skills,
			DateOfJoin:  c.DateOfJoin,
			CreatedBy:   c.CreatedBy,
			CreateTime:  types.CurrentTimestamp(),
		}
		return tx.Create(r).Error
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func DetailEmployee(ctx context.Context, id types.ID) (*Employee, error) {
	var e Employee
	if err := persistence.ActiveDataSourceManager.GormDB(ctx).
		Where(&Employee{ID: id}).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func QueryEmployees(ctx context.Context) ([]Employee, error) {
	employees := []Employee{}
	db := persistence.ActiveDataSourceManager.GormDB(ctx)
	if err := db.Order("emp_id ASC").Find(&employees).Error; err != nil {
		return nil, err
	}
	return employees, nil
}

func UpdateEmployee(ctx context.Context, id types.ID, u *EmployeeUpdating) (*Employee, error) {
	var merged Employee
	err := persistence.ActiveDataSourceManager.GormDB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(&Employee{ID: id}).First(&merged).Error; err != nil {
			return err
		}

		if u.Name != "" {
			merged.Name = u.Name
		}
		if u.Designation != "" {
			merged.Designation = u.Designation
		}
		if u.Skills != "" {
			merged.Skills = u.Skills
		}
		if !u.DateOfJoin.IsZero() {
			merged.DateOfJoin = u.DateOfJoin
		}
		merged.LastUpdatedBy = u.LastUpdatedBy
		merged.UpdateTime = types.CurrentTimestamp()

		if err := validateEmployee(&merged, tx); err != nil {
			return err
		}

		return tx.Model(&Employee{}).Where(&Employee{ID: id}).Update(map[string]interface{}{
			"name": merged.Name, "designation": merged.Designation, "skills": merged.Skills,
			"date_of_join": merged.DateOfJoin, "last_updated_by": merged.LastUpdatedBy,
			"update_time": merged.UpdateTime,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &merged, nil
}

func validateEmployee(e *Employee, tx *gorm.DB) error {
	if e.Name == "" {
		return &bizerror.ErrValidation{Message: "employee name is required"}
	}
	if e.Designation == "" {
		return &bizerror.ErrValidation{Message: "employee designation is required"}
	}
	if e.DateOfJoin.IsZero() {
		return &bizerror.ErrValidation{Message: "date of join is required"}
	}
	return CheckEmployeeRef("last updated by", e.LastUpdatedBy, tx)
}

func DeleteEmployee(ctx context.Context, id types.ID) error {
	return persistence.ActiveDataSourceManager.GormDB(ctx).Transaction(func(tx *gorm.DB) error {
		var e Employee
		if err := tx.Where(&Employee{ID: id}).First(&e).Error; err != nil {
			return err
		}
		for _, f := range DeleteCheckFuncs {
			if err := f(e, tx); err != nil {
				return err
			}
		}
		return tx.Delete(Employee{}, "id = ?", id).Error
	})
}
