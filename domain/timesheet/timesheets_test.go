package timesheet_test

import (
	"context"
	"sync"
	"testing"
	"time"
	"worklog/bizerror"
	"worklog/common"
	"worklog/domain/employee"
	"worklog/domain/project"
	"worklog/domain/task"
	"worklog/domain/timesheet"
	"worklog/event"
	"worklog/persistence"
	"worklog/testinfra"

	"github.com/jinzhu/gorm"
	. "github.com/onsi/gomega"
)

type timesheetTestFixture struct {
	emp1, emp2       *employee.Employee
	project1         *project.Project
	projectCompleted *project.Project
	task1            *task.Task
	taskOfCompleted  *task.Task
}

func timesheetTestSetup(t *testing.T, testDatabase **testinfra.TestDatabase) *timesheetTestFixture {
	db := testinfra.StartMysqlTestDatabase("worklog")
	*testDatabase = db
	Expect(db.DS.GormDB(context.Background()).AutoMigrate(
		&employee.Employee{}, &project.Project{}, &task.Task{}, &timesheet.Timesheet{},
		&event.EventRecord{}).Error).To(BeNil())
	persistence.ActiveDataSourceManager = db.DS

	ctx := context.Background()
	emp1, err := employee.CreateEmployee(ctx, &employee.EmployeeCreation{
		EmpID: "E1", Name: "dev one", Designation: "engineer", DateOfJoin: common.DateOf(2020, 1, 1)})
	Expect(err).To(BeNil())
	emp2, err := employee.CreateEmployee(ctx, &employee.EmployeeCreation{
		EmpID: "E2", Name: "dev two", Designation: "engineer", DateOfJoin: common.DateOf(2020, 3, 1)})
	Expect(err).To(BeNil())

	project1, err := project.CreateProject(ctx, &project.ProjectCreation{Name: "billing platform"})
	Expect(err).To(BeNil())
	projectCompleted, err := project.CreateProject(ctx, &project.ProjectCreation{
		Name: "legacy migration", Status: project.StatusCompleted})
	Expect(err).To(BeNil())

	task1, err := task.CreateTask(ctx, &task.TaskCreation{ProjectID: project1.ID, Name: "invoice api"})
	Expect(err).To(BeNil())
	taskOfCompleted, err := task.CreateTask(ctx, &task.TaskCreation{ProjectID: projectCompleted.ID, Name: "data export"})
	Expect(err).To(BeNil())

	return &timesheetTestFixture{emp1: emp1, emp2: emp2,
		project1: project1, projectCompleted: projectCompleted,
		task1: task1, taskOfCompleted: taskOfCompleted}
}

func timesheetTestTeardown(t *testing.T, testDatabase *testinfra.TestDatabase) {
	if testDatabase != nil {
		testinfra.StopMysqlTestDatabase(testDatabase)
	}
}

func buildCreation(f *timesheetTestFixture, hours float64) *timesheet.TimesheetCreation {
	return &timesheet.TimesheetCreation{
		EntryDate:     common.DateOf(2026, 1, 5),
		ProjectID:     f.project1.ID,
		ProjectName:   f.project1.Name,
		TaskID:        f.task1.ID,
		EmployeeID:    "E1",
		EffortInHours: hours,
		Description:   "implementation work",
		CreatedBy:     "E1",
	}
}

func TestCreateTimesheet(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase
	defer func() { timesheetTestTeardown(t, testDatabase) }()
	f := timesheetTestSetup(t, &testDatabase)
	ctx := context.Background()

	t.Run("should create entry with default saved status", func(t *testing.T) {
		record, err := timesheet.CreateTimesheet(ctx, buildCreation(f, 8))
		Expect(err).To(BeNil())
		Expect(record.ID).ToNot(BeZero())
		Expect(record.Status).To(Equal(timesheet.StateSaved.Name))
		Expect(record.EffortInHours).To(Equal(float64(8)))
		Expect(record.ProjectName).To(Equal("billing platform"))
		Expect(record.CreateTime.Time().IsZero()).To(BeFalse())

		detail, err := timesheet.DetailTimesheet(ctx, record.ID)
		Expect(err).To(BeNil())
		Expect(detail.EntryDate.String()).To(Equal("2026-01-05"))
		Expect(detail.Status).To(Equal(timesheet.StateSaved.Name))

		Expect(timesheet.DeleteTimesheet(ctx, record.ID)).To(BeNil())
	})

	t.Run("should accept an explicit status from the enum", func(t *testing.T) {
		creation := buildCreation(f, 4)
		creation.Status = timesheet.StateSubmitted.Name
		record, err := timesheet.CreateTimesheet(ctx, creation)
		Expect(err).To(BeNil())
		Expect(record.Status).To(Equal(timesheet.StateSubmitted.Name))
	})

	t.Run("should reject a status outside the enum", func(t *testing.T) {
		creation := buildCreation(f, 4)
		creation.Status = "Archived"
		_, err := timesheet.CreateTimesheet(ctx, creation)
		Expect(err).To(Equal(&bizerror.ErrValidation{
			Message: "invalid timesheet status 'Archived', must be one of: Saved, Submitted, Approved, Rejected"}))
	})

	t.Run("should reject missing or future entry date", func(t *testing.T) {
		creation := buildCreation(f, 8)
		creation.EntryDate = common.Date{}
		_, err := timesheet.CreateTimesheet(ctx, creation)
		Expect(err).To(Equal(&bizerror.ErrValidation{Message: "timesheet date is required"}))

		tomorrow := time.Now().Add(24 * time.Hour)
		creation.EntryDate = common.DateOf(tomorrow.Year(), tomorrow.Month(), tomorrow.Day())
		_, err = timesheet.CreateTimesheet(ctx, creation)
		Expect(err).To(Equal(&bizerror.ErrValidation{Message: "timesheet date can not be in the future"}))
	})

	t.Run("should reject missing references", func(t *testing.T) {
		creation := buildCreation(f, 8)
		creation.ProjectID = 0
		_, err := timesheet.CreateTimesheet(ctx, creation)
		Expect(err).To(Equal(&bizerror.ErrValidation{Message: "project id is required"}))

		creation = buildCreation(f, 8)
		creation.TaskID = 0
		_, err = timesheet.CreateTimesheet(ctx, creation)
		Expect(err).To(Equal(&bizerror.ErrValidation{Message: "task id is required"}))

		creation = buildCreation(f, 8)
		creation.EmployeeID = ""
		_, err = timesheet.CreateTimesheet(ctx, creation)
		Expect(err).To(Equal(&bizerror.ErrValidation{Message: "employee id is required"}))
	})

	t.Run("should reject effort outside (0, 24]", func(t *testing.T) {
		_, err := timesheet.CreateTimesheet(ctx, buildCreation(f, 0))
		Expect(err).To(Equal(&bizerror.ErrValidation{Message: "effort in hours must be a positive number"}))

		_, err = timesheet.CreateTimesheet(ctx, buildCreation(f, -2))
		Expect(err).To(Equal(&bizerror.ErrValidation{Message: "effort in hours must be a positive number"}))

		_, err = timesheet.CreateTimesheet(ctx, buildCreation(f, 25))
		Expect(err).To(Equal(&bizerror.ErrValidation{Message: "effort in hours can not exceed 24 for a single entry"}))
	})

	t.Run("should reject unknown employee, project and task", func(t *testing.T) {
		creation := buildCreation(f, 8)
		creation.EmployeeID = "E404"
		_, err := timesheet.CreateTimesheet(ctx, creation)
		Expect(err).To(Equal(&bizerror.ErrValidation{Message: "employee with emp id 'E404' does not exist"}))

		creation = buildCreation(f, 8)
		creation.ProjectID = 99999
		_, err = timesheet.CreateTimesheet(ctx, creation)
		Expect(err).To(Equal(&bizerror.ErrValidation{Message: "project with id '99999' does not exist"}))

		creation = buildCreation(f, 8)
		creation.TaskID = 88888
		_, err = timesheet.CreateTimesheet(ctx, creation)
		Expect(err).To(Equal(&bizerror.ErrValidation{Message: "task with id '88888' does not exist"}))
	})

	t.Run("should reject entries against a completed project", func(t *testing.T) {
		creation := buildCreation(f, 8)
		creation.ProjectID = f.projectCompleted.ID
		creation.ProjectName = f.projectCompleted.Name
		creation.TaskID = f.taskOfCompleted.ID
		_, err := timesheet.CreateTimesheet(ctx, creation)
		Expect(err).To(Equal(&bizerror.ErrValidation{
			Message: "can not log time against completed project 'legacy migration'"}))
	})

	t.Run("should reject a task that belongs to another project", func(t *testing.T) {
		creation := buildCreation(f, 8)
		creation.TaskID = f.taskOfCompleted.ID
		_, err := timesheet.CreateTimesheet(ctx, creation)
		Expect(err).To(Equal(&bizerror.ErrValidation{Message: "task '" + f.taskOfCompleted.ID.String() +
			"' does not belong to project '" + f.project1.ID.String() + "'"}))
	})

	t.Run("should heal a stale denormalized project name", func(t *testing.T) {
		creation := buildCreation(f, 2)
		creation.EntryDate = common.DateOf(2026, 1, 6)
		creation.ProjectName = "billing platform (old)"
		record, err := timesheet.CreateTimesheet(ctx, creation)
		Expect(err).To(BeNil())
		Expect(record.ProjectName).To(Equal("billing platform"))
	})

	t.Run("should record a created event", func(t *testing.T) {
		creation := buildCreation(f, 1)
		creation.EntryDate = common.DateOf(2026, 1, 7)
		record, err := timesheet.CreateTimesheet(ctx, creation)
		Expect(err).To(BeNil())

		trail, err := timesheet.TimesheetEvents(ctx, record.ID)
		Expect(err).To(BeNil())
		Expect(len(trail)).To(Equal(1))
		Expect(trail[0].EventCategory).To(Equal(event.EventCategory(event.EventCategoryCreated)))
		Expect(trail[0].SourceType).To(Equal("timesheet"))
		Expect(trail[0].SourceId).To(Equal(record.ID))
		Expect(trail[0].CreatorId).To(Equal("E1"))
	})
}

func TestTimesheetDailyCap(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase
	defer func() { timesheetTestTeardown(t, testDatabase) }()
	f := timesheetTestSetup(t, &testDatabase)
	ctx := context.Background()

	t.Run("total effort per employee per day can not exceed 24", func(t *testing.T) {
		first, err := timesheet.CreateTimesheet(ctx, buildCreation(f, 8))
		Expect(err).To(BeNil())

		_, err = timesheet.CreateTimesheet(ctx, buildCreation(f, 20))
		Expect(err).To(Equal(&bizerror.ErrValidation{Message: "total hours for employee 'E1' on 2026-01-05" +
			" can not exceed 24: already logged 8, attempted total 28"}))

		second, err := timesheet.CreateTimesheet(ctx, buildCreation(f, 16))
		Expect(err).To(BeNil())
		Expect(second.EffortInHours).To(Equal(float64(16)))

		// other employees and other days have their own budget
		other := buildCreation(f, 20)
		other.EmployeeID = "E2"
		_, err = timesheet.CreateTimesheet(ctx, other)
		Expect(err).To(BeNil())

		nextDay := buildCreation(f, 20)
		nextDay.EntryDate = common.DateOf(2026, 1, 6)
		_, err = timesheet.CreateTimesheet(ctx, nextDay)
		Expect(err).To(BeNil())

		// the updated entry's own hours are excluded from the sum
		updated, err := timesheet.UpdateTimesheet(ctx, first.ID, &timesheet.TimesheetUpdating{
			EffortInHours: 8, LastUpdatedBy: "E1"})
		Expect(err).To(BeNil())
		Expect(updated.EffortInHours).To(Equal(float64(8)))

		_, err = timesheet.UpdateTimesheet(ctx, first.ID, &timesheet.TimesheetUpdating{
			EffortInHours: 9, LastUpdatedBy: "E1"})
		Expect(err).To(Equal(&bizerror.ErrValidation{Message: "total hours for employee 'E1' on 2026-01-05" +
			" can not exceed 24: already logged 16, attempted total 25"}))
	})
}

func TestTimesheetDailyCapConcurrentCreates(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase
	defer func() { timesheetTestTeardown(t, testDatabase) }()
	f := timesheetTestSetup(t, &testDatabase)
	ctx := context.Background()

	t.Run("racing creates serialize on the employee row lock", func(t *testing.T) {
		// each create alone fits the cap; together they exceed it, so the
		// loser must observe the winner's committed hours
		var wg sync.WaitGroup
		results := make(chan error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := timesheet.CreateTimesheet(ctx, buildCreation(f, 16))
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		succeeded := 0
		failures := []error{}
		for err := range results {
			if err == nil {
				succeeded++
			} else {
				failures = append(failures, err)
			}
		}
		Expect(succeeded).To(Equal(1))
		Expect(failures).To(Equal([]error{&bizerror.ErrValidation{
			Message: "total hours for employee 'E1' on 2026-01-05" +
				" can not exceed 24: already logged 16, attempted total 32"}}))

		records, err := timesheet.QueryTimesheets(ctx, &timesheet.TimesheetQuery{
			EmployeeID: "E1", StartDate: "2026-01-05", EndDate: "2026-01-05"})
		Expect(err).To(BeNil())
		Expect(len(records)).To(Equal(1))
		Expect(records[0].EffortInHours).To(Equal(float64(16)))
	})
}

func TestTimesheetWorkflow(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase
	defer func() { timesheetTestTeardown(t, testDatabase) }()
	f := timesheetTestSetup(t, &testDatabase)
	ctx := context.Background()

	t.Run("full review cycle", func(t *testing.T) {
		record, err := timesheet.CreateTimesheet(ctx, buildCreation(f, 8))
		Expect(err).To(BeNil())

		// approve and reject are not legal from Saved
		_, err = timesheet.ApproveTimesheet(ctx, record.ID)
		Expect(err).To(Equal(&bizerror.ErrInvalidStateTransition{Current: "Saved", Requested: "Approved"}))
		_, err = timesheet.RejectTimesheet(ctx, record.ID, &timesheet.RejectionReq{Reason: "too early"})
		Expect(err).To(Equal(&bizerror.ErrInvalidStateTransition{Current: "Saved", Requested: "Rejected"}))

		submitted, err := timesheet.SubmitTimesheet(ctx, record.ID)
		Expect(err).To(BeNil())
		Expect(submitted.Status).To(Equal(timesheet.StateSubmitted.Name))

		// submitted entries are locked against plain edits and deletes
		_, err = timesheet.UpdateTimesheet(ctx, record.ID, &timesheet.TimesheetUpdating{EffortInHours: 6})
		Expect(err).To(Equal(&bizerror.ErrRecordLocked{Status: "Submitted", Action: "updated"}))
		err = timesheet.DeleteTimesheet(ctx, record.ID)
		Expect(err).To(Equal(&bizerror.ErrRecordLocked{Status: "Submitted", Action: "deleted"}))

		_, err = timesheet.SubmitTimesheet(ctx, record.ID)
		Expect(err).To(Equal(&bizerror.ErrInvalidStateTransition{Current: "Submitted", Requested: "Submitted"}))

		approved, err := timesheet.ApproveTimesheet(ctx, record.ID)
		Expect(err).To(BeNil())
		Expect(approved.Status).To(Equal(timesheet.StateApproved.Name))

		// approved entries are immutable
		_, err = timesheet.UpdateTimesheet(ctx, record.ID, &timesheet.TimesheetUpdating{EffortInHours: 6})
		Expect(err).To(Equal(&bizerror.ErrRecordLocked{Status: "Approved", Action: "updated"}))
		err = timesheet.DeleteTimesheet(ctx, record.ID)
		Expect(err).To(Equal(&bizerror.ErrRecordLocked{Status: "Approved", Action: "deleted"}))

		trail, err := timesheet.TimesheetEvents(ctx, record.ID)
		Expect(err).To(BeNil())
		Expect(len(trail)).To(Equal(3))
		Expect(trail[0].EventCategory).To(Equal(event.EventCategory(event.EventCategoryCreated)))
		Expect(trail[1].EventCategory).To(Equal(event.EventCategory(event.EventCategoryStatusTransited)))
		Expect(trail[1].UpdatedProperties).To(Equal(event.UpdatedProperties{
			{PropertyName: "status", OldValue: "Saved", NewValue: "Submitted"}}))
		Expect(trail[2].UpdatedProperties).To(Equal(event.UpdatedProperties{
			{PropertyName: "status", OldValue: "Submitted", NewValue: "Approved"}}))
	})

	t.Run("rejection needs a reason and editing reopens the entry", func(t *testing.T) {
		creation := buildCreation(f, 8)
		creation.EntryDate = common.DateOf(2026, 1, 8)
		record, err := timesheet.CreateTimesheet(ctx, creation)
		Expect(err).To(BeNil())
		_, err = timesheet.SubmitTimesheet(ctx, record.ID)
		Expect(err).To(BeNil())

		_, err = timesheet.RejectTimesheet(ctx, record.ID, &timesheet.RejectionReq{})
		Expect(err).To(Equal(&bizerror.ErrValidation{Message: "a rejection reason is required"}))

		rejected, err := timesheet.RejectTimesheet(ctx, record.ID, &timesheet.RejectionReq{Reason: "wrong task"})
		Expect(err).To(BeNil())
		Expect(rejected.Status).To(Equal(timesheet.StateRejected.Name))
		Expect(rejected.ManagerComments).To(Equal("wrong task"))

		// a rejected entry is editable again; saving it re-enters Saved but
		// keeps the reviewer's comments
		updated, err := timesheet.UpdateTimesheet(ctx, record.ID, &timesheet.TimesheetUpdating{
			EffortInHours: 6, LastUpdatedBy: "E1"})
		Expect(err).To(BeNil())
		Expect(updated.Status).To(Equal(timesheet.StateSaved.Name))
		Expect(updated.EffortInHours).To(Equal(float64(6)))
		Expect(updated.ManagerComments).To(Equal("wrong task"))

		// and a rejected entry may also simply be deleted
		_, err = timesheet.SubmitTimesheet(ctx, record.ID)
		Expect(err).To(BeNil())
		_, err = timesheet.RejectTimesheet(ctx, record.ID, &timesheet.RejectionReq{Reason: "still wrong"})
		Expect(err).To(BeNil())
		Expect(timesheet.DeleteTimesheet(ctx, record.ID)).To(BeNil())
	})

	t.Run("trail of a deleted entry stays readable, an unknown id is not found", func(t *testing.T) {
		creation := buildCreation(f, 3)
		creation.EntryDate = common.DateOf(2026, 1, 9)
		record, err := timesheet.CreateTimesheet(ctx, creation)
		Expect(err).To(BeNil())
		Expect(timesheet.DeleteTimesheet(ctx, record.ID)).To(BeNil())

		trail, err := timesheet.TimesheetEvents(ctx, record.ID)
		Expect(err).To(BeNil())
		Expect(len(trail)).To(Equal(2))
		Expect(trail[1].EventCategory).To(Equal(event.EventCategory(event.EventCategoryDeleted)))

		_, err = timesheet.TimesheetEvents(ctx, 40404)
		Expect(err).To(Equal(gorm.ErrRecordNotFound))
	})
}

func TestQueryTimesheets(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase
	defer func() { timesheetTestTeardown(t, testDatabase) }()
	f := timesheetTestSetup(t, &testDatabase)
	ctx := context.Background()

	day5 := buildCreation(f, 8)
	day6 := buildCreation(f, 8)
	day6.EntryDate = common.DateOf(2026, 1, 6)
	day7 := buildCreation(f, 8)
	day7.EntryDate = common.DateOf(2026, 1, 7)
	day7.EmployeeID = "E2"

	_, err := timesheet.CreateTimesheet(ctx, day5)
	Expect(err).To(BeNil())
	entry6, err := timesheet.CreateTimesheet(ctx, day6)
	Expect(err).To(BeNil())
	_, err = timesheet.CreateTimesheet(ctx, day7)
	Expect(err).To(BeNil())
	_, err = timesheet.SubmitTimesheet(ctx, entry6.ID)
	Expect(err).To(BeNil())

	t.Run("filter by employee, status and date range", func(t *testing.T) {
		records, err := timesheet.QueryTimesheets(ctx, &timesheet.TimesheetQuery{EmployeeID: "E1"})
		Expect(err).To(BeNil())
		Expect(len(records)).To(Equal(2))
		Expect(records[0].EntryDate.String()).To(Equal("2026-01-05"))
		Expect(records[1].EntryDate.String()).To(Equal("2026-01-06"))

		records, err = timesheet.QueryTimesheets(ctx, &timesheet.TimesheetQuery{Status: "Submitted"})
		Expect(err).To(BeNil())
		Expect(len(records)).To(Equal(1))
		Expect(records[0].ID).To(Equal(entry6.ID))

		records, err = timesheet.QueryTimesheets(ctx, &timesheet.TimesheetQuery{
			StartDate: "2026-01-06", EndDate: "2026-01-07"})
		Expect(err).To(BeNil())
		Expect(len(records)).To(Equal(2))

		records, err = timesheet.QueryTimesheets(ctx, &timesheet.TimesheetQuery{ProjectID: f.project1.ID})
		Expect(err).To(BeNil())
		Expect(len(records)).To(Equal(3))
	})

	t.Run("malformed filters are bad params", func(t *testing.T) {
		_, err := timesheet.QueryTimesheets(ctx, &timesheet.TimesheetQuery{StartDate: "01/06/2026"})
		Expect(err).ToNot(BeNil())
		_, ok := err.(*bizerror.ErrBadParam)
		Expect(ok).To(BeTrue())

		_, err = timesheet.QueryTimesheets(ctx, &timesheet.TimesheetQuery{Status: "Pending"})
		Expect(err).ToNot(BeNil())
		_, ok = err.(*bizerror.ErrBadParam)
		Expect(ok).To(BeTrue())
	})
}

func TestTimesheetReferenceGuards(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase
	defer func() { timesheetTestTeardown(t, testDatabase) }()
	f := timesheetTestSetup(t, &testDatabase)
	ctx := context.Background()

	record, err := timesheet.CreateTimesheet(ctx, buildCreation(f, 8))
	Expect(err).To(BeNil())
	db := testDatabase.DS.GormDB(ctx)

	t.Run("referenced employee, project and task are blocked", func(t *testing.T) {
		Expect(timesheet.IsEmployeeReferencedByTimesheet(*f.emp1, db)).To(Equal(
			&bizerror.ErrDependencyExists{Entity: "employee E1", Dependents: []string{"timesheets"}}))
		Expect(timesheet.IsProjectReferencedByTimesheet(*f.project1, db)).To(Equal(
			&bizerror.ErrDependencyExists{Entity: "project " + f.project1.ID.String(), Dependents: []string{"timesheets"}}))
		Expect(timesheet.IsTaskReferencedByTimesheet(*f.task1, db)).To(Equal(
			&bizerror.ErrDependencyExists{Entity: "task " + f.task1.ID.String(), Dependents: []string{"timesheets"}}))

		Expect(timesheet.IsEmployeeReferencedByTimesheet(*f.emp2, db)).To(BeNil())
		Expect(timesheet.IsProjectReferencedByTimesheet(*f.projectCompleted, db)).To(BeNil())
		Expect(timesheet.IsTaskReferencedByTimesheet(*f.taskOfCompleted, db)).To(BeNil())
	})

	t.Run("guards release after the entry is deleted", func(t *testing.T) {
		Expect(timesheet.DeleteTimesheet(ctx, record.ID)).To(BeNil())
		Expect(timesheet.IsProjectReferencedByTimesheet(*f.project1, db)).To(BeNil())
		Expect(timesheet.IsTaskReferencedByTimesheet(*f.task1, db)).To(BeNil())
	})
}
