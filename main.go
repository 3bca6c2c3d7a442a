package main

import (
	"context"
	"os"
	"worklog/bizerror"
	"worklog/common"
	"worklog/domain/employee"
	"worklog/domain/project"
	"worklog/domain/task"
	"worklog/domain/timesheet"
	"worklog/event"
	"worklog/infra/tracing"
	"worklog/persistence"
	"worklog/servehttp"
	"worklog/session"

	"github.com/gin-gonic/gin"
)

func main() {
	common.Log.Infoln("service start")

	dbConfig, err := persistence.ParseDatabaseConfigFromEnv()
	if err != nil {
		common.Log.Fatalf("parse database config failed %v", err)
	}

	// create database (no conflict)
	if dbConfig.DriverType == "mysql" {
		if err := persistence.PrepareMysqlDatabase(dbConfig.DriverArgs); err != nil {
			common.Log.Fatalf("failed to prepare database %v", err)
		}
	}

	// connect database
	ds := &persistence.DataSourceManager{DatabaseConfig: dbConfig}
	if err := ds.Start(); err != nil {
		common.Log.Fatalf("database connection failed %v", err)
	}
	defer ds.Stop()
	persistence.ActiveDataSourceManager = ds

	// database migration (race condition)
	err = ds.GormDB(context.Background()).AutoMigrate(
		&employee.Employee{}, &project.Project{}, &task.Task{}, &timesheet.Timesheet{},
		&event.EventRecord{}).Error
	if err != nil {
		common.Log.Fatalf("database migration failed %v", err)
	}

	registerDeleteChecks()

	tracerCloser, err := tracing.InitTracer(common.ServiceName)
	if err != nil {
		common.Log.Fatalf("tracer initialization failed %v", err)
	}
	defer tracerCloser.Close()

	engine := gin.Default()
	engine.Use(bizerror.ErrorHandling(), tracing.TracingIngress())
	engine.GET("/", func(c *gin.Context) {
		c.String(200, common.ServiceName)
	})

	session.RegisterSessionsRestAPI(engine)

	middleWares := []gin.HandlerFunc{}
	if os.Getenv("AUTH_ENABLED") == "true" {
		middleWares = append(middleWares, session.SimpleAuthFilter())
	}
	session.RegisterSessionRestAPI(engine, session.SimpleAuthFilter())
	employee.RegisterEmployeesRestAPI(engine, middleWares...)
	project.RegisterProjectsRestAPI(engine, middleWares...)
	task.RegisterTasksRestAPI(engine, middleWares...)
	timesheet.RegisterTimesheetsRestAPI(engine, middleWares...)

	servehttp.StartHTTPServer(engine)
}

// registerDeleteChecks wires the referential-integrity guards: a record can
// not be deleted while downstream records still point at it.
func registerDeleteChecks() {
	employee.DeleteCheckFuncs = append(employee.DeleteCheckFuncs,
		project.IsEmployeeReferencedByProject,
		task.IsEmployeeReferencedByTask,
		timesheet.IsEmployeeReferencedByTimesheet)
	project.DeleteCheckFuncs = append(project.DeleteCheckFuncs,
		task.IsProjectReferencedByTask,
		timesheet.IsProjectReferencedByTimesheet)
	task.DeleteCheckFuncs = append(task.DeleteCheckFuncs,
		timesheet.IsTaskReferencedByTimesheet)
}
