package bizerror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"worklog/common"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrNotFound        = errors.New("record not found")
)

// ErrBadParam covers request-shape failures: unreadable body, malformed
// values, missing bindings.
type ErrBadParam struct {
	Cause error
}

func (e *ErrBadParam) Unwrap() error {
	return e.Cause
}
func (e *ErrBadParam) Error() string {
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "common.bad_param"
}
func (e *ErrBadParam) Respond() *common.BizErrorDetail {
	message := "common.bad_param"
	if e.Cause != nil {
		message = e.Cause.Error()
	}
	return &common.BizErrorDetail{Status: http.StatusBadRequest, Code: "common.bad_param", Message: message}
}

// ErrValidation is raised when a well-formed request violates a business
// rule of the entity being written.
type ErrValidation struct {
	Message string
}

func (e *ErrValidation) Error() string {
	return e.Message
}
func (e *ErrValidation) Respond() *common.BizErrorDetail {
	return &common.BizErrorDetail{Status: http.StatusBadRequest, Code: "common.validation_failed", Message: e.Message}
}

type ErrDuplicateRecord struct {
	Entity string
	Key    string
}

func (e *ErrDuplicateRecord) Error() string {
	return fmt.Sprintf("%s with key '%s' already exists", e.Entity, e.Key)
}
func (e *ErrDuplicateRecord) Respond() *common.BizErrorDetail {
	return &common.BizErrorDetail{Status: http.StatusConflict, Code: "common.duplicate_record", Message: e.Error()}
}

// ErrDependencyExists blocks a delete while other records still reference
// the target.
type ErrDependencyExists struct {
	Entity     string
	Dependents []string
}

func (e *ErrDependencyExists) Error() string {
	return fmt.Sprintf("%s is still referenced by %s", e.Entity, strings.Join(e.Dependents, ", "))
}
func (e *ErrDependencyExists) Respond() *common.BizErrorDetail {
	return &common.BizErrorDetail{Status: http.StatusConflict, Code: "common.dependency_exists", Message: e.Error(),
		Data: e.Dependents}
}

// ErrInvalidStateTransition is raised when a workflow action is not legal
// from the record's current status.
type ErrInvalidStateTransition struct {
	Current   string
	Requested string
}

func (e *ErrInvalidStateTransition) Error() string {
	return fmt.Sprintf("transition from state '%s' to state '%s' is not allowed", e.Current, e.Requested)
}
func (e *ErrInvalidStateTransition) Respond() *common.BizErrorDetail {
	return &common.BizErrorDetail{Status: http.StatusForbidden, Code: "workflow.invalid_state", Message: e.Error()}
}

// ErrRecordLocked is raised when a plain edit or delete hits a record whose
// status forbids it (pending review or already approved).
type ErrRecordLocked struct {
	Status string
	Action string
}

func (e *ErrRecordLocked) Error() string {
	return fmt.Sprintf("record in state '%s' can not be %s", e.Status, e.Action)
}
func (e *ErrRecordLocked) Respond() *common.BizErrorDetail {
	return &common.BizErrorDetail{Status: http.StatusForbidden, Code: "workflow.record_locked", Message: e.Error()}
}
