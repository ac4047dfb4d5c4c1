package assigner

import (
	"errors"
	"fmt"
)

// Sentinel errors for the assigner. Typed errors below wrap the matching sentinel so callers can use errors.Is.
var (
	ErrUnsupportedContext = errors.New("assigner: unsupported context")
	ErrRecordNotFound     = errors.New("assigner: co person not found")
	ErrEppnMissing        = errors.New("assigner: no eppn identifier found")
	ErrEmailMissing       = errors.New("assigner: no official email address found")
	ErrNameMissing        = errors.New("assigner: no official name found")
	ErrRemoteService      = errors.New("assigner: error invoking dbService")
	ErrNoIdentifier       = errors.New("assigner: no CILogon user identifier returned by dbService")
)

// RecordNotFoundError reports a record id with no matching co person.
type RecordNotFoundError struct {
	RecordID int64
}

func (e *RecordNotFoundError) Error() string {
	return fmt.Sprintf("assigner: co person %d not found", e.RecordID)
}

func (e *RecordNotFoundError) Unwrap() error { return ErrRecordNotFound }

// RemoteServiceError reports a failed dbService call for one candidate eppn.
// Err is the transport error or a *dbservice.StatusError.
type RemoteServiceError struct {
	Candidate string
	Err       error
}

func (e *RemoteServiceError) Error() string {
	return fmt.Sprintf("assigner: error invoking dbService for %s: %v", e.Candidate, e.Err)
}

func (e *RemoteServiceError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRemoteService}
	}
	return []error{ErrRemoteService, e.Err}
}
