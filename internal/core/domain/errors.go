package domain

import (
	"errors"
	"fmt"
)

// DomainError is a business error carrying a stable machine-readable code
// of the form JK-<AREA>-<NNNN>. Codes are part of the API contract: the
// HTTP and RESP surfaces map them to status codes and clients match on
// them.
//
// @design DS-0104
type DomainError struct {
	Code    string
	Message string
	Details string
	Cause   error
}

func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches on the code, so errors.Is works across WithDetails/WithCause
// copies of the same catalog entry.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && e.Code == t.Code
}

// NewDomainError creates a catalog entry with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// WithDetails returns a copy of the error carrying extra context. The
// catalog entry itself is never mutated.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, Details: details, Cause: e.Cause}
}

// WithCause returns a copy of the error wrapping cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, Details: e.Details, Cause: cause}
}

// Wrap is WithCause under the name callers expect at wrap sites.
func (e *DomainError) Wrap(cause error) *DomainError {
	return e.WithCause(cause)
}

// IsDomainError reports whether err is (or wraps) a DomainError; with a
// non-empty code it additionally requires that exact code.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if !errors.As(err, &de) {
		return false
	}
	return code == "" || de.Code == code
}

// GetErrorCode extracts the code from err, or "" for foreign errors.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Store errors (JK-STOR).
var (
	ErrStoreNotFound        = NewDomainError("JK-STOR-4040", "store not found")
	ErrKeyNotFound          = NewDomainError("JK-STOR-4041", "key not found")
	ErrStoreConflict        = NewDomainError("JK-STOR-4090", "store already attached")
	ErrStoreNameInvalid     = NewDomainError("JK-STOR-4001", "invalid store name")
	ErrValueNotSerializable = NewDomainError("JK-STOR-4002", "value not serializable to json")
	ErrDataShape            = NewDomainError("JK-STOR-4220", "backing file is not a json object")
)

// Snapshot errors (JK-SNAP).
var (
	ErrSnapshotNotFound         = NewDomainError("JK-SNAP-4040", "snapshot not found")
	ErrSnapshotDirInvalid       = NewDomainError("JK-SNAP-4001", "invalid snapshot directory")
	ErrSnapshotIntervalInvalid  = NewDomainError("JK-SNAP-4002", "invalid snapshot interval")
	ErrSnapshotRetentionInvalid = NewDomainError("JK-SNAP-4003", "invalid snapshot retention cap")
	ErrSnapshotFailed           = NewDomainError("JK-SNAP-5000", "snapshot failed")

	// ErrSchedulerHalted surfaces a snapshot scheduler that stopped after
	// a failed tick and needs operator attention.
	ErrSchedulerHalted = NewDomainError("JK-SNAP-5030", "snapshot scheduler halted")
)

// Authentication errors (JK-AUTH).
var (
	ErrAPIKeyMissing    = NewDomainError("JK-AUTH-4010", "api key not provided")
	ErrAPIKeyInvalid    = NewDomainError("JK-AUTH-4011", "invalid api key")
	ErrAPIKeyDisabled   = NewDomainError("JK-AUTH-4012", "api key disabled")
	ErrPermissionDenied = NewDomainError("JK-AUTH-4030", "permission denied")
	ErrIPNotAllowed     = NewDomainError("JK-AUTH-4031", "ip not in allowlist")
	ErrAPIKeyValidation = NewDomainError("JK-AUTH-4001", "api key validation failed")
	ErrAPIKeyNotFound   = NewDomainError("JK-AUTH-4040", "api key not found")
	ErrAPIKeyConflict   = NewDomainError("JK-AUTH-4090", "api key id conflict")
)

// System errors (JK-SYS).
var (
	ErrInternalServer     = NewDomainError("JK-SYS-5000", "internal server error")
	ErrStorageError       = NewDomainError("JK-SYS-5001", "storage error")
	ErrServiceUnavailable = NewDomainError("JK-SYS-5030", "service unavailable")
	ErrBadRequest         = NewDomainError("JK-SYS-4000", "bad request")
	ErrRateLimited        = NewDomainError("JK-SYS-4290", "too many requests")
)

// Argument errors (JK-ARG).
var (
	ErrInvalidArgument  = NewDomainError("JK-ARG-1001", "invalid argument")
	ErrMissingArgument  = NewDomainError("JK-ARG-1002", "missing required argument")
	ErrArgumentConflict = NewDomainError("JK-ARG-1003", "argument conflict")
)

// Admin errors (JK-ADMIN).
var (
	ErrAdminPermissionDenied  = NewDomainError("JK-ADMIN-4030", "admin role required")
	ErrAdminResourceNotFound  = NewDomainError("JK-ADMIN-4041", "admin resource not found")
	ErrAdminOperationConflict = NewDomainError("JK-ADMIN-4091", "admin operation conflict")
)
