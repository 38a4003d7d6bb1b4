package guardian

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
)

// Domain is the errdetails.ErrorInfo domain for guardian errors.
const Domain = "guardian.arc"

// Code is a machine-readable error code.
type Code string

const (
	CodeUnknown Code = "UNKNOWN"

	// Authorization
	CodeNotOwner       Code = "NOT_OWNER"
	CodeNotGuardian    Code = "NOT_GUARDIAN"
	CodeInitiateDenied Code = "INITIATE_DENIED"

	// Validation
	CodeInvalidGuardianSet Code = "INVALID_GUARDIAN_SET"
	CodeInvalidThreshold   Code = "INVALID_THRESHOLD"
	CodeInvalidProposedKey Code = "INVALID_PROPOSED_KEY"

	// State
	CodeAlreadyInitialized    Code = "ALREADY_INITIALIZED"
	CodeNotInitialized        Code = "NOT_INITIALIZED"
	CodeRecoveryAlreadyActive Code = "RECOVERY_ALREADY_ACTIVE"
	CodeSessionNotFound       Code = "SESSION_NOT_FOUND"
	CodeSessionClosed         Code = "SESSION_CLOSED"
	CodeAlreadyApproved       Code = "ALREADY_APPROVED"
	CodeThresholdNotMet       Code = "THRESHOLD_NOT_MET"
)

// GRPCCode maps the code to the status code sent over the wire.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeNotOwner, CodeNotGuardian, CodeInitiateDenied:
		return codes.PermissionDenied
	case CodeInvalidGuardianSet, CodeInvalidThreshold, CodeInvalidProposedKey:
		return codes.InvalidArgument
	case CodeAlreadyInitialized, CodeAlreadyApproved:
		return codes.AlreadyExists
	case CodeNotInitialized, CodeRecoveryAlreadyActive, CodeThresholdNotMet, CodeSessionClosed:
		return codes.FailedPrecondition
	case CodeSessionNotFound:
		return codes.NotFound
	default:
		return codes.Internal
	}
}

// Error is a guardian domain error. Two errors match under errors.Is when
// their codes are equal, so callers compare against the Err* sentinels.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// ErrorCode returns the code as a string for metric labels.
func (e *Error) ErrorCode() string { return string(e.Code) }

// Sentinels for errors.Is.
var (
	ErrNotOwner              = &Error{Code: CodeNotOwner, Message: "caller is not the account owner"}
	ErrNotGuardian           = &Error{Code: CodeNotGuardian, Message: "caller is not a guardian of the account"}
	ErrInitiateDenied        = &Error{Code: CodeInitiateDenied, Message: "initiate denied by policy"}
	ErrInvalidGuardianSet    = &Error{Code: CodeInvalidGuardianSet, Message: "invalid guardian set"}
	ErrInvalidThreshold      = &Error{Code: CodeInvalidThreshold, Message: "invalid threshold"}
	ErrInvalidProposedKey    = &Error{Code: CodeInvalidProposedKey, Message: "invalid proposed key"}
	ErrAlreadyInitialized    = &Error{Code: CodeAlreadyInitialized, Message: "guardians already initialized"}
	ErrNotInitialized        = &Error{Code: CodeNotInitialized, Message: "guardians not initialized"}
	ErrRecoveryAlreadyActive = &Error{Code: CodeRecoveryAlreadyActive, Message: "a recovery session is already active"}
	ErrSessionNotFound       = &Error{Code: CodeSessionNotFound, Message: "recovery session not found"}
	ErrSessionClosed         = &Error{Code: CodeSessionClosed, Message: "recovery session already finalized"}
	ErrAlreadyApproved       = &Error{Code: CodeAlreadyApproved, Message: "guardian already approved this session"}
	ErrThresholdNotMet       = &Error{Code: CodeThresholdNotMet, Message: "approval threshold not met"}
)

var sentinels = map[Code]*Error{}

func init() {
	for _, e := range []*Error{
		ErrNotOwner, ErrNotGuardian, ErrInitiateDenied,
		ErrInvalidGuardianSet, ErrInvalidThreshold, ErrInvalidProposedKey,
		ErrAlreadyInitialized, ErrNotInitialized, ErrRecoveryAlreadyActive,
		ErrSessionNotFound, ErrSessionClosed, ErrAlreadyApproved, ErrThresholdNotMet,
	} {
		sentinels[e.Code] = e
	}
}

// newError builds a coded error carrying key/value metadata.
func newError(code Code, message string, kv ...string) *Error {
	e := &Error{Code: code, Message: message}
	if len(kv) > 0 {
		e.Metadata = make(map[string]string, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			e.Metadata[kv[i]] = kv[i+1]
		}
	}
	return e
}

// FromCode rebuilds a domain error from a code received over the wire.
// Unknown codes yield nil.
func FromCode(code Code, message string, metadata map[string]string) *Error {
	if _, ok := sentinels[code]; !ok {
		return nil
	}
	if message == "" {
		message = sentinels[code].Message
	}
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// Deny builds an INITIATE_DENIED error for initiate guards.
func Deny(reason string, cause error) *Error {
	return &Error{Code: CodeInitiateDenied, Message: "initiate denied: " + reason, Cause: cause}
}

// GetCode extracts the code from err, or CodeUnknown.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}
