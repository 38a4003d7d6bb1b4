package guardian

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
)

func TestCodeGRPCMapping(t *testing.T) {
	tests := map[Code]codes.Code{
		CodeNotOwner:              codes.PermissionDenied,
		CodeNotGuardian:           codes.PermissionDenied,
		CodeInitiateDenied:        codes.PermissionDenied,
		CodeInvalidGuardianSet:    codes.InvalidArgument,
		CodeInvalidThreshold:      codes.InvalidArgument,
		CodeInvalidProposedKey:    codes.InvalidArgument,
		CodeAlreadyInitialized:    codes.AlreadyExists,
		CodeAlreadyApproved:       codes.AlreadyExists,
		CodeNotInitialized:        codes.FailedPrecondition,
		CodeRecoveryAlreadyActive: codes.FailedPrecondition,
		CodeThresholdNotMet:       codes.FailedPrecondition,
		CodeSessionClosed:         codes.FailedPrecondition,
		CodeSessionNotFound:       codes.NotFound,
		CodeUnknown:               codes.Internal,
	}
	for code, want := range tests {
		if got := code.GRPCCode(); got != want {
			t.Errorf("%s.GRPCCode() = %v, want %v", code, got, want)
		}
	}
}

func TestErrorMatchesByCode(t *testing.T) {
	err := newError(CodeNotGuardian, "caller g9 is not a guardian", "caller", "g9")
	wrapped := fmt.Errorf("approve: %w", err)

	if !errors.Is(wrapped, ErrNotGuardian) {
		t.Fatal("wrapped error does not match sentinel")
	}
	if errors.Is(wrapped, ErrNotOwner) {
		t.Fatal("matched the wrong sentinel")
	}
	if GetCode(wrapped) != CodeNotGuardian {
		t.Fatalf("GetCode = %s", GetCode(wrapped))
	}
	if GetCode(errors.New("disk")) != CodeUnknown {
		t.Fatal("plain error has a code")
	}
	if err.Metadata["caller"] != "g9" || err.ErrorCode() != "NOT_GUARDIAN" {
		t.Fatalf("error = %+v", err)
	}
}

func TestErrorCause(t *testing.T) {
	cause := errors.New("cel: no such attribute")
	err := Deny("policy error", cause)
	if !errors.Is(err, cause) || !errors.Is(err, ErrInitiateDenied) {
		t.Fatalf("Deny lost its identity: %v", err)
	}
	if err.Error() != "initiate denied: policy error: cel: no such attribute" {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestFromCode(t *testing.T) {
	e := FromCode(CodeThresholdNotMet, "", map[string]string{"session_id": "3"})
	if e == nil || !errors.Is(e, ErrThresholdNotMet) || e.Message != ErrThresholdNotMet.Message {
		t.Fatalf("FromCode = %+v", e)
	}
	if FromCode("SOMETHING_ELSE", "x", nil) != nil {
		t.Fatal("unknown code produced an error")
	}
}

func TestParseSessionID(t *testing.T) {
	id, err := ParseSessionID("42")
	if err != nil || id != 42 || id.String() != "42" {
		t.Fatalf("ParseSessionID = %d, %v", id, err)
	}
	for _, bad := range []string{"", "0", "-1", "abc", "1.5"} {
		if _, err := ParseSessionID(bad); err == nil {
			t.Errorf("ParseSessionID(%q) succeeded", bad)
		}
	}
}
