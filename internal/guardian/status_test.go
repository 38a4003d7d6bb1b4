package guardian

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestStatusRoundTrip(t *testing.T) {
	orig := newError(CodeAlreadyApproved, "guardian already approved this session", "session_id", "4")
	wire := status.Convert(fmt.Errorf("approve: %w", orig)).Err()

	if status.Code(wire) != codes.AlreadyExists {
		t.Fatalf("code = %v", status.Code(wire))
	}
	back := FromStatus(wire)
	if !errors.Is(back, ErrAlreadyApproved) {
		t.Fatalf("FromStatus = %v", back)
	}
	var e *Error
	if !errors.As(back, &e) || e.Metadata["session_id"] != "4" {
		t.Fatalf("metadata lost: %+v", e)
	}
}

func TestFromStatusPassThrough(t *testing.T) {
	plain := status.Error(codes.Unavailable, "down")
	if got := FromStatus(plain); got != plain {
		t.Fatalf("plain status changed: %v", got)
	}
	other := errors.New("dial")
	if got := FromStatus(other); got != other {
		t.Fatalf("non-status error changed: %v", got)
	}
	if FromStatus(nil) != nil {
		t.Fatal("nil became an error")
	}
}
