package guardian

import (
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/status"
)

// GRPCStatus converts e to a gRPC status carrying an ErrorInfo detail whose
// Reason is the error code. status.FromError and status.Code pick this up
// through wrapping.
func (e *Error) GRPCStatus() *status.Status {
	st := status.New(e.Code.GRPCCode(), e.Error())
	detailed, err := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   string(e.Code),
		Domain:   Domain,
		Metadata: e.Metadata,
	})
	if err != nil {
		return st
	}
	return detailed
}

// FromStatus maps a gRPC error carrying a guardian ErrorInfo back to the
// matching *Error so errors.Is works against the sentinels. Other errors
// are returned unchanged.
func FromStatus(err error) error {
	if err == nil {
		return nil
	}
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return err
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != Domain {
			continue
		}
		if e := FromCode(Code(info.GetReason()), st.Message(), info.GetMetadata()); e != nil {
			return e
		}
	}
	return err
}
