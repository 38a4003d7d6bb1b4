package server

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/gezibash/arc-guardian/internal/envelope"
	"github.com/gezibash/arc-guardian/internal/guardian"
	"github.com/gezibash/arc-guardian/internal/kvstore"
	"github.com/gezibash/arc-guardian/internal/middleware"
	"github.com/gezibash/arc-guardian/pkg/guardianapi"
	"github.com/gezibash/arc-guardian/pkg/identity"
)

type guardianService struct {
	registry *guardian.Registry
	recovery *guardian.Recovery
	logger   *slog.Logger
}

var _ guardianapi.GuardianServiceServer = (*guardianService)(nil)

func (s *guardianService) Register(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	req, err := guardianapi.Decode[guardianapi.RegisterRequest](in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	account := caller
	if req.Account != "" {
		if account, err = parseAccount(req.Account); err != nil {
			return nil, err
		}
	}
	if err := guardian.CheckOwner(caller, account); err != nil {
		return nil, err
	}
	guardians := make([]guardian.Account, len(req.Guardians))
	for i, g := range req.Guardians {
		a, err := guardian.ParseAccount(g)
		if err != nil {
			return nil, &guardian.Error{Code: guardian.CodeInvalidGuardianSet, Message: "invalid guardian set", Cause: err}
		}
		guardians[i] = a
	}

	if err := s.registry.Register(ctx, caller, account, guardians, req.Threshold); err != nil {
		return nil, s.rpcError(ctx, err)
	}
	gs, err := s.registry.Lookup(ctx, account)
	if err != nil {
		return nil, s.rpcError(ctx, err)
	}
	return guardianapi.RegisterResponse{RegisteredAt: gs.RegisteredAt}.Encode()
}

func (s *guardianService) Initiate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := guardianapi.Decode[guardianapi.InitiateRequest](in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	account, err := parseAccount(req.Account)
	if err != nil {
		return nil, err
	}
	proposed, err := identity.DecodePublicKey(req.ProposedKey)
	if err != nil {
		return nil, &guardian.Error{Code: guardian.CodeInvalidProposedKey, Message: "invalid proposed key", Cause: err}
	}

	initiator, _ := callerAccount(ctx)
	id, err := s.recovery.Initiate(ctx, initiator, account, proposed)
	if err != nil {
		return nil, s.rpcError(ctx, err)
	}
	return guardianapi.InitiateResponse{SessionID: id.String()}.Encode()
}

func (s *guardianService) Approve(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	id, err := decodeSessionID(in)
	if err != nil {
		return nil, err
	}
	sess, err := s.recovery.Approve(ctx, id, caller)
	if err != nil {
		return nil, s.rpcError(ctx, err)
	}
	return s.sessionResponse(ctx, sess)
}

func (s *guardianService) IsApproved(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := decodeSessionID(in)
	if err != nil {
		return nil, err
	}
	ok, err := s.recovery.IsApproved(ctx, id)
	if err != nil {
		return nil, s.rpcError(ctx, err)
	}
	return guardianapi.IsApprovedResponse{Approved: ok}.Encode()
}

func (s *guardianService) GetSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := decodeSessionID(in)
	if err != nil {
		return nil, err
	}
	sess, err := s.recovery.SessionInfo(ctx, id)
	if err != nil {
		return nil, s.rpcError(ctx, err)
	}
	return s.sessionResponse(ctx, sess)
}

func (s *guardianService) Finalize(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := decodeSessionID(in)
	if err != nil {
		return nil, err
	}
	sess, err := s.recovery.Finalize(ctx, id)
	if err != nil {
		return nil, s.rpcError(ctx, err)
	}
	return s.sessionResponse(ctx, sess)
}

func (s *guardianService) GetGuardians(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	account, err := decodeAccount(in)
	if err != nil {
		return nil, err
	}
	guardians, err := s.registry.Guardians(ctx, account)
	if err != nil {
		return nil, s.rpcError(ctx, err)
	}
	return guardianapi.GuardiansResponse{Guardians: accountStrings(guardians)}.Encode()
}

func (s *guardianService) GetThreshold(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	account, err := decodeAccount(in)
	if err != nil {
		return nil, err
	}
	threshold, err := s.registry.Threshold(ctx, account)
	if err != nil {
		return nil, s.rpcError(ctx, err)
	}
	return guardianapi.ThresholdResponse{Threshold: threshold}.Encode()
}

func (s *guardianService) HasGuardians(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	account, err := decodeAccount(in)
	if err != nil {
		return nil, err
	}
	ok, err := s.registry.HasGuardians(ctx, account)
	if err != nil {
		return nil, s.rpcError(ctx, err)
	}
	return guardianapi.HasGuardiansResponse{HasGuardians: ok}.Encode()
}

func (s *guardianService) GetActiveSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	account, err := decodeAccount(in)
	if err != nil {
		return nil, err
	}
	id, ok, err := s.recovery.ActiveSession(ctx, account)
	if err != nil {
		return nil, s.rpcError(ctx, err)
	}
	resp := guardianapi.ActiveSessionResponse{Active: ok}
	if ok {
		resp.SessionID = id.String()
	}
	return resp.Encode()
}

func (s *guardianService) sessionResponse(ctx context.Context, sess guardian.Session) (*structpb.Struct, error) {
	wire := guardianapi.Session{
		ID:            sess.ID.String(),
		Account:       string(sess.Account),
		ProposedKey:   identity.EncodePublicKey(sess.ProposedKey),
		Initiator:     string(sess.Initiator),
		ApprovalCount: sess.ApprovalCount,
		Approved:      sess.Approved,
		Approvers:     accountStrings(sess.Approvers),
		Finalized:     sess.Finalized,
		CreatedAt:     sess.CreatedAt,
		ApprovedAt:    sess.ApprovedAt,
		FinalizedAt:   sess.FinalizedAt,
	}
	threshold, err := s.registry.Threshold(ctx, sess.Account)
	if err != nil {
		s.logger.WarnContext(ctx, "session threshold lookup failed",
			"session_id", sess.ID,
			"error", err,
			"request_id", middleware.RequestIDFrom(ctx),
		)
	} else {
		wire.Threshold = threshold
	}
	return guardianapi.SessionResponse{Session: wire}.Encode()
}

// rpcError converts core errors to gRPC statuses. Domain errors carry their
// own status; anything else is logged and hidden behind Internal.
func (s *guardianService) rpcError(ctx context.Context, err error) error {
	var domainErr *guardian.Error
	switch {
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, kvstore.ErrConflict):
		return status.Error(codes.Aborted, "storage contention, retry the request")
	default:
		s.logger.ErrorContext(ctx, "guardian request failed",
			"error", err,
			"request_id", middleware.RequestIDFrom(ctx),
		)
		return status.Error(codes.Internal, "internal error")
	}
}

func callerAccount(ctx context.Context) (guardian.Account, bool) {
	c, ok := envelope.GetCaller(ctx)
	if !ok {
		return "", false
	}
	return guardian.AccountFromPublicKey(c.PublicKey), true
}

func requireCaller(ctx context.Context) (guardian.Account, error) {
	a, ok := callerAccount(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "signed request required")
	}
	return a, nil
}

func parseAccount(s string) (guardian.Account, error) {
	if s == "" {
		return "", status.Error(codes.InvalidArgument, "account required")
	}
	a, err := guardian.ParseAccount(s)
	if err != nil {
		return "", status.Error(codes.InvalidArgument, err.Error())
	}
	return a, nil
}

func decodeAccount(in *structpb.Struct) (guardian.Account, error) {
	req, err := guardianapi.Decode[guardianapi.AccountRequest](in)
	if err != nil {
		return "", status.Error(codes.InvalidArgument, err.Error())
	}
	return parseAccount(req.Account)
}

func decodeSessionID(in *structpb.Struct) (guardian.SessionID, error) {
	req, err := guardianapi.Decode[guardianapi.SessionRequest](in)
	if err != nil {
		return 0, status.Error(codes.InvalidArgument, err.Error())
	}
	id, err := guardian.ParseSessionID(req.SessionID)
	if err != nil {
		return 0, status.Error(codes.InvalidArgument, err.Error())
	}
	return id, nil
}

func accountStrings(as []guardian.Account) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = string(a)
	}
	return out
}
