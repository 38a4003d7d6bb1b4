package client

import (
	"context"
	"time"

	"github.com/gezibash/arc-guardian/internal/guardian"
	"github.com/gezibash/arc-guardian/pkg/guardianapi"
	"github.com/gezibash/arc-guardian/pkg/identity"
)

// Register initializes the guardian set of the signing account.
func (c *Client) Register(ctx context.Context, guardians []string, threshold int) (time.Time, error) {
	resp, err := call[guardianapi.RegisterResponse](ctx, c, guardianapi.MethodRegister, guardianapi.RegisterRequest{
		Account:   string(c.Account()),
		Guardians: guardians,
		Threshold: threshold,
	})
	return resp.RegisteredAt, err
}

// Initiate opens a recovery session proposing proposedKey for account.
func (c *Client) Initiate(ctx context.Context, account string, proposedKey identity.PublicKey) (guardian.SessionID, error) {
	resp, err := call[guardianapi.InitiateResponse](ctx, c, guardianapi.MethodInitiate, guardianapi.InitiateRequest{
		Account:     account,
		ProposedKey: identity.EncodePublicKey(proposedKey),
	})
	if err != nil {
		return 0, err
	}
	return guardian.ParseSessionID(resp.SessionID)
}

// Approve records the signing guardian's approval of session id.
func (c *Client) Approve(ctx context.Context, id guardian.SessionID) (guardianapi.Session, error) {
	return c.sessionCall(ctx, guardianapi.MethodApprove, id)
}

// Session returns the current state of session id.
func (c *Client) Session(ctx context.Context, id guardian.SessionID) (guardianapi.Session, error) {
	return c.sessionCall(ctx, guardianapi.MethodGetSession, id)
}

// Finalize closes an approved session.
func (c *Client) Finalize(ctx context.Context, id guardian.SessionID) (guardianapi.Session, error) {
	return c.sessionCall(ctx, guardianapi.MethodFinalize, id)
}

func (c *Client) IsApproved(ctx context.Context, id guardian.SessionID) (bool, error) {
	resp, err := call[guardianapi.IsApprovedResponse](ctx, c, guardianapi.MethodIsApproved, guardianapi.SessionRequest{SessionID: id.String()})
	return resp.Approved, err
}

func (c *Client) Guardians(ctx context.Context, account string) ([]string, error) {
	resp, err := call[guardianapi.GuardiansResponse](ctx, c, guardianapi.MethodGetGuardians, guardianapi.AccountRequest{Account: account})
	return resp.Guardians, err
}

func (c *Client) Threshold(ctx context.Context, account string) (int, error) {
	resp, err := call[guardianapi.ThresholdResponse](ctx, c, guardianapi.MethodGetThreshold, guardianapi.AccountRequest{Account: account})
	return resp.Threshold, err
}

func (c *Client) HasGuardians(ctx context.Context, account string) (bool, error) {
	resp, err := call[guardianapi.HasGuardiansResponse](ctx, c, guardianapi.MethodHasGuardians, guardianapi.AccountRequest{Account: account})
	return resp.HasGuardians, err
}

// ActiveSession returns the open session of account, if any.
func (c *Client) ActiveSession(ctx context.Context, account string) (guardian.SessionID, bool, error) {
	resp, err := call[guardianapi.ActiveSessionResponse](ctx, c, guardianapi.MethodGetActiveSession, guardianapi.AccountRequest{Account: account})
	if err != nil || !resp.Active {
		return 0, false, err
	}
	id, err := guardian.ParseSessionID(resp.SessionID)
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (c *Client) sessionCall(ctx context.Context, method string, id guardian.SessionID) (guardianapi.Session, error) {
	resp, err := call[guardianapi.SessionResponse](ctx, c, method, guardianapi.SessionRequest{SessionID: id.String()})
	return resp.Session, err
}
