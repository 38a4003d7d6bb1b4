package guardianapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// RegisterRequest asks to initialize the caller's guardian set.
type RegisterRequest struct {
	Account   string   `json:"account"`
	Guardians []string `json:"guardians"`
	Threshold int      `json:"threshold"`
}

// RegisterResponse acknowledges a registration.
type RegisterResponse struct {
	RegisteredAt time.Time `json:"registered_at,omitzero"`
}

// InitiateRequest opens a recovery session for Account.
type InitiateRequest struct {
	Account     string `json:"account"`
	ProposedKey string `json:"proposed_key"`
}

// InitiateResponse carries the new session's ID.
type InitiateResponse struct {
	SessionID string `json:"session_id"`
}

// SessionRequest names a session. Approve, IsApproved, GetSession and
// Finalize all take one.
type SessionRequest struct {
	SessionID string `json:"session_id"`
}

// AccountRequest names an account. GetGuardians, GetThreshold,
// HasGuardians and GetActiveSession all take one.
type AccountRequest struct {
	Account string `json:"account"`
}

// Session is the wire view of a recovery session.
type Session struct {
	ID            string    `json:"id"`
	Account       string    `json:"account"`
	ProposedKey   string    `json:"proposed_key"`
	Initiator     string    `json:"initiator,omitempty"`
	ApprovalCount int       `json:"approval_count"`
	Threshold     int       `json:"threshold,omitempty"`
	Approved      bool      `json:"approved"`
	Approvers     []string  `json:"approvers"`
	Finalized     bool      `json:"finalized"`
	CreatedAt     time.Time `json:"created_at,omitzero"`
	ApprovedAt    time.Time `json:"approved_at,omitzero"`
	FinalizedAt   time.Time `json:"finalized_at,omitzero"`
}

// SessionResponse returns a session; used by Approve, GetSession and Finalize.
type SessionResponse struct {
	Session Session `json:"session"`
}

// IsApprovedResponse reports whether a session reached its threshold.
type IsApprovedResponse struct {
	Approved bool `json:"approved"`
}

// GuardiansResponse lists an account's guardians.
type GuardiansResponse struct {
	Guardians []string `json:"guardians"`
}

// ThresholdResponse carries an account's approval threshold.
type ThresholdResponse struct {
	Threshold int `json:"threshold"`
}

// HasGuardiansResponse reports whether an account registered guardians.
type HasGuardiansResponse struct {
	HasGuardians bool `json:"has_guardians"`
}

// ActiveSessionResponse reports the account's open session, if any.
type ActiveSessionResponse struct {
	Active    bool   `json:"active"`
	SessionID string `json:"session_id,omitempty"`
}

func (m RegisterRequest) Encode() (*structpb.Struct, error)       { return encode(m) }
func (m RegisterResponse) Encode() (*structpb.Struct, error)      { return encode(m) }
func (m InitiateRequest) Encode() (*structpb.Struct, error)       { return encode(m) }
func (m InitiateResponse) Encode() (*structpb.Struct, error)      { return encode(m) }
func (m SessionRequest) Encode() (*structpb.Struct, error)        { return encode(m) }
func (m AccountRequest) Encode() (*structpb.Struct, error)        { return encode(m) }
func (m SessionResponse) Encode() (*structpb.Struct, error)       { return encode(m) }
func (m IsApprovedResponse) Encode() (*structpb.Struct, error)    { return encode(m) }
func (m GuardiansResponse) Encode() (*structpb.Struct, error)     { return encode(m) }
func (m ThresholdResponse) Encode() (*structpb.Struct, error)     { return encode(m) }
func (m HasGuardiansResponse) Encode() (*structpb.Struct, error)  { return encode(m) }
func (m ActiveSessionResponse) Encode() (*structpb.Struct, error) { return encode(m) }

// Decode parses s into a message of type T. Unknown fields are rejected.
func Decode[T any](s *structpb.Struct) (T, error) {
	var out T
	if s == nil {
		return out, nil
	}
	b, err := protojson.Marshal(s)
	if err != nil {
		return out, fmt.Errorf("decode %T: %w", out, err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, fmt.Errorf("decode %T: %w", out, err)
	}
	return out, nil
}

func encode(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	s := new(structpb.Struct)
	if err := protojson.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return s, nil
}
