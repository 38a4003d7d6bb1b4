// Package policy evaluates the optional CEL admission rule consulted before
// a recovery session is opened.
package policy

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/gezibash/arc-guardian/internal/guardian"
	"github.com/gezibash/arc-guardian/pkg/identity"
)

// Variables visible to an initiate policy.
const (
	VarAccount       = "account"
	VarInitiator     = "initiator"
	VarProposedKey   = "proposed_key"
	VarProposedAlgo  = "proposed_algo"
	VarGuardianCount = "guardian_count"
	VarThreshold     = "threshold"
	VarGuardians     = "guardians"
)

const defaultCostLimit = 10_000

// Policy is a compiled initiate rule. The zero value and a Policy compiled
// from an empty expression allow every request.
type Policy struct {
	expr    string
	program cel.Program
}

var _ guardian.InitiateGuard = (*Policy)(nil)

// Compile parses and type-checks expr. The expression must produce a bool.
func Compile(expr string) (*Policy, error) {
	if expr == "" {
		return &Policy{}, nil
	}

	env, err := cel.NewEnv(
		cel.Variable(VarAccount, cel.StringType),
		cel.Variable(VarInitiator, cel.StringType),
		cel.Variable(VarProposedKey, cel.StringType),
		cel.Variable(VarProposedAlgo, cel.StringType),
		cel.Variable(VarGuardianCount, cel.IntType),
		cel.Variable(VarThreshold, cel.IntType),
		cel.Variable(VarGuardians, cel.ListType(cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("cel compile: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(types.BoolType) {
		return nil, fmt.Errorf("cel compile: policy must evaluate to bool, got %s", ast.OutputType())
	}

	prog, err := env.Program(ast,
		cel.CostLimit(defaultCostLimit),
		cel.InterruptCheckFrequency(100),
	)
	if err != nil {
		return nil, fmt.Errorf("cel program: %w", err)
	}
	return &Policy{expr: expr, program: prog}, nil
}

// Expr returns the source expression, empty for the allow-all policy.
func (p *Policy) Expr() string { return p.expr }

// AllowInitiate evaluates the rule for req. A false result, a non-bool
// result or an evaluation error all deny the request.
func (p *Policy) AllowInitiate(ctx context.Context, req guardian.InitiateRequest) error {
	if p == nil || p.program == nil {
		return nil
	}

	out, _, err := p.program.ContextEval(ctx, Activation(req))
	if err != nil {
		return guardian.Deny("policy evaluation failed", err)
	}
	allowed, ok := out.Value().(bool)
	if !ok {
		return guardian.Deny(fmt.Sprintf("policy returned %s, not bool", out.Type().TypeName()), nil)
	}
	if !allowed {
		return guardian.Deny("rejected by initiate policy", nil)
	}
	return nil
}

// Activation builds the CEL variable bindings for req.
func Activation(req guardian.InitiateRequest) map[string]any {
	guardians := make([]string, len(req.Guardians.Guardians))
	for i, g := range req.Guardians.Guardians {
		guardians[i] = string(g)
	}
	return map[string]any{
		VarAccount:       string(req.Account),
		VarInitiator:     string(req.Initiator),
		VarProposedKey:   identity.EncodePublicKey(req.ProposedKey),
		VarProposedAlgo:  string(req.ProposedKey.Algo),
		VarGuardianCount: int64(len(req.Guardians.Guardians)),
		VarThreshold:     int64(req.Guardians.Threshold),
		VarGuardians:     guardians,
	}
}
