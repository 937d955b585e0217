package privacy

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/syssam/unigraph/dialect"
)

// Policy decisions returned by rules. Match them with errors.Is.
var (
	// Allow terminates evaluation and permits the operation.
	Allow = errors.New("privacy: allow rule")

	// Deny terminates evaluation and rejects the operation.
	Deny = errors.New("privacy: deny rule")

	// Skip passes the decision to the next rule.
	Skip = errors.New("privacy: skip rule")
)

// Allowf returns a formatted decision wrapping Allow.
func Allowf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Allow)...)
}

// Denyf returns a formatted decision wrapping Deny.
func Denyf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Deny)...)
}

// Skipf returns a formatted decision wrapping Skip.
func Skipf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Skip)...)
}

// Operation describes the call being authorized.
type Operation struct {
	Dialect  string
	Database string // Config.Database of the graph, possibly empty.
	Name     string // e.g. "create-vertex", "execute-query", "create-index"
	Class    dialect.OpClass
}

// Rule decides whether an operation may run.
type Rule interface {
	Eval(context.Context, Operation) error
}

// RuleFunc adapts a function to Rule.
type RuleFunc func(context.Context, Operation) error

// Eval returns f(ctx, op).
func (f RuleFunc) Eval(ctx context.Context, op Operation) error {
	return f(ctx, op)
}

// Policy is an ordered list of rules.
type Policy []Rule

// Eval evaluates the rules in order. It returns nil when the operation is
// allowed, and the deciding error otherwise. A decision stored in the
// context with DecisionContext takes precedence over the rules.
func (p Policy) Eval(ctx context.Context, op Operation) error {
	if decision, ok := DecisionFromContext(ctx); ok {
		return decision
	}
	for _, rule := range p {
		switch decision := rule.Eval(ctx, op); {
		case decision == nil || errors.Is(decision, Skip):
		case errors.Is(decision, Allow):
			return nil
		default:
			return decision
		}
	}
	return nil
}

// Policies evaluates several policies in order; the first policy returning
// Allow or Deny decides.
type Policies []Policy

// Eval implements Rule.
func (ps Policies) Eval(ctx context.Context, op Operation) error {
	if decision, ok := DecisionFromContext(ctx); ok {
		return decision
	}
	for _, p := range ps {
		for _, rule := range p {
			switch decision := rule.Eval(ctx, op); {
			case decision == nil || errors.Is(decision, Skip):
				continue
			case errors.Is(decision, Allow):
				return nil
			default:
				return decision
			}
		}
	}
	return nil
}

type decisionCtxKey struct{}

// DecisionContext returns a context carrying a fixed decision, typically
// Allow for internal jobs that bypass the policy.
func DecisionContext(parent context.Context, decision error) context.Context {
	if decision == nil || errors.Is(decision, Skip) {
		return parent
	}
	return context.WithValue(parent, decisionCtxKey{}, decision)
}

// DecisionFromContext retrieves the decision stored by DecisionContext. An
// Allow decision is reported as nil.
func DecisionFromContext(ctx context.Context) (error, bool) {
	decision, ok := ctx.Value(decisionCtxKey{}).(error)
	if ok && errors.Is(decision, Allow) {
		decision = nil
	}
	return decision, ok
}

// AlwaysAllowRule returns a rule that allows every operation.
func AlwaysAllowRule() Rule {
	return RuleFunc(func(context.Context, Operation) error { return Allow })
}

// AlwaysDenyRule returns a rule that denies every operation.
func AlwaysDenyRule() Rule {
	return RuleFunc(func(_ context.Context, op Operation) error {
		return Denyf("privacy: %s is not allowed", op.Name)
	})
}

// ContextRule builds a rule from a function of the context only.
func ContextRule(eval func(context.Context) error) Rule {
	return RuleFunc(func(ctx context.Context, _ Operation) error { return eval(ctx) })
}

// OnClass evaluates rule only for operations of the given classes and skips
// the others.
func OnClass(rule Rule, classes ...dialect.OpClass) Rule {
	return RuleFunc(func(ctx context.Context, op Operation) error {
		if slices.Contains(classes, op.Class) {
			return rule.Eval(ctx, op)
		}
		return Skip
	})
}

// OnOperation evaluates rule only for the named operations.
func OnOperation(rule Rule, names ...string) Rule {
	return RuleFunc(func(ctx context.Context, op Operation) error {
		if slices.Contains(names, op.Name) {
			return rule.Eval(ctx, op)
		}
		return Skip
	})
}

// schemaWrites are the schema operations that change definitions.
var schemaWrites = []string{
	"define-vertex-label", "define-edge-label", "define-edge-type",
	"create-index", "drop-index", "create-container",
}

// DenyWrites denies vertex, edge and schema writes. Native queries are not
// covered since their effect is unknown; combine with OnClass to deny them.
func DenyWrites() Rule {
	return RuleFunc(func(_ context.Context, op Operation) error {
		if op.Class == dialect.ClassWrite || op.Class == dialect.ClassSchema && slices.Contains(schemaWrites, op.Name) {
			return Denyf("privacy: %s is a write", op.Name)
		}
		return Skip
	})
}
