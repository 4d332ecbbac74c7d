package validation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/syssam/cayenne"
	"github.com/syssam/cayenne/mapping"
)

// Decision sentinel errors. Rules return them, possibly wrapped, and
// callers check them with errors.Is.
var (
	// Allow terminates the evaluation and accepts the change.
	Allow = errors.New("cayenne/validation: allow rule")

	// Deny terminates the evaluation and rejects the change.
	Deny = errors.New("cayenne/validation: deny rule")

	// Skip continues the evaluation with the next rule.
	Skip = errors.New("cayenne/validation: skip rule")
)

// Allowf returns a formatted wrapped Allow decision.
func Allowf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Allow)...)
}

// Denyf returns a formatted wrapped Deny decision.
func Denyf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Deny)...)
}

// Skipf returns a formatted wrapped Skip decision.
func Skipf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Skip)...)
}

// Op is the operation of a change. Ops are bit flags so a rule can
// target several of them.
type Op uint

// Change operations.
const (
	OpInsert Op = 1 << iota
	OpUpdate
	OpDelete
)

// Is reports whether o matches any of the operations in op.
func (o Op) Is(op Op) bool { return o&op != 0 }

// String returns the operation names joined by "|".
func (o Op) String() string {
	var ops []string
	for _, x := range []struct {
		op   Op
		name string
	}{{OpInsert, "insert"}, {OpUpdate, "update"}, {OpDelete, "delete"}} {
		if o.Is(x.op) {
			ops = append(ops, x.name)
		}
	}
	if len(ops) == 0 {
		return fmt.Sprintf("Op(%d)", uint(o))
	}
	return strings.Join(ops, "|")
}

// Change is one object change submitted for commit.
type Change struct {
	Op     Op
	Entity *mapping.Entity
	ID     cayenne.ObjectID
	// Values holds the attribute values the object will have after the
	// change, keyed by attribute name. Values of keys that are generated
	// or derived from uncommitted objects are not known yet and hold the
	// ObjectID of the object they come from.
	Values map[string]any
	// Changed lists the attributes set since the last commit.
	Changed []string
}

// Value returns the value of an attribute and whether it is set.
func (c *Change) Value(name string) (any, bool) {
	v, ok := c.Values[name]
	return v, ok
}

// EntityName returns the name of the changed entity.
func (c *Change) EntityName() string {
	if c.Entity == nil {
		return c.ID.Entity()
	}
	return c.Entity.Name
}

type (
	// Rule decides whether a change is accepted.
	Rule interface {
		Eval(context.Context, *Change) error
	}

	// RuleFunc is an adapter which allows the use of ordinary functions
	// as rules.
	RuleFunc func(context.Context, *Change) error

	// Policy combines multiple rules into a single rule.
	Policy []Rule
)

// Eval returns f(ctx, c).
func (f RuleFunc) Eval(ctx context.Context, c *Change) error {
	return f(ctx, c)
}

// Eval evaluates the rules in order and returns the first decision that
// is not Skip. A nil rule result counts as Skip.
func (p Policy) Eval(ctx context.Context, c *Change) error {
	for _, rule := range p {
		switch decision := rule.Eval(ctx, c); {
		case decision == nil || errors.Is(decision, Skip):
		default:
			return decision
		}
	}
	return nil
}

// Policies combines multiple policies, such as a domain-wide policy and an
// entity policy. Evaluation stops at the first Allow or Deny.
type Policies []Rule

// Eval evaluates the policies in order. An Allow decision ends the
// evaluation with a nil error.
func (ps Policies) Eval(ctx context.Context, c *Change) error {
	if decision, ok := DecisionFromContext(ctx); ok {
		return decision
	}
	for _, p := range ps {
		switch decision := p.Eval(ctx, c); {
		case decision == nil || errors.Is(decision, Skip):
		case errors.Is(decision, Allow):
			return nil
		default:
			return decision
		}
	}
	return nil
}

// AlwaysAllowRule returns a rule that accepts every change.
func AlwaysAllowRule() Rule {
	return fixedDecision{Allow}
}

// AlwaysDenyRule returns a rule that rejects every change.
func AlwaysDenyRule() Rule {
	return fixedDecision{Deny}
}

// ContextRule creates a rule from a context evaluation function.
func ContextRule(eval func(context.Context) error) Rule {
	return RuleFunc(func(ctx context.Context, _ *Change) error {
		return eval(ctx)
	})
}

// OnOperation evaluates the given rule only on the given operations.
func OnOperation(rule Rule, op Op) Rule {
	return RuleFunc(func(ctx context.Context, c *Change) error {
		if c.Op.Is(op) {
			return rule.Eval(ctx, c)
		}
		return Skip
	})
}

// OnEntity evaluates the given rule only on changes of the named entities.
func OnEntity(rule Rule, entities ...string) Rule {
	return RuleFunc(func(ctx context.Context, c *Change) error {
		name := c.EntityName()
		for _, e := range entities {
			if e == name {
				return rule.Eval(ctx, c)
			}
		}
		return Skip
	})
}

// DenyOperationRule returns a rule denying the given operations.
func DenyOperationRule(op Op) Rule {
	rule := RuleFunc(func(_ context.Context, c *Change) error {
		return Denyf("cayenne/validation: operation %s is not allowed", c.Op)
	})
	return OnOperation(rule, op)
}

// AllowOperationRule returns a rule allowing the given operations.
func AllowOperationRule(op Op) Rule {
	rule := RuleFunc(func(context.Context, *Change) error {
		return Allow
	})
	return OnOperation(rule, op)
}

type decisionCtxKey struct{}

// DecisionContext creates a new context from the given parent context with
// a decision attached to it. Policies return it without evaluating rules.
func DecisionContext(parent context.Context, decision error) context.Context {
	if decision == nil || errors.Is(decision, Skip) {
		return parent
	}
	return context.WithValue(parent, decisionCtxKey{}, decision)
}

// DecisionFromContext retrieves the decision from the context.
func DecisionFromContext(ctx context.Context) (error, bool) {
	decision, ok := ctx.Value(decisionCtxKey{}).(error)
	if ok && errors.Is(decision, Allow) {
		decision = nil
	}
	return decision, ok
}

type fixedDecision struct {
	decision error
}

func (f fixedDecision) Eval(context.Context, *Change) error {
	return f.decision
}

// AttributeError rejects one attribute of a change. It wraps Deny.
type AttributeError struct {
	Attribute string
	Message   string
}

// Error returns the error string.
func (e *AttributeError) Error() string {
	return e.Attribute + ": " + e.Message
}

// Unwrap returns Deny.
func (e *AttributeError) Unwrap() error {
	return Deny
}

// Validate evaluates rule against every change and collects the rejected
// ones into a *cayenne.ValidationError. It returns nil when all changes
// are accepted.
func Validate(ctx context.Context, rule Rule, changes []*Change) error {
	if rule == nil {
		return nil
	}
	var failures []cayenne.Failure
	for _, c := range changes {
		decision := rule.Eval(ctx, c)
		if decision == nil || errors.Is(decision, Skip) || errors.Is(decision, Allow) {
			continue
		}
		failures = append(failures, failuresOf(c, decision)...)
	}
	if len(failures) == 0 {
		return nil
	}
	return &cayenne.ValidationError{Failures: failures, Err: Deny}
}

// failuresOf flattens a decision into failures. Joined attribute errors
// produce one failure each.
func failuresOf(c *Change, err error) []cayenne.Failure {
	var id any
	if !c.ID.IsZero() {
		id = c.ID
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var fs []cayenne.Failure
		for _, e := range joined.Unwrap() {
			fs = append(fs, failuresOf(c, e)...)
		}
		return fs
	}
	f := cayenne.Failure{Entity: c.EntityName(), ID: id, Message: err.Error()}
	var ae *AttributeError
	if errors.As(err, &ae) {
		f.Attribute, f.Message = ae.Attribute, ae.Message
	}
	return []cayenne.Failure{f}
}
