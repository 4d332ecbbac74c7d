package validation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"unicode/utf8"

	"github.com/syssam/cayenne"
)

// Viewer represents the user committing changes.
type Viewer interface {
	// GetID returns the viewer's unique identifier.
	GetID() string
	// GetRoles returns the viewer's roles.
	GetRoles() []string
	// GetTenantID returns the viewer's tenant identifier, or "".
	GetTenantID() string
}

type viewerCtxKey struct{}

// WithViewer returns a new context with the viewer attached.
func WithViewer(ctx context.Context, viewer Viewer) context.Context {
	return context.WithValue(ctx, viewerCtxKey{}, viewer)
}

// ViewerFromContext retrieves the viewer from the context, or nil.
func ViewerFromContext(ctx context.Context) Viewer {
	v, _ := ctx.Value(viewerCtxKey{}).(Viewer)
	return v
}

// SimpleViewer is a basic implementation of the Viewer interface.
type SimpleViewer struct {
	UserID   string
	Roles    []string
	TenantID string
}

// GetID returns the user ID.
func (v *SimpleViewer) GetID() string { return v.UserID }

// GetRoles returns the user's roles.
func (v *SimpleViewer) GetRoles() []string { return v.Roles }

// GetTenantID returns the tenant ID.
func (v *SimpleViewer) GetTenantID() string { return v.TenantID }

// DenyIfNoViewer returns a rule that denies changes when no viewer is
// present in the context.
func DenyIfNoViewer() Rule {
	return ContextRule(func(ctx context.Context) error {
		if ViewerFromContext(ctx) == nil {
			return Denyf("cayenne/validation: viewer required")
		}
		return Skip
	})
}

// HasAnyRole returns a rule that allows changes of a viewer having any of
// the roles.
func HasAnyRole(roles ...string) Rule {
	return ContextRule(func(ctx context.Context) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		for _, role := range roles {
			if slices.Contains(viewer.GetRoles(), role) {
				return Allow
			}
		}
		return Skip
	})
}

// HasRole returns a rule that allows changes of a viewer having the role.
func HasRole(role string) Rule {
	return HasAnyRole(role)
}

// IsOwner returns a rule that allows changes of objects whose attribute
// holds the viewer's id.
func IsOwner(attribute string) Rule {
	return RuleFunc(func(ctx context.Context, c *Change) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		v, ok := c.Value(attribute)
		if !ok || v == nil {
			return Skip
		}
		if fmt.Sprint(v) == viewer.GetID() {
			return Allow
		}
		return Skip
	})
}

// TenantRule returns a rule that denies changes of objects whose attribute
// does not hold the viewer's tenant.
func TenantRule(attribute string) Rule {
	return RuleFunc(func(ctx context.Context, c *Change) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil || viewer.GetTenantID() == "" {
			return Skip
		}
		v, ok := c.Value(attribute)
		if !ok {
			return Skip
		}
		if fmt.Sprint(v) == viewer.GetTenantID() {
			return Skip
		}
		return &AttributeError{Attribute: attribute, Message: "tenant mismatch"}
	})
}

// RequireAttributes returns a rule rejecting inserts and updates that
// leave a mandatory attribute null. Generated primary keys are exempt on
// insert.
func RequireAttributes() Rule {
	return OnOperation(RuleFunc(func(_ context.Context, c *Change) error {
		if c.Entity == nil {
			return Skip
		}
		var errs []error
		for _, a := range c.Entity.Attributes {
			if !a.Mandatory && !a.PrimaryKey {
				continue
			}
			if a.PrimaryKey && a.Generated {
				continue
			}
			if c.Op == OpUpdate && !slices.Contains(c.Changed, a.Name) {
				continue
			}
			if v, _ := c.Value(a.Name); isNull(v) {
				errs = append(errs, &AttributeError{Attribute: a.Name, Message: "required value is null"})
			}
		}
		if len(errs) == 0 {
			return Skip
		}
		return errors.Join(errs...)
	}), OpInsert|OpUpdate)
}

// CheckLengths returns a rule rejecting textual and binary values longer
// than the mapped attribute length.
func CheckLengths() Rule {
	return OnOperation(RuleFunc(func(_ context.Context, c *Change) error {
		if c.Entity == nil {
			return Skip
		}
		var errs []error
		for _, a := range c.Entity.Attributes {
			if a.Length <= 0 || a.Type.Numeric() {
				continue
			}
			var n int
			switch v := c.Values[a.Name].(type) {
			case string:
				n = utf8.RuneCountInString(v)
			case []byte:
				n = len(v)
			default:
				continue
			}
			if n > a.Length {
				errs = append(errs, &AttributeError{
					Attribute: a.Name,
					Message:   fmt.Sprintf("value length %d exceeds %d", n, a.Length),
				})
			}
		}
		if len(errs) == 0 {
			return Skip
		}
		return errors.Join(errs...)
	}), OpInsert|OpUpdate)
}

// isNull reports whether v is nil. ObjectIDs stand for values that are
// assigned during commit and are never null.
func isNull(v any) bool {
	if id, ok := v.(cayenne.ObjectID); ok {
		return id.IsZero()
	}
	return v == nil
}
