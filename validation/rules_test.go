package validation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/cayenne/validation"
)

func TestViewerContext(t *testing.T) {
	viewer := &validation.SimpleViewer{UserID: "user-123", Roles: []string{"admin"}, TenantID: "acme"}
	ctx := validation.WithViewer(context.Background(), viewer)
	got := validation.ViewerFromContext(ctx)
	require.NotNil(t, got)
	assert.Equal(t, "user-123", got.GetID())
	assert.Equal(t, []string{"admin"}, got.GetRoles())
	assert.Equal(t, "acme", got.GetTenantID())
	assert.Nil(t, validation.ViewerFromContext(context.Background()))
}

func TestViewerRules(t *testing.T) {
	c := change(validation.OpUpdate, "Artist", map[string]any{"artistName": "user-123", "dateOfBirth": "acme"})
	anon := context.Background()
	admin := validation.WithViewer(anon, &validation.SimpleViewer{UserID: "user-123", Roles: []string{"admin"}, TenantID: "acme"})
	guest := validation.WithViewer(anon, &validation.SimpleViewer{UserID: "user-9", Roles: []string{"guest"}, TenantID: "other"})

	tests := []struct {
		name string
		rule validation.Rule
		ctx  context.Context
		want error
	}{
		{"no viewer denied", validation.DenyIfNoViewer(), anon, validation.Deny},
		{"viewer skips", validation.DenyIfNoViewer(), admin, validation.Skip},
		{"role allows", validation.HasRole("admin"), admin, validation.Allow},
		{"role skips", validation.HasRole("admin"), guest, validation.Skip},
		{"any role", validation.HasAnyRole("editor", "guest"), guest, validation.Allow},
		{"any role without viewer", validation.HasAnyRole("guest"), anon, validation.Skip},
		{"owner", validation.IsOwner("artistName"), admin, validation.Allow},
		{"not owner", validation.IsOwner("artistName"), guest, validation.Skip},
		{"owner unknown attribute", validation.IsOwner("nickname"), admin, validation.Skip},
		{"tenant match", validation.TenantRule("dateOfBirth"), admin, validation.Skip},
		{"tenant mismatch", validation.TenantRule("dateOfBirth"), guest, validation.Deny},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.rule.Eval(tt.ctx, c), tt.want)
		})
	}
}
