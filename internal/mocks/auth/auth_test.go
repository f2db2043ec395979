package auth

import (
	"context"
	"testing"

	domainauth "github.com/publicvoice/portal/internal/domain/auth"
	apperrors "github.com/publicvoice/portal/internal/errors"
	"github.com/publicvoice/portal/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTokenStore_SetGetClear(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryTokenStore("")
	assert.Empty(t, s.Get(ctx))

	require.NoError(t, s.Set(ctx, "T1"))
	assert.Equal(t, "T1", s.Get(ctx))

	require.NoError(t, s.Set(ctx, ""))
	require.NoError(t, s.Set(ctx, ""))
	assert.Empty(t, s.Get(ctx))
	assert.Equal(t, []string{"T1", "", ""}, s.Writes())
}

func TestMemoryTokenStore_FailureModes(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryTokenStore("T1")
	s.Corrupt = true
	assert.Empty(t, s.Get(ctx))

	s.Corrupt = false
	s.FailWrites = true
	assert.ErrorIs(t, s.Set(ctx, "T2"), ErrStoreUnavailable)
	assert.Equal(t, "T1", s.Get(ctx))
}

func TestMemoryTokenStoreFactory_PerVisitor(t *testing.T) {
	ctx := context.Background()
	f := NewMemoryTokenStoreFactory()
	require.NoError(t, f.ForVisitor("a").Set(ctx, "TA"))

	assert.Equal(t, "TA", f.ForVisitor("a").Get(ctx))
	assert.Empty(t, f.ForVisitor("b").Get(ctx))
}

func TestFakeAuthAPI_DefaultFlow(t *testing.T) {
	ctx := context.Background()
	api := NewFakeAuthAPI()
	api.AddUser(domainauth.UserIdentity{ID: 1, FullName: "A B", Email: "a@b.com", Role: domainauth.RoleAdmin}, "pw")

	_, err := api.Login(ctx, ports.LoginInput{Email: "a@b.com", Password: "bad"})
	assert.True(t, apperrors.IsUnauthorized(err))

	tok, err := api.Login(ctx, ports.LoginInput{Email: "a@b.com", Password: "pw"})
	require.NoError(t, err)

	u, err := api.Me(ctx, tok)
	require.NoError(t, err)
	assert.True(t, u.IsAdmin())

	require.NoError(t, api.UpdateProfile(ctx, tok, ports.ProfileUpdate{FullName: "New Name"}))
	u, err = api.Me(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, "New Name", u.FullName)

	assert.Equal(t, 2, api.Calls("Login"))
	assert.Equal(t, 2, api.Calls("Me"))
}

func TestFakeAuthAPI_RegisterRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	api := NewFakeAuthAPI()
	in := ports.RegisterInput{FullName: "C D", Email: "c@d.com", Password: "secret123"}

	require.NoError(t, api.Register(ctx, in))
	err := api.Register(ctx, in)
	assert.True(t, apperrors.IsValidation(err))
}
