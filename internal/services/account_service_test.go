package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ksw5434/realestate/internal/auth"
	"github.com/ksw5434/realestate/internal/config"
)

func newTestAccountService(st *memStore) IAccountService {
	cfg := &config.Config{JwtSecret: "test-secret", JwtTTL: time.Hour}
	return NewAccountService(st, st, cfg, zap.NewNop())
}

func TestAccountService_SignUpAndSignIn(t *testing.T) {
	st := newMemStore()
	svc := newTestAccountService(st)
	ctx := context.Background()

	session, err := svc.SignUp(ctx, SignUpInput{Email: " Kim@Example.com ", Password: "secret1", Name: "Kim"})
	require.NoError(t, err)
	require.NotNil(t, session.Profile)
	assert.Equal(t, "kim@example.com", session.Profile.Email)
	assert.Equal(t, "Kim", session.Profile.Name)
	assert.False(t, session.Profile.IsAdmin)

	claims, err := auth.ValidateJWT(session.Token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, session.Profile.ID, claims.UserID)
	assert.Equal(t, "kim@example.com", claims.Email)

	signedIn, err := svc.SignIn(ctx, "KIM@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, session.Profile.ID, signedIn.Profile.ID)

	_, err = svc.SignIn(ctx, "kim@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.SignIn(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAccountService_SignUpValidation(t *testing.T) {
	st := newMemStore()
	svc := newTestAccountService(st)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, SignUpInput{Email: "not-an-email", Password: "123"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 2)

	_, err = svc.SignUp(ctx, SignUpInput{Email: "dup@example.com", Password: "secret1"})
	require.NoError(t, err)
	_, err = svc.SignUp(ctx, SignUpInput{Email: "DUP@example.com", Password: "secret2"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "email", verr.Fields[0].Field)
	assert.Len(t, st.accounts, 1)
}
