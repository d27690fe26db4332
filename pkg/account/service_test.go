package account

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestService(t *testing.T) *Service {
	tempDir := filepath.Join(os.TempDir(), "account-test-"+uuid.New().String())
	require.NoError(t, os.MkdirAll(tempDir, 0755))

	repo, err := NewFileAccountRepository(tempDir)
	require.NoError(t, err)

	t.Cleanup(func() {
		os.RemoveAll(tempDir)
	})

	return NewService(repo)
}

func TestServiceCreate(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		acct, err := svc.Create(ctx, CreateParams{
			Email:    "shopper@example.com",
			Username: "shopper",
			Password: "secret-pw",
		})
		require.NoError(t, err)
		assert.NotZero(t, acct.ID)
		assert.False(t, acct.EmailVerified)
		assert.True(t, acct.VerificationPending)
		assert.NotEqual(t, "secret-pw", acct.PasswordHash)
		assert.True(t, svc.CheckPassword(acct, "secret-pw"))
		assert.False(t, svc.CheckPassword(acct, "wrong-pw"))
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		_, err := svc.Create(ctx, CreateParams{Email: "shopper@example.com", Password: "other"})
		assert.ErrorIs(t, err, ErrEmailExists)
	})

	t.Run("UsernameDefaultsToEmail", func(t *testing.T) {
		acct, err := svc.Create(ctx, CreateParams{Email: "plain@example.com", Password: "pw"})
		require.NoError(t, err)
		assert.Equal(t, "plain@example.com", acct.Username)
	})
}

func TestServiceVerificationFlags(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	acct, err := svc.Create(ctx, CreateParams{Email: "flags@example.com", Password: "pw"})
	require.NoError(t, err)

	require.NoError(t, svc.MarkVerified(ctx, acct.ID, acct.Email))

	fetched, err := svc.GetByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.True(t, fetched.EmailVerified)
	assert.False(t, fetched.VerificationPending)
	assert.Equal(t, acct.Email, fetched.LastVerifiedEmail)
	require.NotNil(t, fetched.VerifiedAt)

	require.NoError(t, svc.MarkPending(ctx, acct.ID))

	fetched, err = svc.GetByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.False(t, fetched.EmailVerified)
	assert.True(t, fetched.VerificationPending)
	assert.Nil(t, fetched.VerifiedAt)
	// LastVerifiedEmail survives re-pending so email changes can be detected
	assert.Equal(t, acct.Email, fetched.LastVerifiedEmail)
}

func TestServiceCheckoutPending(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	acct, err := svc.Create(ctx, CreateParams{Email: "pending@example.com", Password: "pw"})
	require.NoError(t, err)

	require.NoError(t, svc.SetCheckoutPending(ctx, acct.ID, true))
	fetched, err := svc.GetByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.True(t, fetched.CheckoutPending)

	require.NoError(t, svc.SetCheckoutPending(ctx, acct.ID, false))
	fetched, err = svc.GetByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.False(t, fetched.CheckoutPending)
}

func TestServiceListStalePending(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	stalePending, err := svc.Create(ctx, CreateParams{Email: "stale@example.com", Password: "pw"})
	require.NoError(t, err)

	admin, err := svc.Create(ctx, CreateParams{Email: "admin@example.com", Password: "pw", Admin: true})
	require.NoError(t, err)

	verified, err := svc.Create(ctx, CreateParams{Email: "done@example.com", Password: "pw"})
	require.NoError(t, err)
	require.NoError(t, svc.MarkVerified(ctx, verified.ID, verified.Email))

	cutoff := time.Now().UTC().Add(time.Minute)
	stale, err := svc.ListStalePending(ctx, cutoff)
	require.NoError(t, err)

	ids := make([]int64, 0, len(stale))
	for _, a := range stale {
		ids = append(ids, a.ID)
	}
	assert.Contains(t, ids, stalePending.ID)
	assert.NotContains(t, ids, admin.ID, "admins are never reported stale")
	assert.NotContains(t, ids, verified.ID)
}

func TestFileAccountRepositoryPersistence(t *testing.T) {
	tempDir := filepath.Join(os.TempDir(), "account-persist-"+uuid.New().String())
	defer os.RemoveAll(tempDir)

	repo, err := NewFileAccountRepository(tempDir)
	require.NoError(t, err)

	ctx := context.Background()
	created, err := repo.Create(ctx, &Account{Email: "persist@example.com", Username: "persist"})
	require.NoError(t, err)

	// A fresh repository over the same directory sees the account and
	// continues the id sequence.
	reloaded, err := NewFileAccountRepository(tempDir)
	require.NoError(t, err)

	fetched, err := reloaded.GetByEmail(ctx, "persist@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, fetched.ID)

	next, err := reloaded.Create(ctx, &Account{Email: "second@example.com"})
	require.NoError(t, err)
	assert.Greater(t, next.ID, created.ID)
}
