package security

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/homeguard/homeguard-server/internal/models"
)

func TestGenerateProducesUnsavedPreview(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	code, err := env.codes.Generate(ctx, env.owner)
	require.NoError(t, err)
	require.Len(t, code.Code, DefaultCodeLength)
	for _, r := range code.Code {
		require.True(t, r >= '0' && r <= '9', "expected numeric code, got %q", code.Code)
	}

	// Nothing persisted until Create
	codes, err := env.codes.List(ctx, env.owner, env.owner.ID)
	require.NoError(t, err)
	require.Empty(t, codes)
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	var vErr *ValidationError

	_, err := env.codes.Create(ctx, env.owner, &models.AccessCode{Code: "123", ExpiresAt: expiry, UseLimit: 1})
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "code", vErr.Field)

	_, err = env.codes.Create(ctx, env.owner, &models.AccessCode{Code: "123456", ExpiresAt: expiry})
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "useLimit", vErr.Field)

	_, err = env.codes.Create(ctx, env.owner, &models.AccessCode{Code: "123456", UseLimit: 1})
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "expiresAt", vErr.Field)

	_, err = env.codes.Create(ctx, env.owner, &models.AccessCode{
		Code: "123456", ExpiresAt: expiry, UseLimit: 1,
		Permissions: models.StringArray{"fly"},
	})
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "permissions", vErr.Field)
}

func TestRedeemConsumesUses(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.codes.Create(ctx, env.owner, &models.AccessCode{
		Code:        "424242",
		Label:       "dog walker",
		ExpiresAt:   time.Now().Add(24 * time.Hour),
		UseLimit:    3,
		Permissions: models.StringArray{models.PermissionDisarm, models.PermissionArmAway},
	})
	require.NoError(t, err)

	for _, wantLeft := range []int{2, 1, 0} {
		result, err := env.codes.Redeem(ctx, "424242")
		require.NoError(t, err)
		require.Equal(t, wantLeft, result.UsesLeft)
		require.ElementsMatch(t, []string{models.PermissionDisarm, models.PermissionArmAway}, result.Permissions)
		require.Equal(t, "Test", result.OwnerName)
	}

	_, err = env.codes.Redeem(ctx, "424242")
	require.ErrorIs(t, err, ErrLimitReached)
}

func TestRedeemUnknownCode(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	_, err := env.codes.Redeem(context.Background(), "000000")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRedeemExpiredCode(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.codes.Create(ctx, env.owner, &models.AccessCode{
		Code:      "777777",
		ExpiresAt: time.Now().Add(time.Minute),
		UseLimit:  5,
	})
	require.NoError(t, err)

	env.codes.now = func() time.Time { return time.Now().Add(time.Hour) }

	_, err = env.codes.Redeem(ctx, "777777")
	require.ErrorIs(t, err, ErrExpired)
}

func TestConcurrentRedeemRespectsLimit(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.codes.Create(ctx, env.owner, &models.AccessCode{
		Code:      "909090",
		ExpiresAt: time.Now().Add(time.Hour),
		UseLimit:  1,
	})
	require.NoError(t, err)

	const workers = 20
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.codes.Redeem(ctx, "909090")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, limited int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		default:
			require.ErrorIs(t, err, ErrLimitReached)
			limited++
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, workers-1, limited)

	code, err := env.store.GetAccessCodeByCode(ctx, "909090")
	require.NoError(t, err)
	require.Equal(t, 1, code.UsedCount)
}

func TestRedeemEventAttributedToOwner(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.codes.Create(ctx, env.owner, &models.AccessCode{
		Code:      "321321",
		Label:     "cleaner",
		ExpiresAt: time.Now().Add(time.Hour),
		UseLimit:  2,
	})
	require.NoError(t, err)

	_, err = env.codes.Redeem(ctx, "321321")
	require.NoError(t, err)

	entries := env.ownerEvents(t, env.owner, models.EventTypeUser)
	require.Len(t, entries, 2) // created + redeemed

	redeemed := entries[0]
	require.Contains(t, redeemed.Description, "redeemed")
	require.Equal(t, env.owner.ID, redeemed.ActorID)
	require.Equal(t, created.ID, *redeemed.SourceID)
}

func TestUpdatePreservesUsage(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.codes.Create(ctx, env.owner, &models.AccessCode{
		Code:      "111222",
		ExpiresAt: time.Now().Add(time.Hour),
		UseLimit:  3,
	})
	require.NoError(t, err)

	_, err = env.codes.Redeem(ctx, "111222")
	require.NoError(t, err)

	created.Label = "renamed"
	created.UseLimit = 5
	updated, err := env.codes.Update(ctx, env.owner, created)
	require.NoError(t, err)
	require.Equal(t, "renamed", updated.Label)
	require.Equal(t, 1, updated.UsedCount)
}

func TestCodeOwnershipEnforced(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.codes.Create(ctx, env.owner, &models.AccessCode{
		Code:      "555666",
		ExpiresAt: time.Now().Add(time.Hour),
		UseLimit:  1,
	})
	require.NoError(t, err)

	_, err = env.codes.Get(ctx, env.other, created.ID)
	require.ErrorIs(t, err, ErrNotFound)

	err = env.codes.Delete(ctx, env.other, created.ID)
	require.ErrorIs(t, err, ErrNotFound)
}
