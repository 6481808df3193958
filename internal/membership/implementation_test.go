package membership

import (
	"context"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarium/internal/domain"
	"librarium/internal/eventlog"
	"librarium/internal/storage"
	"librarium/internal/storage/memory"
)

var registeredAt = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	logger, _ := logtest.NewNullLogger()
	clock := domain.ClockFunc(func() time.Time { return registeredAt })
	return NewService(store, eventlog.New(clock), logger, clock), store
}

func strPtr(v string) *string { return &v }

func Test_CreateUser(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	user, err := svc.CreateUser(ctx, " Ada ", "ada@example.com")
	require.NoError(t, err)

	assert.Equal(t, "Ada", user.Name)
	assert.Equal(t, registeredAt, user.CreatedAt)

	require.NoError(t, store.ReadOnly(ctx, func(ctx context.Context, tx storage.Tx) error {
		events, err := tx.ListEvents(ctx, domain.AggregateUser, user.ID)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, domain.EventUserRegistered, events[0].EventType)
		return nil
	}))
}

func Test_CreateUser_EmailExists(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, err := svc.CreateUser(ctx, "Ada", "ada@example.com")
	require.NoError(t, err)

	_, err = svc.CreateUser(ctx, "Other", "ada@example.com")

	assert.ErrorIs(t, err, domain.ErrEmailExists)
}

func Test_UpdateUser(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	ada, err := svc.CreateUser(ctx, "Ada", "ada@example.com")
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, "Bob", "bob@example.com")
	require.NoError(t, err)

	t.Run("own email is allowed", func(t *testing.T) {
		user, err := svc.UpdateUser(ctx, ada.ID, UserUpdate{Name: strPtr("Ada L."), Email: strPtr("ada@example.com")})
		require.NoError(t, err)
		assert.Equal(t, "Ada L.", user.Name)
	})

	t.Run("taken email conflicts", func(t *testing.T) {
		_, err := svc.UpdateUser(ctx, ada.ID, UserUpdate{Email: strPtr("bob@example.com")})
		assert.ErrorIs(t, err, domain.ErrEmailExists)

		user, err := svc.GetUser(ctx, ada.ID)
		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", user.Email)
	})

	t.Run("new email", func(t *testing.T) {
		user, err := svc.UpdateUser(ctx, ada.ID, UserUpdate{Email: strPtr("lovelace@example.com")})
		require.NoError(t, err)
		assert.Equal(t, "lovelace@example.com", user.Email)
		assert.Equal(t, "Ada L.", user.Name)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := svc.UpdateUser(ctx, 999, UserUpdate{Name: strPtr("x")})
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})
}

func Test_ListUsers(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		_, err := svc.CreateUser(ctx, "n", email)
		require.NoError(t, err)
	}

	users, err := svc.ListUsers(ctx, storage.NewPage(0, 2))
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "a@example.com", users[0].Email)

	_, err = svc.GetUser(ctx, 42)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
