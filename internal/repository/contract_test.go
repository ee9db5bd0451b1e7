package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"line-memo-relay/internal/domain"
)

type store interface {
	Append(ctx context.Context, userID string, kind domain.ListKind, text string) error
	List(ctx context.Context, userID string, kind domain.ListKind) ([]string, error)
	DeleteAt(ctx context.Context, userID string, kind domain.ListKind, index int) error
	GetMode(ctx context.Context, userID string) (domain.UserMode, error)
	SetMode(ctx context.Context, userID string, mode domain.UserMode) error
	ClearMode(ctx context.Context, userID string) error
}

func newMiniredisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStoreFromClient(client)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func storeFactories() map[string]func(t *testing.T) store {
	return map[string]func(t *testing.T) store{
		"memory": func(*testing.T) store { return NewMemoryStore() },
		"redis": func(t *testing.T) store {
			s, _ := newMiniredisStore(t)
			return s
		},
		"dynamodb": func(t *testing.T) store { return mustNewStore(t, newFakeDynamo()) },
	}
}

func TestStoreContract_AppendThenListIsLast(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			ctx := context.Background()
			for i := 1; i <= 3; i++ {
				text := fmt.Sprintf("entry %d", i)
				require.NoError(t, s.Append(ctx, "U1", domain.ListMemo, text))
				entries, err := s.List(ctx, "U1", domain.ListMemo)
				require.NoError(t, err)
				require.Len(t, entries, i)
				require.Equal(t, text, entries[i-1])
			}
		})
	}
}

func TestStoreContract_DeleteInvariant(t *testing.T) {
	for name, factory := range storeFactories() {
		for _, idx := range []int{1, 3, 5} {
			t.Run(fmt.Sprintf("%s/index=%d", name, idx), func(t *testing.T) {
				s := factory(t)
				ctx := context.Background()
				original := []string{"a", "b", "c", "d", "e"}
				for _, v := range original {
					require.NoError(t, s.Append(ctx, "U1", domain.ListURL, v))
				}

				require.NoError(t, s.DeleteAt(ctx, "U1", domain.ListURL, idx))

				want := append(append([]string(nil), original[:idx-1]...), original[idx:]...)
				got, err := s.List(ctx, "U1", domain.ListURL)
				require.NoError(t, err)
				require.Equal(t, want, got)
			})
		}
	}
}

func TestStoreContract_DeleteOutOfRange(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			ctx := context.Background()
			require.ErrorIs(t, s.DeleteAt(ctx, "U1", domain.ListMemo, 1), domain.ErrIndexOutOfRange)
			require.NoError(t, s.Append(ctx, "U1", domain.ListMemo, "a"))
			require.ErrorIs(t, s.DeleteAt(ctx, "U1", domain.ListMemo, 0), domain.ErrIndexOutOfRange)
			require.ErrorIs(t, s.DeleteAt(ctx, "U1", domain.ListMemo, 2), domain.ErrIndexOutOfRange)

			entries, err := s.List(ctx, "U1", domain.ListMemo)
			require.NoError(t, err)
			require.Equal(t, []string{"a"}, entries)
		})
	}
}

func TestStoreContract_ListsAreScoped(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			ctx := context.Background()
			require.NoError(t, s.Append(ctx, "U1", domain.ListMemo, "memo"))
			require.NoError(t, s.Append(ctx, "U1", domain.ListURL, "url"))
			require.NoError(t, s.Append(ctx, "U2", domain.ListMemo, "other"))

			got, err := s.List(ctx, "U1", domain.ListMemo)
			require.NoError(t, err)
			require.Equal(t, []string{"memo"}, got)
			got, err = s.List(ctx, "U2", domain.ListURL)
			require.NoError(t, err)
			require.Empty(t, got)
		})
	}
}

func TestStoreContract_Modes(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			ctx := context.Background()

			mode, err := s.GetMode(ctx, "U1")
			require.NoError(t, err)
			require.Equal(t, domain.ModeIdle, mode)

			require.NoError(t, s.SetMode(ctx, "U1", domain.ModeAwaitingMemoDelete))
			mode, err = s.GetMode(ctx, "U1")
			require.NoError(t, err)
			require.Equal(t, domain.ModeAwaitingMemoDelete, mode)

			mode, err = s.GetMode(ctx, "U2")
			require.NoError(t, err)
			require.Equal(t, domain.ModeIdle, mode)

			require.NoError(t, s.ClearMode(ctx, "U1"))
			mode, err = s.GetMode(ctx, "U1")
			require.NoError(t, err)
			require.Equal(t, domain.ModeIdle, mode)
		})
	}
}

func TestRedisStore_KeysAndTombstones(t *testing.T) {
	s, mr := newMiniredisStore(t)
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, "U1", domain.ListMemo, "a"))
	require.NoError(t, s.Append(ctx, "U1", domain.ListMemo, "b"))
	require.NoError(t, s.SetMode(ctx, "U1", domain.ModeAwaitingURLInput))

	got, err := mr.Get("mode:U1")
	require.NoError(t, err)
	require.Equal(t, "waiting_url_input", got)

	require.NoError(t, s.DeleteAt(ctx, "U1", domain.ListMemo, 1))
	list, err := mr.List("list:U1:MEMO")
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, list)
}

func TestRedisStore_DuplicateEntriesDeleteByPosition(t *testing.T) {
	s, _ := newMiniredisStore(t)
	ctx := context.Background()
	for _, v := range []string{"x", "y", "x"} {
		require.NoError(t, s.Append(ctx, "U1", domain.ListMemo, v))
	}
	require.NoError(t, s.DeleteAt(ctx, "U1", domain.ListMemo, 3))
	got, err := s.List(ctx, "U1", domain.ListMemo)
	require.NoError(t, err)
	require.Equal(t, []string{"x", "y"}, got)
}

func TestRedisStore_UnknownModeValue(t *testing.T) {
	s, mr := newMiniredisStore(t)
	require.NoError(t, mr.Set("mode:U1", "bogus"))
	_, err := s.GetMode(context.Background(), "U1")
	require.ErrorIs(t, err, domain.ErrUnknownMode)
}

func TestNewRedisStore_BadURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), "not-a-url")
	require.Error(t, err)
}
