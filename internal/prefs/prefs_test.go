package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castline-dev/castline/internal/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	return NewStore(db, zerolog.Nop())
}

func TestGet_Defaults(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "system", got[KeyTheme])
	assert.Equal(t, "bottom-right", got[KeyToastPosition])
	assert.Equal(t, "[]", got[KeyReadUpdateIDs])
}

func TestSet_OverwritesAndNotifies(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	changes, cancel := s.Subscribe("u1", 4)
	defer cancel()

	require.NoError(t, s.Set(ctx, "u1", KeyTheme, "dark"))
	require.NoError(t, s.Set(ctx, "u1", KeyTheme, "light"))

	got, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "light", got[KeyTheme])

	other, err := s.Get(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, "system", other[KeyTheme])

	assert.Equal(t, Change{UserID: "u1", Key: KeyTheme, Value: "dark"}, <-changes)
	assert.Equal(t, Change{UserID: "u1", Key: KeyTheme, Value: "light"}, <-changes)
}

func TestSubscribe_OnlyOwnChanges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	changes, cancel := s.Subscribe("u1", 1)
	defer cancel()

	// another user's writes must not fill u1's buffer
	for _, pos := range []string{"top-left", "top-right", "bottom-left"} {
		require.NoError(t, s.Set(ctx, "u2", KeyToastPosition, pos))
	}
	require.NoError(t, s.Set(ctx, "u1", KeyTheme, "dark"))

	assert.Equal(t, Change{UserID: "u1", Key: KeyTheme, Value: "dark"}, <-changes)
	select {
	case c := <-changes:
		t.Fatalf("unexpected change %+v", c)
	default:
	}
}

func TestSet_Rejects(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.Set(ctx, "u1", "font", "serif"), ErrUnknownKey)
	assert.ErrorIs(t, s.Set(ctx, "u1", KeyTheme, "sepia"), ErrInvalidValue)
	assert.ErrorIs(t, s.Set(ctx, "u1", KeyReadUpdateIDs, "{}"), ErrInvalidValue)
}

func TestMarkUpdateRead_Deduplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.MarkUpdateRead(ctx, "u1", "2024-10-release"))
	require.NoError(t, s.MarkUpdateRead(ctx, "u1", "2024-11-release"))
	require.NoError(t, s.MarkUpdateRead(ctx, "u1", "2024-10-release"))

	got, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.JSONEq(t, `["2024-10-release","2024-11-release"]`, got[KeyReadUpdateIDs])
}

func TestMarkUpdateRead_Concurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.MarkUpdateRead(ctx, "u1", fmt.Sprintf("update-%d", i)))
		}(i)
	}
	wg.Wait()

	got, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	var ids []string
	require.NoError(t, json.Unmarshal([]byte(got[KeyReadUpdateIDs]), &ids))
	assert.Len(t, ids, 20)
}

func TestSubscribe_CancelClosesChannel(t *testing.T) {
	s := newTestStore(t)

	changes, cancel := s.Subscribe("u1", 1)
	cancel()
	cancel()

	_, open := <-changes
	assert.False(t, open)

	// publishing after cancel must not panic
	require.NoError(t, s.Set(context.Background(), "u1", KeyTheme, "dark"))
}
