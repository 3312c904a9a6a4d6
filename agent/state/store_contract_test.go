package state

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises the behaviour every Store implementation must
// share so that callers cannot tell backends apart by return values.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Helper()

	t.Run("save then load returns the same blob", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		st := sampleState("contract-1")
		blob, err := st.Marshal()
		require.NoError(t, err)

		require.NoError(t, store.Save(ctx, st.SessionID, blob))

		got, err := store.Load(ctx, st.SessionID)
		require.NoError(t, err)

		loaded, err := UnmarshalConversationState(got)
		require.NoError(t, err)
		assert.Equal(t, st.Messages, loaded.Messages)
		assert.Equal(t, st.CurrentIntent, loaded.CurrentIntent)
		assert.Equal(t, st.Context.Products, loaded.Context.Products)
		assert.Equal(t, st.ToolCalls, loaded.ToolCalls)
	})

	t.Run("blobs are opaque", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		for i, blob := range []string{"not json {", `{"b": 1,  "a": 2}`} {
			id := fmt.Sprintf("contract-opaque-%d", i)
			require.NoError(t, store.Save(ctx, id, []byte(blob)))

			got, err := store.Load(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, blob, string(got))
		}
	})

	t.Run("save overwrites", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.Save(ctx, "contract-2", []byte(`{"v":1}`)))
		require.NoError(t, store.Save(ctx, "contract-2", []byte(`{"v":2}`)))

		got, err := store.Load(ctx, "contract-2")
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":2}`, string(got))
	})

	t.Run("load missing is not found", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Load(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrStateNotFound)
	})

	t.Run("delete missing is not found", func(t *testing.T) {
		store := newStore(t)
		err := store.Delete(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrStateNotFound)
	})

	t.Run("delete removes the session", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.Save(ctx, "contract-3", []byte(`{}`)))
		require.NoError(t, store.Delete(ctx, "contract-3"))

		_, err := store.Load(ctx, "contract-3")
		assert.ErrorIs(t, err, ErrStateNotFound)
	})

	t.Run("list and clear", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		for _, id := range []string{"a", "b", "c"} {
			require.NoError(t, store.Save(ctx, id, []byte(`{}`)))
		}

		ids, err := store.ListIDs(ctx)
		require.NoError(t, err)
		sort.Strings(ids)
		assert.Equal(t, []string{"a", "b", "c"}, ids)

		require.NoError(t, store.ClearAll(ctx))

		ids, err = store.ListIDs(ctx)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("empty session id is rejected", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		assert.ErrorIs(t, store.Save(ctx, "  ", []byte(`{}`)), ErrInvalidSession)
		_, err := store.Load(ctx, "")
		assert.ErrorIs(t, err, ErrInvalidSession)
		assert.ErrorIs(t, store.Delete(ctx, ""), ErrInvalidSession)
	})

	t.Run("concurrent writers on distinct keys", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		errs := make(chan error, 16)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id := fmt.Sprintf("concurrent-%d", i)
				if err := store.Save(ctx, id, []byte(fmt.Sprintf(`{"n":%d}`, i))); err != nil {
					errs <- err
					return
				}
				got, err := store.Load(ctx, id)
				if err != nil {
					errs <- err
					return
				}
				if string(got) != fmt.Sprintf(`{"n":%d}`, i) {
					errs <- errors.New("cross-key write observed for " + id)
				}
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Error(err)
		}
	})
}

func sampleState(sessionID string) *ConversationState {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	st := NewConversationState(sessionID, now)
	st.AppendMessage(RoleUser, "Find wireless mouse")
	st.AppendMessage(RoleAssistant, "We have one in stock.")
	st.CurrentIntent = IntentRAG
	st.NeedsRAG = true
	st.Context.Products = sampleProducts()
	st.RecordToolCall(ToolCallRecord{
		Tool:   "query_inventory",
		Args:   map[string]any{"sku": "SKU-1"},
		Result: map[string]any{"success": true, "message": "Found 1 products"},
	})
	return st
}
