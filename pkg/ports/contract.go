package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore
// implementation adheres to the interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	name := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		data := domain.NewSessionData()
		data.SharedData.Data["foo"] = "bar"
		data.SharedData.Data["count"] = 42
		data.SharedData.CommandHistory = append(data.SharedData.CommandHistory, domain.HistoryEntry{
			Command:   "load_agent",
			Result:    "loaded",
			Timestamp: time.Now().UTC().Truncate(time.Second),
		})
		data.Screen("clarity").Data["state"] = "agent_loaded"

		err := store.Save(ctx, name, data)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, name)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, domain.SchemaVersion, loaded.SharedData.Version)
		assert.Equal(t, "bar", loaded.SharedData.Data["foo"])
		// JSON persistence turns ints into float64; existence is enough here.
		assert.NotNil(t, loaded.SharedData.Data["count"])
		require.Len(t, loaded.SharedData.CommandHistory, 1)
		assert.Equal(t, "load_agent", loaded.SharedData.CommandHistory[0].Command)
		require.Contains(t, loaded.Screens, "clarity")
		assert.Equal(t, "agent_loaded", loaded.Screens["clarity"].Data["state"])
	})

	t.Run("Load returns a copy", func(t *testing.T) {
		loaded, err := store.Load(ctx, name)
		require.NoError(t, err)
		loaded.SharedData.Data["foo"] = "mutated"

		again, err := store.Load(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, "bar", again.SharedData.Data["foo"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+name)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, name, domain.NewSessionData())
		require.NoError(t, err)

		err = store.Delete(ctx, name)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, name)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")

		assert.NoError(t, store.Delete(ctx, name), "Deleting a missing session is not an error")
	})

	t.Run("List", func(t *testing.T) {
		id1 := name + "-1"
		id2 := name + "-2"
		require.NoError(t, store.Save(ctx, id1, domain.NewSessionData()))
		require.NoError(t, store.Save(ctx, id2, domain.NewSessionData()))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
