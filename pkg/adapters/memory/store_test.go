package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/agentflow/pkg/adapters/memory"
	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/aretw0/agentflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunSessionStoreContract(t, store)
}

func TestMemoryStore_SaveIsolatesCaller(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	data := domain.NewSessionData()
	data.SharedData.Data["agent"] = "reviewer"
	require.NoError(t, store.Save(ctx, "s", data))

	data.SharedData.Data["agent"] = "changed after save"

	loaded, err := store.Load(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "reviewer", loaded.SharedData.Data["agent"])
}

func TestMemoryStore_ListSorted(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	for _, name := range []string{"b", "c", "a"} {
		require.NoError(t, store.Save(ctx, name, domain.NewSessionData()))
	}

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names)
}
