package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/stepgraph/pkg/adapters/memory"
	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/aretw0/stepgraph/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunReportStoreContract(t, store)
}

func TestMemoryStore_Isolation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	report := &domain.Report{
		RunID: "r1",
		Nodes: []domain.NodeReport{{ID: "a", State: domain.NodeSucceeded, Result: &domain.OperationResult{Stdout: "x"}}},
	}
	require.NoError(t, store.Save(ctx, report))

	report.Nodes[0].Result.Stdout = "mutated"
	loaded, err := store.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "x", loaded.Nodes[0].Result.Stdout)
}

func TestMemoryLocker_Contract(t *testing.T) {
	ports.RunLockerContract(t, memory.NewLocker())
}

func TestMemoryLocker_Expiry(t *testing.T) {
	ctx := context.Background()
	locker := memory.NewLocker()

	_, err := locker.Lock(ctx, "ws", 30*time.Millisecond)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	unlock, err := locker.Lock(short, "ws", time.Second)
	require.NoError(t, err, "an expired lease must not block")
	assert.NoError(t, unlock(ctx))
}
