package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"testing"
	"time"

	"github.com/aretw0/stepgraph/pkg/adapters/memory"
	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/aretw0/stepgraph/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func sampleReport(runID string) *domain.Report {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &domain.Report{
		RunID:      runID,
		Workspace:  "/work",
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
		Success:    true,
		Counts:     domain.Counts{Succeeded: 1},
		Nodes: []domain.NodeReport{{
			ID:          "login",
			State:       domain.NodeSucceeded,
			RequestKind: domain.KindShell,
			Result: &domain.OperationResult{
				Success:  true,
				Stdout:   "token=abc123\n",
				Metadata: map[string]any{"api_token": "abc123", "attempt": 1},
			},
		}},
	}
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	store := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleReport("r1")))

	stored, err := underlying.Load(ctx, "r1")
	require.NoError(t, err)
	assert.NotEmpty(t, stored.Sealed)
	assert.Empty(t, stored.Nodes, "node details are sealed")
	assert.Empty(t, stored.Workspace)
	assert.True(t, stored.Success, "envelope keeps the outcome readable")
	assert.Equal(t, 1, stored.Counts.Succeeded)
	assert.NotContains(t, stored.Sealed, "abc123")

	loaded, err := store.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, loaded.Sealed)
	assert.Equal(t, "/work", loaded.Workspace)
	require.Len(t, loaded.Nodes, 1)
	assert.Equal(t, "token=abc123\n", loaded.Nodes[0].Result.Stdout)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, ids)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey, newKey := generateKey(t), generateKey(t)
	ctx := context.Background()

	oldStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlying)
	require.NoError(t, oldStore.Save(ctx, sampleReport("rotation")))

	newStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlying)

	loaded, err := newStore.Load(ctx, "rotation")
	require.NoError(t, err, "fallback key decrypts old reports")

	require.NoError(t, newStore.Save(ctx, loaded))
	_, err = oldStore.Load(ctx, "rotation")
	assert.Error(t, err, "reports saved with the new key are unreadable with the old one")
}

func TestEncryptionMiddleware_PlainReportFails(t *testing.T) {
	underlying := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, underlying.Save(ctx, sampleReport("plain")))

	store := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	_, err := store.Load(ctx, "plain")
	assert.ErrorIs(t, err, middleware.ErrNotSealed)

	_, err = store.Load(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	assert.Panics(t, func() {
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	})
}
