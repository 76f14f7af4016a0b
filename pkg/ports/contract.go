package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunReportStoreContract runs a suite of tests to verify that a ReportStore implementation
// adheres to the defined interface contract.
func RunReportStoreContract(t *testing.T, store ReportStore) {
	ctx := context.Background()
	runID := "contract-run-" + time.Now().Format("20060102150405")

	newReport := func(id string) *domain.Report {
		r := &domain.Report{
			RunID:     id,
			StartedAt: time.Now().UTC().Truncate(time.Second),
			Nodes: []domain.NodeReport{
				{ID: "step_0", State: domain.NodeSucceeded, RequestKind: domain.KindShell, Result: &domain.OperationResult{Success: true, Stdout: "ok"}},
				{ID: "step_1", State: domain.NodeSkipped, RequestKind: domain.KindShell, Message: "dependency failed"},
			},
			Warnings: []string{"redundant mkdir"},
		}
		r.Tally(nil)
		return r
	}

	t.Run("Save and Load", func(t *testing.T) {
		report := newReport(runID)
		require.NoError(t, store.Save(ctx, report), "Save should not return error")

		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, report.RunID, loaded.RunID)
		assert.Equal(t, report.Counts, loaded.Counts)
		assert.False(t, loaded.Success)
		require.Len(t, loaded.Nodes, 2)
		assert.Equal(t, domain.NodeSkipped, loaded.Nodes[1].State)
		require.NotNil(t, loaded.Nodes[0].Result)
		assert.Equal(t, "ok", loaded.Nodes[0].Result.Stdout)
		assert.Equal(t, []string{"redundant mkdir"}, loaded.Warnings)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("Overwrite", func(t *testing.T) {
		report := newReport(runID)
		report.Warnings = nil
		require.NoError(t, store.Save(ctx, report))

		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err)
		assert.Empty(t, loaded.Warnings)
	})

	t.Run("List", func(t *testing.T) {
		other := runID + "-other"
		require.NoError(t, store.Save(ctx, newReport(other)))

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, runID)
		assert.Contains(t, ids, other)

		require.NoError(t, store.Delete(ctx, other))
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, runID), "Delete should not return error")

		_, err := store.Load(ctx, runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound, "Load after Delete should return ErrRunNotFound")

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.NotContains(t, ids, runID)

		assert.NoError(t, store.Delete(ctx, runID), "Deleting twice is not an error")
	})
}

// RunFileDriverContract verifies a FileDriver against relative paths.
// The driver must start from an empty root.
func RunFileDriverContract(t *testing.T, fd FileDriver) {
	ctx := context.Background()

	t.Run("Mkdir Is Idempotent", func(t *testing.T) {
		require.True(t, fd.Mkdir(ctx, "work/sub").Success)
		require.True(t, fd.Mkdir(ctx, "work/sub").Success)
		assert.True(t, fd.Exists(ctx, "work/sub").Success)
		assert.True(t, fd.Exists(ctx, "work").Success)
	})

	t.Run("Touch Requires Parent", func(t *testing.T) {
		res := fd.Touch(ctx, "missing/file.txt")
		assert.False(t, res.Success)
		assert.NotEmpty(t, res.ErrorMessage)
		assert.False(t, fd.Exists(ctx, "missing").Success)
	})

	t.Run("Touch Write Read", func(t *testing.T) {
		require.True(t, fd.Touch(ctx, "work/sub/a.txt").Success)
		res := fd.Read(ctx, "work/sub/a.txt")
		require.True(t, res.Success)
		assert.Equal(t, "", res.Content)

		require.True(t, fd.Write(ctx, "work/sub/a.txt", "hello").Success)
		assert.Equal(t, "hello", fd.Read(ctx, "work/sub/a.txt").Content)

		require.True(t, fd.Touch(ctx, "work/sub/a.txt").Success)
		assert.Equal(t, "hello", fd.Read(ctx, "work/sub/a.txt").Content, "touch keeps content")
	})

	t.Run("Copy and Move", func(t *testing.T) {
		require.True(t, fd.Copy(ctx, "work/sub/a.txt", "work/b.txt").Success)
		assert.Equal(t, "hello", fd.Read(ctx, "work/b.txt").Content)

		require.True(t, fd.Move(ctx, "work/b.txt", "work/c.txt").Success)
		assert.False(t, fd.Exists(ctx, "work/b.txt").Success)
		assert.Equal(t, "hello", fd.Read(ctx, "work/c.txt").Content)
	})

	t.Run("Copy Missing Source", func(t *testing.T) {
		assert.False(t, fd.Copy(ctx, "work/ghost.txt", "work/d.txt").Success)
	})

	t.Run("CopyTree and RemoveTree", func(t *testing.T) {
		require.True(t, fd.CopyTree(ctx, "work/sub", "work/copy").Success)
		assert.Equal(t, "hello", fd.Read(ctx, "work/copy/a.txt").Content)

		require.True(t, fd.RemoveTree(ctx, "work/copy").Success)
		assert.False(t, fd.Exists(ctx, "work/copy").Success)
		assert.False(t, fd.Exists(ctx, "work/copy/a.txt").Success)
	})

	t.Run("Move Directory", func(t *testing.T) {
		require.True(t, fd.Mkdir(ctx, "work/tree").Success)
		require.True(t, fd.Touch(ctx, "work/tree/x.txt").Success)
		require.True(t, fd.Move(ctx, "work/tree", "work/moved").Success)
		assert.True(t, fd.Exists(ctx, "work/moved/x.txt").Success)
		assert.False(t, fd.Exists(ctx, "work/tree").Success)
	})

	t.Run("Remove", func(t *testing.T) {
		require.True(t, fd.Remove(ctx, "work/c.txt").Success)
		assert.False(t, fd.Exists(ctx, "work/c.txt").Success)
		assert.False(t, fd.Remove(ctx, "work/c.txt").Success, "removing a missing file fails")
		assert.False(t, fd.Read(ctx, "work/c.txt").Success)
	})
}

// RunLockerContract verifies mutual exclusion and release for a Locker.
func RunLockerContract(t *testing.T, locker Locker) {
	ctx := context.Background()
	key := "contract-" + time.Now().Format("150405.000")

	unlock, err := locker.Lock(ctx, key, 5*time.Second)
	require.NoError(t, err)

	t.Run("Second Lock Waits", func(t *testing.T) {
		short, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
		defer cancel()
		_, err := locker.Lock(short, key, 5*time.Second)
		assert.Error(t, err)
	})

	t.Run("Other Keys Are Independent", func(t *testing.T) {
		other, err := locker.Lock(ctx, key+"-other", 5*time.Second)
		require.NoError(t, err)
		require.NoError(t, other(ctx))
	})

	require.NoError(t, unlock(ctx))

	t.Run("Relock After Release", func(t *testing.T) {
		again, err := locker.Lock(ctx, key, 5*time.Second)
		require.NoError(t, err)
		assert.NoError(t, again(ctx))
	})
}
