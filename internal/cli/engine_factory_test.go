package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/stepgraph/internal/adapters/file"
	"github.com/aretw0/stepgraph/internal/config"
	"github.com/aretw0/stepgraph/pkg/adapters/memory"
	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()
	s := config.DefaultSettings()

	t.Run("Memory", func(t *testing.T) {
		store, locker, closer, err := OpenStore("memory", s, dir)
		require.NoError(t, err)
		assert.IsType(t, &memory.Store{}, store)
		assert.NotNil(t, locker)
		assert.Nil(t, closer)
	})

	t.Run("File Defaults Into Workspace", func(t *testing.T) {
		store, locker, _, err := OpenStore("file", s, dir)
		require.NoError(t, err)
		fs, ok := store.(*file.Store)
		require.True(t, ok)
		assert.Equal(t, filepath.Join(dir, ".stepgraph", "runs"), fs.BasePath)
		assert.Nil(t, locker)
	})

	t.Run("Absolute Store Path", func(t *testing.T) {
		custom := s
		custom.StorePath = filepath.Join(dir, "elsewhere")
		store, _, _, err := OpenStore("file", custom, "/ignored")
		require.NoError(t, err)
		assert.Equal(t, custom.StorePath, store.(*file.Store).BasePath)
	})

	t.Run("Unknown", func(t *testing.T) {
		_, _, _, err := OpenStore("s3", s, dir)
		assert.Error(t, err)
	})
}

func TestProtectStore(t *testing.T) {
	ctx := context.Background()
	raw := memory.NewStore()
	s := config.DefaultSettings()

	assert.Same(t, raw, ProtectStore(raw, s), "no settings means no wrapping")

	s.Redact = []string{`hunter\d`}
	s.ReportKeys = [][]byte{[]byte(strings.Repeat("k", 32))}
	store := ProtectStore(raw, s)

	report := &domain.Report{RunID: "p", Nodes: []domain.NodeReport{{
		ID:     "login",
		Result: &domain.OperationResult{Stdout: "pw=hunter2"},
	}}}
	require.NoError(t, store.Save(ctx, report))

	sealed, err := raw.Load(ctx, "p")
	require.NoError(t, err)
	assert.NotEmpty(t, sealed.Sealed)

	loaded, err := store.Load(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, "pw=***", loaded.Nodes[0].Result.Stdout)
}

func TestNewApp(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tools.yaml"), []byte(`
tools:
  - name: greet
    command: echo
    args: [hello]
`), 0o644))

	app, err := NewApp(Options{Dir: dir, Settings: config.DefaultSettings(), Store: "memory"})
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, dir, app.Engine.Workspace())
	assert.NotNil(t, app.Engine.Store())

	res := app.Engine.Validate(&domain.Workflow{Steps: []domain.Step{
		{Type: domain.StepMkdir, Cmd: []string{"./out"}},
		{Type: domain.StepShell, Cmd: []string{"greet", "world"}},
	}})
	require.True(t, res.OK())

	plan, err := app.Engine.Inspect(context.Background(), res.Graph)
	require.NoError(t, err)
	assert.Empty(t, plan.Missing)
}

func TestNewApp_BadToolsFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tools.json"), []byte(`{`), 0o644))
	s := config.DefaultSettings()
	s.ToolsFile = "tools.json"

	_, err := NewApp(Options{Dir: dir, Settings: s, Store: "memory"})
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	assert.NotNil(t, NewLogger(true, ""))
	assert.False(t, NewLogger(false, "").Enabled(context.Background(), 0), "no level means silent")
	assert.True(t, NewLogger(false, "warn").Enabled(context.Background(), 8))
}
