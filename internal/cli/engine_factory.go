package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/stepgraph"
	"github.com/aretw0/stepgraph/internal/adapters/file"
	"github.com/aretw0/stepgraph/internal/adapters/redis"
	"github.com/aretw0/stepgraph/internal/config"
	"github.com/aretw0/stepgraph/pkg/adapters/memory"
	"github.com/aretw0/stepgraph/pkg/adapters/system"
	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/aretw0/stepgraph/pkg/persistence/middleware"
	"github.com/aretw0/stepgraph/pkg/ports"
)

// Options collects what the commands decide before an engine is built.
type Options struct {
	Dir      string
	Debug    bool
	Settings config.Settings
	// Store overrides Settings.Store when set.
	Store string
	// Concurrency overrides Settings.Concurrency when above zero.
	Concurrency int
	// Output receives the live output of show_output steps.
	Output io.Writer
	Hooks  []domain.LifecycleHooks
}

// App is a configured engine plus the resources it holds.
type App struct {
	Engine  *stepgraph.Engine
	Logger  *slog.Logger
	closers []io.Closer
}

// Close releases store connections.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// NewApp initializes an engine with standard CLI conventions: system drivers
// rooted at opts.Dir, tool aliases from the tools file and the selected report store.
func NewApp(opts Options, extra ...stepgraph.Option) (*App, error) {
	if opts.Dir == "" {
		opts.Dir = "."
	}
	s := opts.Settings
	logger := NewLogger(opts.Debug, s.LogLevel)

	sysOpts := []system.Option{
		system.WithTimeout(s.ShellTimeout),
		system.WithLogger(logger),
	}
	if opts.Output != nil {
		sysOpts = append(sysOpts, system.WithOutput(opts.Output))
	}
	drivers, inspector := system.Drivers(opts.Dir, sysOpts...)

	tools, err := system.LoadTools(inDir(opts.Dir, s.ToolsFile))
	if err != nil {
		return nil, err
	}
	if sh, ok := drivers.Shell.(*system.Shell); ok && len(tools) > 0 {
		sh.RegisterTools(tools)
		logger.Debug("tools registered", "count", len(tools))
	}

	kind := s.Store
	if opts.Store != "" {
		kind = opts.Store
	}
	store, locker, closer, err := OpenStore(kind, s, opts.Dir)
	if err != nil {
		return nil, err
	}
	store = ProtectStore(store, s)

	concurrency := s.Concurrency
	if opts.Concurrency > 0 {
		concurrency = opts.Concurrency
	}

	engineOpts := []stepgraph.Option{
		stepgraph.WithWorkspace(opts.Dir),
		stepgraph.WithDrivers(drivers),
		stepgraph.WithInspector(inspector),
		stepgraph.WithReportStore(store),
		stepgraph.WithLogger(logger),
		stepgraph.WithConcurrency(concurrency),
		stepgraph.WithContainerImages(s.Images),
	}
	if locker != nil {
		engineOpts = append(engineOpts, stepgraph.WithLocker(locker))
	}
	if opts.Debug {
		engineOpts = append(engineOpts, stepgraph.WithLifecycleHooks(DebugHooks(logger)))
	}
	for _, h := range opts.Hooks {
		engineOpts = append(engineOpts, stepgraph.WithLifecycleHooks(h))
	}
	engineOpts = append(engineOpts, extra...)

	app := &App{Engine: stepgraph.New(engineOpts...), Logger: logger}
	if closer != nil {
		app.closers = append(app.closers, closer)
	}
	return app, nil
}

// OpenStore selects a report store and its matching locker.
// The file store has no locker: it is meant for a single process.
func OpenStore(kind string, s config.Settings, dir string) (ports.ReportStore, ports.Locker, io.Closer, error) {
	switch kind {
	case "memory":
		return memory.NewStore(), memory.NewLocker(), nil, nil
	case "file", "":
		path := s.StorePath
		if path == "" {
			path = filepath.Join(".stepgraph", "runs")
		}
		return file.New(inDir(dir, path)), nil, nil, nil
	case "redis":
		store := redis.New(s.RedisAddr, s.RedisPassword, s.RedisDB)
		return store, redis.NewLocker(store.Client(), redis.DefaultPrefix), store, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown store %q (want memory, file or redis)", kind)
}

// ProtectStore wraps store with report redaction and encryption when configured.
func ProtectStore(store ports.ReportStore, s config.Settings) ports.ReportStore {
	var mws []middleware.Middleware
	if len(s.Redact) > 0 {
		mws = append(mws, middleware.NewRedactionMiddleware(s.Redact))
	}
	if len(s.ReportKeys) > 0 {
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    s.ReportKeys[0],
			FallbackKeys: s.ReportKeys[1:],
		}))
	}
	return middleware.Wrap(store, mws...)
}

func inDir(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// Exit prints err and terminates with code 1.
func Exit(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
