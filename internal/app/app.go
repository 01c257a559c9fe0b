package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/plugfactory/factory"
	"github.com/vk/plugfactory/internal/config"
	"github.com/vk/plugfactory/internal/ctxlog"
	"github.com/vk/plugfactory/modules/readers"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle: an isolated logger and a reader-plugin factory assembled from
// the configuration file and command-line paths.
type App struct {
	outW    io.Writer
	logger  *slog.Logger
	level   *slog.LevelVar
	factory *factory.Factory
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own logger and a factory over the
// reader-plugin contract.
func NewApp(outW io.Writer, appConfig *Config) (*App, error) {
	levelStr := appConfig.LogLevel
	if debugEnabled() {
		levelStr = "debug"
	}
	logger, level := newLogger(levelStr, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	factoryConfig := factory.Config{
		Abstract:             readers.Contract(),
		PluginIdentifier:     "Name",
		VersioningIdentifier: "Version",
	}

	var searches []config.Search
	if appConfig.ConfigPath != "" {
		model, err := config.Load(ctx, appConfig.ConfigPath)
		if err != nil {
			return nil, err
		}
		if model.PluginIdentifier != "" {
			factoryConfig.PluginIdentifier = model.PluginIdentifier
		}
		if model.VersioningIdentifier != "" {
			factoryConfig.VersioningIdentifier = model.VersioningIdentifier
		}
		factoryConfig.EnvVar = model.EnvVar
		factoryConfig.Mechanism = model.Mechanism
		factoryConfig.Paths = model.Paths
		searches = model.Searches
		logger.Debug("Factory configuration applied.", "path", appConfig.ConfigPath)
	}

	f, err := factory.New(ctx, factoryConfig)
	if err != nil {
		return nil, err
	}

	// The built-in readers are always available, even with no search paths.
	for _, reader := range readers.Builtins() {
		f.Register(reader)
	}

	for _, search := range searches {
		f.AddPath(ctx, search.Path, search.Mechanism)
	}
	for _, path := range appConfig.Paths {
		f.AddPath(ctx, path, factoryConfig.Mechanism)
	}
	logger.Debug("Factory assembled.", "factory", f.String())

	return &App{
		outW:    outW,
		logger:  logger,
		level:   level,
		factory: f,
	}, nil
}

// EnableDebugging switches this app's logger in and out of debug output.
// Other apps' loggers are unaffected.
func (a *App) EnableDebugging(state bool) {
	if state {
		a.level.Set(slog.LevelDebug)
	} else {
		a.level.Set(slog.LevelInfo)
	}
}

// Factory returns the application's factory. This is primarily for testing.
func (a *App) Factory() *factory.Factory {
	return a.factory
}

// Run executes the configured action.
func (a *App) Run(ctx context.Context, appConfig *Config) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	switch appConfig.Action {
	case ActionRead:
		return a.read(ctx, appConfig.Target)
	default:
		return a.list(ctx)
	}
}

// list prints every discovered plugin identifier with its known versions.
func (a *App) list(ctx context.Context) error {
	for _, identifier := range a.factory.Identifiers(ctx) {
		versions := a.factory.Versions(ctx, identifier)
		if len(versions) == 0 {
			fmt.Fprintln(a.outW, identifier)
			continue
		}
		fmt.Fprintf(a.outW, "%s %v\n", identifier, versions)
	}
	return nil
}

// read hands the target file to the best matching reader plugin and prints
// the collated data as JSON.
func (a *App) read(ctx context.Context, target string) error {
	for _, p := range a.factory.Plugins(ctx) {
		reader, ok := p.(readers.ReaderPlugin)
		if !ok || !reader.CanRead(target) {
			continue
		}
		contents, err := reader.Contents(target)
		if err != nil {
			return err
		}
		encoder := json.NewEncoder(a.outW)
		encoder.SetIndent("", "  ")
		return encoder.Encode(contents)
	}
	return fmt.Errorf("no reader plugin can read %s", target)
}
