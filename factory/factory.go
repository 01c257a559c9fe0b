package factory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"sort"
	"time"

	"github.com/vk/plugfactory/internal/ctxlog"
	"github.com/vk/plugfactory/internal/fsutil"
	"github.com/vk/plugfactory/internal/loader"
)

// Mechanism selects how candidate files found along a search path are
// turned into inspectable modules. See the loader package for the policy
// behind each value.
type Mechanism = loader.Mechanism

const (
	Guess      = loader.Guess
	LoadSource = loader.LoadSource
	Importable = loader.Importable
)

// candidatePattern matches plugin candidate file names: anything not
// starting with an underscore, space or digit, ending in a recognized
// source or compiled-source extension.
var candidatePattern = regexp.MustCompile(`^[^_ 0-9]+?\w+?(\.go$|\.so$)`)

// Config holds the construction parameters for a Factory.
type Config struct {
	// Abstract is the contract every plugin must satisfy. It must be the
	// reflect.Type of an interface.
	Abstract reflect.Type

	// Paths are directories to search immediately, using Mechanism.
	Paths []string

	// PluginIdentifier names the attribute or zero-argument method used as
	// the lookup key of a plugin. Empty means the plugin's type name.
	PluginIdentifier string

	// VersioningIdentifier names the attribute or zero-argument method
	// yielding a plugin's numeric version. Empty disables versioning.
	VersioningIdentifier string

	// EnvVar optionally names an environment variable whose value is split
	// on the OS path list separator and registered as search paths.
	EnvVar string

	// Mechanism is the loading mechanism applied to Paths and EnvVar paths.
	Mechanism Mechanism

	// SuppressWarnings silences warning-level events. Debug-level events
	// are always emitted.
	SuppressWarnings bool
}

// Factory discovers and stores plugin values satisfying an abstract
// contract, and resolves lookups by identifier and optionally by version.
//
// A Factory is not safe for concurrent use: scanning, registration and
// lookup are synchronous, single-threaded operations.
type Factory struct {
	abstract   reflect.Type
	identifier string
	version    string
	logErrors  bool

	// plugins is append-only between clears; insertion order is discovery
	// order and duplicates by identifier are permitted.
	plugins []any

	// paths maps a normalized search directory to its loading mechanism.
	paths map[string]Mechanism

	caps  map[capKey]capability
	cache *loader.Cache
}

// New creates a Factory for the given configuration and immediately scans
// any configured paths.
func New(ctx context.Context, cfg Config) (*Factory, error) {
	if cfg.Abstract == nil {
		return nil, errors.New("factory: an abstract contract type is required")
	}
	if cfg.Abstract.Kind() != reflect.Interface {
		return nil, fmt.Errorf("factory: abstract contract must be an interface type, got %s", cfg.Abstract)
	}

	f := &Factory{
		abstract:   cfg.Abstract,
		identifier: cfg.PluginIdentifier,
		version:    cfg.VersioningIdentifier,
		logErrors:  !cfg.SuppressWarnings,
		paths:      make(map[string]Mechanism),
		caps:       make(map[capKey]capability),
		cache:      loader.Host,
	}

	for _, path := range cfg.Paths {
		f.AddPath(ctx, path, cfg.Mechanism)
	}

	if cfg.EnvVar != "" {
		if value, ok := os.LookupEnv(cfg.EnvVar); ok {
			for _, path := range filepath.SplitList(value) {
				f.AddPath(ctx, path, cfg.Mechanism)
			}
		}
	}

	return f, nil
}

// String describes the factory by its identifier key and plugin count.
func (f *Factory) String() string {
	identifier := f.identifier
	if identifier == "" {
		identifier = "<type name>"
	}
	return fmt.Sprintf("Factory(identifier=%s, plugins=%d)", identifier, len(f.plugins))
}

// AddPath registers a search directory with the factory and immediately
// scans it recursively for plugins, loading candidate files through the
// given mechanism. The path is recorded even when it yields no plugins, so
// a later Reload rescans it. Per-file failures are logged and tolerated;
// they never abort the scan.
//
// It returns the number of plugins added by this call.
func (f *Factory) AddPath(ctx context.Context, path string, mechanism Mechanism) int {
	if path == "" {
		return 0
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		f.logf(ctx, false, "Path is not a valid directory.", "path", path)
		return 0
	}

	f.paths[fsutil.Normalize(path)] = mechanism

	added := 0
	for _, filePath := range fsutil.FindMatching(path, candidatePattern.MatchString) {
		start := time.Now()

		module, err := f.cache.Resolve(ctx, filePath, mechanism)
		if module == nil {
			f.logf(ctx, true, "Could not import or load file.", "file", filePath, "error", err)
			continue
		}

		for _, decl := range module.Decls {
			if f.adopt(ctx, decl.Name, decl.Value) {
				added++
			}
		}

		f.logf(ctx, false, "Module inspected.",
			"address", module.Address, "file", filePath, "duration", time.Since(start))
	}

	return added
}

// adopt keeps the declaration when it is a distinct, not yet present
// implementation of the abstract contract.
func (f *Factory) adopt(ctx context.Context, name string, value any) bool {
	t := reflect.TypeOf(value)
	if t == nil || t == f.abstract || !t.Implements(f.abstract) {
		return false
	}
	if f.containsType(t) {
		return false
	}
	f.plugins = append(f.plugins, value)
	f.logf(ctx, false, "Loaded plugin.", "plugin", typeName(t), "declaration", name)
	return true
}

func (f *Factory) containsType(t reflect.Type) bool {
	for _, p := range f.plugins {
		if reflect.TypeOf(p) == t {
			return true
		}
	}
	return false
}

// Register adds the plugin directly, bypassing any filesystem scanning.
// It reports false when the value is nil or does not satisfy the abstract
// contract, and is idempotent for an already-present plugin type.
func (f *Factory) Register(plugin any) bool {
	t := reflect.TypeOf(plugin)
	if t == nil || !t.Implements(f.abstract) {
		return false
	}
	if !f.containsType(t) {
		f.plugins = append(f.plugins, plugin)
	}
	return true
}

// Request retrieves the plugin with the given identifier. Without a
// versioning rule the first match in discovery order is returned; with one,
// the highest-versioned match wins. A miss logs a warning and returns nil.
func (f *Factory) Request(ctx context.Context, identifier string) any {
	return f.request(ctx, identifier, nil)
}

// RequestVersion retrieves the exact version of the plugin with the given
// identifier. It has no effect beyond Request when the factory was built
// without a versioning rule.
func (f *Factory) RequestVersion(ctx context.Context, identifier string, version float64) any {
	return f.request(ctx, identifier, &version)
}

func (f *Factory) request(ctx context.Context, identifier string, version *float64) any {
	var matches []any
	for _, p := range f.plugins {
		if f.identifierOf(ctx, p) == identifier {
			matches = append(matches, p)
		}
	}
	if len(matches) == 0 {
		f.logf(ctx, true, "No plugin matching identifier.", "identifier", identifier)
		return nil
	}

	if f.version == "" {
		return matches[0]
	}

	// Matches sharing a version value silently collapse to the last one
	// found. Pinned by tests; see DESIGN.md before changing the tie-break.
	versions := make(map[float64]any, len(matches))
	for _, p := range matches {
		v, err := f.versionOf(p)
		if err != nil {
			f.logf(ctx, true, "Skipping plugin with unusable version.",
				"identifier", identifier, "error", err)
			continue
		}
		versions[v] = p
	}
	if len(versions) == 0 {
		f.logf(ctx, true, "No versioned plugin matching identifier.", "identifier", identifier)
		return nil
	}

	if version == nil {
		highest := 0.0
		first := true
		for v := range versions {
			if first || v > highest {
				highest, first = v, false
			}
		}
		return versions[highest]
	}

	p, ok := versions[*version]
	if !ok {
		f.logf(ctx, true, "Version of plugin could not be found.",
			"identifier", identifier, "version", *version)
		return nil
	}
	return p
}

// Versions returns the ascending version values of all plugins with the
// given identifier, or nothing when no versioning rule is configured.
func (f *Factory) Versions(ctx context.Context, identifier string) []float64 {
	if f.version == "" {
		return nil
	}

	var out []float64
	for _, p := range f.plugins {
		if f.identifierOf(ctx, p) != identifier {
			continue
		}
		v, err := f.versionOf(p)
		if err != nil {
			f.logf(ctx, true, "Skipping plugin with unusable version.",
				"identifier", identifier, "error", err)
			continue
		}
		out = append(out, v)
	}
	sort.Float64s(out)
	return out
}

// Identifiers returns the unique identifiers of all current plugins,
// sorted for determinism.
func (f *Factory) Identifiers(ctx context.Context) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range f.plugins {
		id := f.identifierOf(ctx, p)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Plugins returns one representative plugin per unique identifier: the
// highest-versioned one under a versioning rule, the first-found one
// otherwise. It never exposes the raw, possibly-duplicated entry sequence.
func (f *Factory) Plugins(ctx context.Context) []any {
	identifiers := f.Identifiers(ctx)
	out := make([]any, 0, len(identifiers))
	for _, id := range identifiers {
		if p := f.Request(ctx, id); p != nil {
			out = append(out, p)
		}
	}
	return out
}

// Paths returns all registered search paths, sorted for determinism.
func (f *Factory) Paths() []string {
	out := make([]string, 0, len(f.paths))
	for path := range f.paths {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// Clear empties the factory of plugins and registered search paths.
func (f *Factory) Clear() {
	f.plugins = nil
	f.paths = make(map[string]Mechanism)
}

// Reload forgets every plugin and re-discovers them from the registered
// search paths. Plugins added purely via Register are lost.
func (f *Factory) Reload(ctx context.Context) {
	snapshot := f.paths
	f.Clear()
	for _, path := range sortedKeys(snapshot) {
		f.AddPath(ctx, path, snapshot[path])
	}
}

// RemovePath removes a search path from the factory along with any plugins
// it contributed. This performs a full clear and rescan of the remaining
// paths, so callers removing many paths should batch instead of looping.
func (f *Factory) RemovePath(ctx context.Context, path string) {
	snapshot := f.paths
	f.Clear()
	for _, original := range sortedKeys(snapshot) {
		if fsutil.SamePath(original, path) {
			continue
		}
		f.AddPath(ctx, original, snapshot[original])
	}
}

func sortedKeys(paths map[string]Mechanism) []string {
	out := make([]string, 0, len(paths))
	for path := range paths {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// logf emits a factory event, tagged with the abstract contract so log
// lines from different factories are distinguishable. Warnings are gated on
// the SuppressWarnings setting; everything else is debug-level.
func (f *Factory) logf(ctx context.Context, warning bool, msg string, args ...any) {
	logger := ctxlog.FromContext(ctx).With("abstract", f.abstract.String())
	if warning && f.logErrors {
		logger.Warn(msg, args...)
		return
	}
	logger.Debug(msg, args...)
}
