package loader

import (
	"context"
	"fmt"
	"sort"

	"github.com/vk/plugfactory/internal/ctxlog"
)

// Mechanism selects how a candidate file is turned into an inspectable
// Module.
type Mechanism int

const (
	// Guess tries Importable first and falls back to LoadSource when no
	// already-linked module can be established for the file.
	Guess Mechanism = iota

	// LoadSource loads the file directly as an isolated, uniquely-named
	// unit. Only compiled plugin artifacts support this.
	LoadSource

	// Importable resolves the file against code that is already linked
	// into the host process and announced in the module cache.
	Importable
)

// String returns the configuration-file spelling of the mechanism.
func (m Mechanism) String() string {
	switch m {
	case Guess:
		return "guess"
	case LoadSource:
		return "load_source"
	case Importable:
		return "importable"
	default:
		return fmt.Sprintf("mechanism(%d)", int(m))
	}
}

// ParseMechanism converts the configuration-file spelling back into a
// Mechanism value.
func ParseMechanism(s string) (Mechanism, error) {
	switch s {
	case "", "guess":
		return Guess, nil
	case "load_source":
		return LoadSource, nil
	case "importable":
		return Importable, nil
	default:
		return Guess, fmt.Errorf("unknown loading mechanism %q", s)
	}
}

// Declaration is a single named value exposed by a loaded module.
type Declaration struct {
	Name  string
	Value any
}

// Module is the in-memory, inspectable result of loading a candidate file.
// Declarations are ordered by name so discovery order is deterministic.
type Module struct {
	// Address is the resolved module address for importable modules, or
	// the unique throwaway name assigned by a direct load.
	Address string

	// Path is the backing file the module was produced from.
	Path string

	Decls []Declaration
}

// Resolve applies the loading policy for the given mechanism. A nil Module
// with a nil error means no module could be established for the file, which
// is an expected outcome rather than a failure.
func (c *Cache) Resolve(ctx context.Context, path string, mechanism Mechanism) (*Module, error) {
	switch mechanism {
	case Importable:
		return c.LoadByAddress(ctx, path), nil
	case LoadSource:
		return LoadDirect(ctx, path)
	default:
		if mod := c.LoadByAddress(ctx, path); mod != nil {
			return mod, nil
		}
		return LoadDirect(ctx, path)
	}
}

// LoadByAddress attempts to resolve the file to a module that is already
// linked into the process and announced in the cache. It returns nil when no
// matching address can be established, including when the address resolves
// to a different physical file than the candidate (a namespace clash).
func (c *Cache) LoadByAddress(ctx context.Context, path string) *Module {
	logger := ctxlog.FromContext(ctx)

	address, ok := ModuleAddress(path)
	if !ok {
		logger.Debug("No module address could be derived.", "path", path)
		return nil
	}

	entry, ok := c.lookup(address)
	if !ok {
		logger.Debug("Address is not announced in the module cache.", "address", address)
		return nil
	}

	if !samePath(entry.path, path) {
		logger.Debug("Address resolved to a different backing file, discarding.",
			"address", address, "announced", entry.path, "candidate", path)
		return nil
	}

	logger.Debug("Found module.", "address", address)
	return &Module{
		Address: address,
		Path:    entry.path,
		Decls:   sortedDecls(entry.decls),
	}
}

func sortedDecls(decls map[string]any) []Declaration {
	names := make([]string, 0, len(decls))
	for name := range decls {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Declaration, 0, len(names))
	for _, name := range names {
		out = append(out, Declaration{Name: name, Value: decls[name]})
	}
	return out
}
