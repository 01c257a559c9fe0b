package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"plugin"
	"reflect"
	"strings"

	"github.com/google/uuid"

	"github.com/vk/plugfactory/internal/ctxlog"
	"github.com/vk/plugfactory/internal/fsutil"
)

// compiledExt is the only file form the host can load directly at runtime.
const compiledExt = ".so"

// ErrUnsupportedFormat is returned by LoadDirect for any extension the host
// cannot materialize.
var ErrUnsupportedFormat = errors.New("unsupported plugin file format")

// LoadDirect loads the file as an isolated unit decoupled from any module
// address. Every call assigns a collision-free name derived from the file
// stem and a random identifier, so repeated loads of the same artifact never
// share a namespace.
func LoadDirect(ctx context.Context, path string) (*Module, error) {
	logger := ctxlog.FromContext(ctx)

	ext := filepath.Ext(path)
	if ext != compiledExt {
		return nil, fmt.Errorf("%w: %q (only %s files can be loaded directly)",
			ErrUnsupportedFormat, ext, compiledExt)
	}

	stem := strings.TrimSuffix(filepath.Base(path), ext)
	unique := stem + "-" + uuid.NewString()

	// The host caches opened artifacts by path, so the file is staged under
	// its unique name to give every load a throwaway namespace of its own.
	staged := filepath.Join(os.TempDir(), unique+compiledExt)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stage %s: %w", path, err)
	}
	if err := os.WriteFile(staged, data, 0o700); err != nil {
		return nil, fmt.Errorf("failed to stage %s: %w", path, err)
	}
	defer os.Remove(staged)

	decls, err := openAndCollect(staged)
	if err != nil {
		return nil, fmt.Errorf("failed trying to direct load %s: %w", path, err)
	}

	logger.Debug("Direct load complete.", "path", path, "name", unique, "declarations", len(decls))
	return &Module{
		Address: unique,
		Path:    fsutil.Normalize(path),
		Decls:   decls,
	}, nil
}

// openAndCollect opens the staged artifact and asks it to hand over its
// declarations. The artifact runs arbitrary third-party code at load time,
// so panics are contained here and reported as load errors.
func openAndCollect(path string) (decls []Declaration, err error) {
	defer func() {
		if r := recover(); r != nil {
			decls, err = nil, fmt.Errorf("panic during load: %v", r)
		}
	}()

	p, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}

	// Declarations are handed over through one of two well-known symbols.
	if sym, symErr := p.Lookup("Plugins"); symErr == nil {
		fn, ok := sym.(func() []any)
		if !ok {
			return nil, fmt.Errorf("symbol Plugins has unexpected type %T", sym)
		}
		for i, v := range fn() {
			decls = append(decls, Declaration{Name: declName(v, i), Value: v})
		}
		return decls, nil
	}

	sym, symErr := p.Lookup("Plugin")
	if symErr != nil {
		return nil, errors.New("no Plugins or Plugin symbol exposed")
	}
	fn, ok := sym.(func() any)
	if !ok {
		return nil, fmt.Errorf("symbol Plugin has unexpected type %T", sym)
	}
	v := fn()
	return []Declaration{{Name: declName(v, 0), Value: v}}, nil
}

func declName(v any, i int) string {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil && t.Name() != "" {
		return t.Name()
	}
	return fmt.Sprintf("plugin%d", i)
}
