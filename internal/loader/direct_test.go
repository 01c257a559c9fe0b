package loader

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPlugin compiles the given source into a shared object. Hosts that
// cannot build plugins (unsupported platform, no toolchain) skip instead of
// failing.
func buildPlugin(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()

	// A unique module path per fixture keeps the loaded plugins apart.
	mod := "module example.com/pluginfixture/" + filepath.Base(dir) + "\n\ngo 1.24\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte(mod), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte(src), 0o644))

	out := filepath.Join(dir, "fixture.so")
	cmd := exec.Command("go", "build", "-buildmode=plugin", "-o", out, ".")
	cmd.Dir = dir
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("cannot build plugins on this host: %v\n%s", err, output)
	}
	return out
}

func TestLoadDirectContainsHandOverPanic(t *testing.T) {
	path := buildPlugin(t, `package main

func Plugin() any { panic("boom from third-party code") }
`)

	mod, err := LoadDirect(context.Background(), path)

	assert.Nil(t, mod)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic during load")
}

func TestLoadDirectCollectsDeclarations(t *testing.T) {
	path := buildPlugin(t, `package main

type WaveGreeter struct{}

func (WaveGreeter) Greet() string { return "wave" }

func Plugins() []any { return []any{WaveGreeter{}, 42} }
`)

	mod, err := LoadDirect(context.Background(), path)
	require.NoError(t, err)
	require.NotNil(t, mod)

	// The throwaway namespace is the file stem plus a random identifier.
	assert.True(t, strings.HasPrefix(mod.Address, "fixture-"), mod.Address)

	require.Len(t, mod.Decls, 2)
	assert.Equal(t, "WaveGreeter", mod.Decls[0].Name)
	assert.Equal(t, "int", mod.Decls[1].Name)
	assert.Equal(t, 42, mod.Decls[1].Value)
}

func TestLoadDirectSinglePluginSymbol(t *testing.T) {
	path := buildPlugin(t, `package main

type LoneGreeter struct{}

func (LoneGreeter) Greet() string { return "alone" }

func Plugin() any { return LoneGreeter{} }
`)

	mod, err := LoadDirect(context.Background(), path)
	require.NoError(t, err)
	require.NotNil(t, mod)

	require.Len(t, mod.Decls, 1)
	assert.Equal(t, "LoneGreeter", mod.Decls[0].Name)
}

func TestLoadDirectWithoutHandOverSymbol(t *testing.T) {
	path := buildPlugin(t, `package main

func Unrelated() {}
`)

	mod, err := LoadDirect(context.Background(), path)
	assert.Nil(t, mod)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no Plugins or Plugin symbol")
}
