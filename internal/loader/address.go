package loader

import (
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/mod/modfile"

	"github.com/vk/plugfactory/internal/fsutil"
)

// packageMarker is the file probed for at each ancestor directory when
// walking outward from a candidate file to establish its module address.
const packageMarker = "go.mod"

type cacheEntry struct {
	path  string
	decls map[string]any
}

// Cache is the host-side module cache. Code that is compiled into the
// process announces its declarations here, keyed by module address, so the
// importable loading mechanism can find it again from a file path. The
// factory reads this cache but does not own it.
//
// The cache is mutex-guarded because announcements arrive from package
// init() functions across the whole program.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewCache creates an empty module cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

// Host is the process-wide module cache used by default.
var Host = NewCache()

// AnnounceAt records the declarations of the module backed by the given
// source file. Re-announcing the same file replaces the previous entry.
func (c *Cache) AnnounceAt(filePath string, decls map[string]any) error {
	address, ok := ModuleAddress(filePath)
	if !ok {
		return fmt.Errorf("no module address could be derived for %s", filePath)
	}
	norm := fsutil.Normalize(filePath)

	c.mu.Lock()
	c.entries[address] = cacheEntry{path: norm, decls: maps.Clone(decls)}
	c.mu.Unlock()

	slog.Debug("Announced module.", "address", address, "path", norm)
	return nil
}

// AnnounceCaller announces declarations under the source file of the caller
// identified by skip (as in runtime.Caller). It is intended for use from
// package init() functions, so a failure to establish the address is a
// programmer error and panics.
func (c *Cache) AnnounceCaller(skip int, decls map[string]any) {
	_, file, _, ok := runtime.Caller(skip)
	if !ok {
		panic("loader: could not identify the announcing caller")
	}
	if err := c.AnnounceAt(file, decls); err != nil {
		panic(err)
	}
}

func (c *Cache) lookup(address string) (cacheEntry, bool) {
	c.mu.RLock()
	entry, ok := c.entries[address]
	c.mu.RUnlock()
	return entry, ok
}

// ModuleAddress derives the address of the module backed by the given file
// by walking outward from its containing directory, testing for the package
// boundary marker at each level. The address joins the enclosing module
// path with the relative directory and the file stem.
func ModuleAddress(filePath string) (string, bool) {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return "", false
	}
	stem := strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))

	var rel []string
	for dir := filepath.Dir(abs); ; {
		data, err := os.ReadFile(filepath.Join(dir, packageMarker))
		if err == nil {
			modPath := modfile.ModulePath(data)
			if modPath == "" {
				return "", false
			}
			parts := append([]string{modPath}, rel...)
			parts = append(parts, stem)
			return path.Join(parts...), true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Ran out of ancestors without finding a package boundary.
			return "", false
		}
		rel = append([]string{filepath.Base(dir)}, rel...)
		dir = parent
	}
}

func samePath(a, b string) bool {
	return fsutil.SamePath(a, b)
}
