package factory

import "github.com/vk/plugfactory/internal/loader"

// Announce records the caller's declarations in the host module cache,
// keyed by the module address of the caller's source file. Plugin packages
// that are compiled into the program call this from init() so the
// importable loading mechanism can discover them again when their source
// directory is scanned.
//
// Announce panics when no module address can be derived for the caller,
// since that is a build layout error, not a runtime condition.
func Announce(decls map[string]any) {
	loader.Host.AnnounceCaller(2, decls)
}
