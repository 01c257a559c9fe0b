package config

import "github.com/vk/plugfactory/internal/loader"

// Search pairs a search directory with the loading mechanism to use for it.
type Search struct {
	Path      string
	Mechanism loader.Mechanism
}

// Model is the format-agnostic representation of a factory configuration
// file.
type Model struct {
	// PluginIdentifier names the attribute or method used as lookup key.
	// Empty means the plugin's type name.
	PluginIdentifier string

	// VersioningIdentifier names the attribute or method yielding a
	// plugin's version. Empty disables versioning.
	VersioningIdentifier string

	// EnvVar optionally names an environment variable holding further
	// search paths, split on the OS path list separator.
	EnvVar string

	// Mechanism is the default loading mechanism for Paths and EnvVar
	// paths.
	Mechanism loader.Mechanism

	// Paths are search directories scanned with the default mechanism.
	Paths []string

	// Searches are search directories carrying their own mechanism.
	Searches []Search
}
