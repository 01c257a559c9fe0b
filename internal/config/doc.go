// Package config parses the HCL configuration file that describes a
// factory: the identifier and versioning attributes, the default loading
// mechanism, and the search paths to scan, each optionally carrying its own
// mechanism.
//
// The file is decoded into a format-agnostic Model first, so the rest of
// the application never touches HCL types.
package config
