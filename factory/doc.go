// Package factory implements a plugin discovery and registry mechanism:
// given an abstract contract (a Go interface) and a set of filesystem
// locations, it finds concrete implementations of that contract, loads them
// into memory, and offers lookup by identifier and optionally by version.
//
// The intended users are library authors who want third parties to drop
// extension code into known directories without a central registration
// step. Two discovery routes exist side by side:
//
//   - compiled-in plugin packages announce themselves (Announce) and are
//     found again when their source directory is scanned with the
//     importable mechanism;
//   - compiled plugin artifacts (.so) dropped into a search path are loaded
//     directly, each under an isolated throwaway namespace.
//
// Scanning tolerates arbitrary third-party files: a file that fails to
// load is logged and skipped, and never aborts the surrounding scan. That
// per-file failure isolation is the central reliability guarantee here,
// since the whole point is to safely ingest code the host does not control.
package factory
