// Package loader converts candidate plugin files into inspectable, in-memory
// modules without requiring the caller to know whether the file is already
// reachable through the host's own linkage.
//
// Two strategies exist. The importable strategy resolves a file to a module
// address by walking outward to the enclosing package boundary and consults
// the host module cache, which compiled-in plugin packages populate by
// announcing their declarations at init time. It is lossless but only works
// for code that is already part of the process. The direct strategy loads a
// compiled plugin artifact in place, under a unique throwaway name, and works
// anywhere at the cost of a fresh namespace per load.
//
// The Guess mechanism unifies both behind one policy: importable first,
// direct as a fallback when no matching address can be established.
package loader
