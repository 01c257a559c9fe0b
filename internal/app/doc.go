// Package app wires the command-line tool together: it builds an isolated
// logger, loads the optional HCL factory configuration, assembles a plugin
// factory over the reader contract, and executes the requested action.
package app
