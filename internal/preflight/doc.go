// Package preflight checks, before any command runs, that the storage
// directory is usable, that the programs the requested commands shell out to
// are installed and that the PRIDE archive answers.
package preflight
