// Package commands holds the closed set of user-facing commands and the
// dispatcher that validates and runs a sequence of them against one Session.
package commands
