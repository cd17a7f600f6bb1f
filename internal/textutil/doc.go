// Package textutil provides small wording helpers for user-facing log lines.
package textutil
