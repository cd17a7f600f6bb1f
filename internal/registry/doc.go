// Package registry keeps the in-memory table that chains stage outputs within
// one run: the rows of a project listing gain one column per stage, such as
// downloaded_files or extracted_files, so later stages find their inputs.
package registry
