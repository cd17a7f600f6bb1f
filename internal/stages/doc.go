// Package stages implements the pipeline stages: download, extract,
// convertraw, mgf2sqlite and mz2sqlite.
//
// Every stage gathers its inputs from registry columns written by earlier
// stages, falling back to the regular files of the storage directory, narrows
// them with the filter tree and an extension allow-list, runs them through the
// bounded parallel processor and records the produced files as a new registry
// column. Stage-level conditions such as an empty input set are reported as
// services.ErrWarning so the caller can decide whether to continue.
package stages
