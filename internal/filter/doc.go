// Package filter evaluates three-valued condition trees over named record
// fields and narrows file lists down with them.
//
// Conditions are built programmatically (And, Or, Not, ColumnMatch) or parsed
// from "--filter" expressions. Evaluation never fails: a missing field makes a
// condition Unknown, and Resolve maps Unknown to a caller-chosen default when
// a tree is applied to a table.
package filter
