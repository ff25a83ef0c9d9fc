// Package textutil provides small text-sanitization helpers for deriving
// filesystem-safe file names. No other package currently imports it.
package textutil
