// Package probe wraps an external ffprobe-compatible binary and SHA-256
// content hashing behind a single interface the scanner, recovery, and
// worker packages use to classify inputs and verify encoder outputs.
package probe
