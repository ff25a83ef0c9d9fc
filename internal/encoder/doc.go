// Package encoder wraps an external HEVC encoder binary, feeding it the
// category-derived CRF and resolution cap and tailing its stdout for
// best-effort progress events. Encode is the only exported operation; worker
// supplies the acceptance and replacement logic once the subprocess exits.
package encoder
