// Package verify implements the acceptance test a re-encoded output must
// pass before it may replace an original file: matching codec, strictly
// smaller size, duration within tolerance of the original, and a clean
// end-to-end read. Both the Worker's post-encode check and Recovery's
// crash-orphan salvage check apply the identical criteria, per spec.md
// §4.2 step 3 and §4.4 step 4.
package verify
