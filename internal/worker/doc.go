// Package worker runs the single long-lived claim-encode-verify-replace
// loop: claim the best PENDING entry, encode it to a deterministic workdir
// path, verify the source did not mutate underneath the job and the output
// meets acceptance criteria, then atomically replace the original. At most
// one encode runs at a time, per spec.md §4.4.
package worker
