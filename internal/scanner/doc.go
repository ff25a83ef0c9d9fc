// Package scanner walks the configured media roots and keeps the catalog
// in sync with the filesystem: new files are inserted and classified,
// changed files are re-probed, files sharing content with another live
// entry are de-duplicated, and entries whose file has vanished are marked
// GONE.
//
// A Scanner runs a periodic sweep on a fixed interval and, when a watcher
// is configured, an early debounced sweep triggered by fsnotify events.
// The periodic sweep is the source of truth; the watcher is strictly an
// optimization and its failure mode is to do nothing, since the next
// periodic sweep will catch whatever it missed.
package scanner
