// Package store owns the on-disk layout of a crawl project.
//
// Each project lives in <data_dir>/projects/<name>/ with the subdirectories
// raw, processed, cache, crawl_state, exports and logs. The crawl state and
// every page artifact are written atomically: a temporary file in the target
// directory is synced and then renamed over the destination, so a reader
// never observes a partially written file.
package store
