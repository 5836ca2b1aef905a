// Package database provides SQLite-based storage for wikiacrawl.
//
// Each project keeps one database file next to its artifact directories.
// It stores:
//   - the page index, one row per stored PageArtifact
//   - the run history, one row per crawl or resume invocation
//
// SQLite (via modernc.org/sqlite) keeps the project a single directory that
// can be copied or archived as a whole, and the CGO-free driver keeps
// cross-compilation simple.
package database
