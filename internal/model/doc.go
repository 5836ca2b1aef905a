// Package model defines the core data structures shared by the crawl
// components.
//
// This package contains the following main types:
//   - FrontierEntry: A discovered URL waiting to be fetched
//   - VisitedRecord: The terminal outcome of a URL
//   - CrawlState: The resumable snapshot written at checkpoints
//   - CrawlStats: The summary returned at the end of a run
//   - PageArtifact: The per-page output handed to downstream analysis
//
// Models live in their own package so that frontier, store, database and
// crawler can share them without import cycles. All of them serialize to
// JSON for the state file and the artifact files.
package model
