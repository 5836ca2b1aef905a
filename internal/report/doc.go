// Package report renders the status of a crawl project.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text output for terminal display
//   - MarkdownWriter: Markdown for sharing, with a mermaid chart of page outcomes
//   - JSONWriter: Structured JSON output for tool integration
//
// A Status is assembled from the saved crawl state, the run history and
// the page index of a project. Writers implement the Writer interface, so
// they can be used interchangeably and composed with MultiWriter.
package report
