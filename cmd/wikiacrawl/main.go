// Package main provides the entry point for the wikiacrawl CLI.
//
// wikiacrawl is a polite, resumable crawler for MediaWiki and Fandom wikis.
// Each crawl belongs to a named project whose pages, checkpoints and logs
// live under <data_dir>/projects/<name>/.
//
// Usage:
//
//	wikiacrawl crawl <project> <seed-url>...
//	wikiacrawl resume <project>
//	wikiacrawl status <project>
//
// See --help for all available options.
package main

// main is the entry point for wikiacrawl.
func main() {
	Execute()
}
