// Package politeness keeps the crawler a good citizen of the wikis it visits.
//
// Governor spaces requests per host and caps them in a rolling window;
// RobotsAgent evaluates robots.txt with a per-host cache and fails open.
package politeness
