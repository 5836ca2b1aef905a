// Package fetcher performs HTTP fetch attempts for the crawler.
//
// A Fetcher owns the HTTP session of one crawl and turns every attempt into
// a tagged Result: success, retryable failure or permanent failure. Retry
// scheduling is left to the caller; Backoff computes the delays.
package fetcher
