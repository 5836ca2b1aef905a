// Package log provides secure logging built on the standard slog package.
//
// The SecureHandler masks sensitive values before they reach any output:
//   - HTTP credentials (Authorization, Cookie, Set-Cookie, X-Api-Key)
//   - values that look like tokens or keys (JWT, Bearer, Basic, long keys)
//   - token-like query parameters and userinfo passwords inside logged URLs
//   - header maps taken from the crawler configuration
//
// Even in verbose mode, sensitive values are masked. Content hashes are
// hex digests and are deliberately left readable.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Info("fetched page", "url", u, "cookie", cfg.Cookie) // cookie is masked
//
// A crawl additionally keeps a per-project log file:
//
//	logger, closer, err := log.NewTeeLogger(os.Stderr, project.Dir(store.LogsDir), verbose)
package log
