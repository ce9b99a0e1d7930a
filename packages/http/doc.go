// Package http provides the HTTP client hitscript uses to send collection
// requests and the auxiliary requests scripts issue through pm.sendRequest.
//
// It wraps the standard library's http package with:
//   - Configurable timeouts, redirects, proxy and TLS verification
//   - Default headers applied to every request
//   - Optional request pacing through a token bucket
//   - Fully buffered responses with case-insensitive header access
package http
