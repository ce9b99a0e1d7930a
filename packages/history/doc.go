// Package history records executed requests in a local SQLite database so
// earlier runs can be listed and old entries purged by retention window.
package history
