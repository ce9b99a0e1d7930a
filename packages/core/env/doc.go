// Package env handles environments and variable resolution for hitscript.
//
// It provides functionality for:
//   - Named environments with an active selection (Manager)
//   - Loading .env files as an overlay
//   - Variable interpolation using {{variable}} syntax over ordered sources
//   - Built-in function evaluation (uuid, timestamp, random, etc.)
package env
