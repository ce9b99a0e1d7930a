// Package sandbox runs pre-request and test scripts for hitscript.
//
// A Controller owns the state that survives between runs (the variable store
// and the outgoing request headers) and executes scripts against a guest
// runtime chosen by a Provider. Each run gets fresh bindings:
//
//   - pm.variables: runtime variables shared across runs of a controller
//   - pm.environment: read-only view of the active environment
//   - pm.request: live view of the outgoing request headers (pre-request)
//   - pm.sendRequest: asynchronous auxiliary request (pre-request)
//   - pm.response and pm.test: response access and assertions (test)
//   - pm.utils and console
//
// Assertions and console output are collected per run and delivered even
// when the script fails part way through.
package sandbox
