// Package runner executes hitscript collections.
//
// Every collection run owns one variable store shared by all of its
// requests, so values set by one script are visible to the next. Each
// request goes through its pre-request script, {{...}} template
// resolution, the HTTP send (with retries) and its test script.
//
// Requests run in dependency order. Without dependencies they may run in
// parallel with bounded concurrency.
package runner
