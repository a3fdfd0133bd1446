// Package mapengine evaluates a resolved mapping document against parsed X12
// segments and produces a JSON-compatible output tree.
//
// Apply is pure: it performs no I/O and keeps no state between calls, so it
// can run concurrently for independent requests.
package mapengine
