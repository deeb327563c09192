// Package execution projects execution updates for a flow into a Run: its
// status, progress, message, and an append-only log. A Tracker follows one
// flow; a Registry hands out trackers by flow id
package execution
