// Package trigger starts flow runs through the execution-start endpoint and
// drives a Tracker around that single call
package trigger
