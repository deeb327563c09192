// Package server implements the relay: the HTTP API that starts flow runs,
// accepts execution updates, and fans them out over the /ws channel
package server
