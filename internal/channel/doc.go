// Package channel owns the duplex status connection of a client session
//
// A Manager keeps at most one live WebSocket connection per Session. It
// authenticates each new connection, parses inbound frames into protocol
// messages, fans them out to subscribers, and reconnects on a bounded
// schedule when the connection drops. Every callback is dispatched serially
// from the Manager's run loop, so subscribers observe messages and status
// changes in arrival order
package channel
