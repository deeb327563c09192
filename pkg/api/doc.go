// Package api defines the execution event protocol exchanged over the
// status channel and the HTTP messages of the relay server
//
// A frame on the channel is a tagged envelope {type, data?, message?}. The
// Message type models it as a closed variant: exactly one payload pointer is
// populated, selected by the Type discriminator
package api
