// Package util provides small generic helpers shared by the relay server and
// the client packages
package util
