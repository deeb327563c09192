// Package auth supplies the short-lived credentials a client presents when
// its status channel opens
package auth
