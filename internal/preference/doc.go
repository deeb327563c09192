// Package preference persists the per-user execution panel state in Redis
// or a blob bucket
package preference
