package models

import "maps"

// Context is the accumulated, JSON-compatible state of one execution. Each
// action node adds exactly one top-level key to it.
type Context map[string]any

// With returns a shallow copy of c with key set to value.
func (c Context) With(key string, value any) Context {
	next := make(Context, len(c)+1)
	maps.Copy(next, c)
	next[key] = value

	return next
}

// Clone returns a shallow copy of c; nil becomes an empty context.
func (c Context) Clone() Context {
	next := make(Context, len(c))
	maps.Copy(next, c)

	return next
}
