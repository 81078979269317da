// Package handles parks strong claims that have left their handle.
//
// refbase.Strong.Export detaches a claim and registers it here under an
// integer token, so ownership can travel through code that only carries an
// integer. While parked, the claim keeps its object alive. refbase.Import or
// refbase.DropExported takes it back out exactly once; a token that is never
// taken keeps the object alive indefinitely.
package handles

import (
	"sync"
)

var (
	mu      sync.RWMutex
	handles = make(map[uintptr]any)
	nextID  uintptr = 1
)

// Register stores v and returns a non-zero token for it.
//
// Thread-safe.
func Register(v any) uintptr {
	mu.Lock()
	defer mu.Unlock()
	id := nextID
	nextID++
	handles[id] = v
	return id
}

// Lookup returns the value registered under id, or nil.
//
// Thread-safe.
func Lookup(id uintptr) any {
	mu.RLock()
	defer mu.RUnlock()
	return handles[id]
}

// Take removes and returns the value registered under id. Exactly one of any
// number of concurrent Take calls for the same id succeeds.
//
// Thread-safe.
func Take(id uintptr) (any, bool) {
	mu.Lock()
	defer mu.Unlock()
	v, ok := handles[id]
	if ok {
		delete(handles, id)
	}
	return v, ok
}

// Count returns the number of registered tokens.
//
// Thread-safe.
func Count() int {
	mu.RLock()
	defer mu.RUnlock()
	return len(handles)
}
