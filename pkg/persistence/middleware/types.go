// Package middleware decorates an ExecutionStore with at-rest protections for
// execution contexts: masking of sensitive keys and envelope encryption.
package middleware

import "github.com/aretw0/playbook/pkg/ports"

// Middleware allows wrapping an ExecutionStore to add behavior.
type Middleware func(ports.ExecutionStore) ports.ExecutionStore

// Chain applies mws to store; the first middleware is the outermost.
func Chain(store ports.ExecutionStore, mws ...Middleware) ports.ExecutionStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
