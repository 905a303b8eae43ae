// Package middleware provides decorators that wrap a ports.StorageProvider.
package middleware

import "github.com/aretw0/sessionvault/pkg/ports"

// Middleware allows wrapping a StorageProvider to add behavior.
type Middleware func(ports.StorageProvider) ports.StorageProvider

// Chain wraps p with mws. The first middleware is the outermost.
func Chain(p ports.StorageProvider, mws ...Middleware) ports.StorageProvider {
	for i := len(mws) - 1; i >= 0; i-- {
		p = mws[i](p)
	}
	return p
}
