package transport

import "net/http"

// RequestCustomizer mutates an outgoing request before it is sent. Session
// customizers registered on the client run first, then the per-call one.
type RequestCustomizer interface {
	Customize(req *http.Request)
}

// CustomizerFunc adapts a function to the RequestCustomizer interface.
type CustomizerFunc func(req *http.Request)

func (f CustomizerFunc) Customize(req *http.Request) { f(req) }

// Noop is a customizer that leaves the request untouched.
var Noop RequestCustomizer = CustomizerFunc(func(*http.Request) {})

// BearerAuth injects an "Authorization: Bearer <token>" header, the scheme
// the GraphQL endpoint expects.
func BearerAuth(token string) RequestCustomizer {
	return CustomizerFunc(func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	})
}

// PrivateToken injects a "PRIVATE-TOKEN: <token>" header, the scheme the
// REST v4 endpoints expect.
func PrivateToken(token string) RequestCustomizer {
	return CustomizerFunc(func(req *http.Request) {
		req.Header.Set("PRIVATE-TOKEN", token)
	})
}
