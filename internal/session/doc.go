// Package session holds the client's authentication state for one browser.
//
// A Store is built per request on top of a domain.SessionStorage. The storage
// decides where the serialized session lives: a signed cookie, Redis keyed by a
// browser id, or process memory.
package session
