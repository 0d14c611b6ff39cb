// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (session.go, position.go, audit.go, errors.go) hold shared types and
// the cross-cutting interfaces implemented by adapters. No implementation code, just contracts.
package domain
