// Package app provides the application service layer.
//
// Orchestrates use cases: the poller lifecycle driven by dashboard viewers and
// audited sign-in. Sits between HTTP handlers and domain components.
package app
