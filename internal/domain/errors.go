package domain

import "errors"

var (
	// ErrAuthenticationFailed is reported for every failed sign-in, whatever the cause.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrPollFailed marks a position fetch cycle that could not produce a collection.
	ErrPollFailed = errors.New("position poll failed")
)
