package unsubscribe

import "errors"

// Sentinel errors for the unsubscribe service layer.
var (
	ErrTokenNotFound = errors.New("unsubscribe token not found")

	// ErrTokenSpaceExhausted means repeated draws kept colliding. With an
	// 8-char token over a 62-char alphabet that only happens when the table
	// is pathologically full, so it is treated as a fatal configuration
	// error rather than retried forever.
	ErrTokenSpaceExhausted = errors.New("unsubscribe token space exhausted")
)
