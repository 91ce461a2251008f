package common

import "errors"

var (
	// ErrPermissionDenied maps a store-side access rejection. View-marking
	// swallows it; count subscriptions degrade to zero on it.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrUnavailable covers push-transport registration or send failures.
	ErrUnavailable = errors.New("transport unavailable")

	ErrNotFound = errors.New("not found")
)
