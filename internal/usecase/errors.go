package usecase

import "errors"

var (
	ErrSubscriberNotRegistered = errors.New("subscriber not registered")
	ErrProductNotFound         = errors.New("product not found")
	ErrMonitorNotFound         = errors.New("monitor not found")
	ErrInvalidPrice            = errors.New("invalid price")
	ErrMissingProductID        = errors.New("missing product id")
)
