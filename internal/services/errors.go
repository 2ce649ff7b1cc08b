package services

import "errors"

var (
	// ErrAllocationExhausted: every candidate folio collided with an existing one.
	ErrAllocationExhausted = errors.New("ticket id allocation exhausted")
	// ErrLockBusy: the requester already has a data-collection flow running.
	ErrLockBusy = errors.New("submission already in progress")
	// ErrPersistence wraps store failures that abort an operation.
	ErrPersistence = errors.New("persistence failure")
	// ErrUnknownTicket: the folio is unknown, expired, or not pending for this requester.
	ErrUnknownTicket = errors.New("unknown ticket")
)
