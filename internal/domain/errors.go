package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrNotConcluded       = errors.New("battle not concluded")
	ErrAlreadyConcluded   = errors.New("battle already concluded")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrInsufficientFunds  = errors.New("insufficient mobiums")
	ErrWagersClosed       = errors.New("wagers closed")
	ErrInvalidInput       = errors.New("invalid input")
	ErrConflict           = errors.New("conflict")
)
