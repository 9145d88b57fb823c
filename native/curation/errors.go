package curation

import "errors"

var (
	// ErrInvalidAmount rejects zero or missing stake amounts.
	ErrInvalidAmount = errors.New("curation engine: amount must be positive")
	// ErrExceedsCeiling rejects stake that would reach the per-entry ceiling.
	ErrExceedsCeiling = errors.New("curation engine: stake would reach the per-entry ceiling")
	// ErrEntryExists rejects creation of an identifier that is already curated.
	ErrEntryExists = errors.New("curation engine: entry already exists")
	// ErrEntryNotFound is returned when the identifier is not curated.
	ErrEntryNotFound = errors.New("curation engine: entry not found")
	// ErrNotOwner rejects withdrawals by anyone other than the entry owner.
	ErrNotOwner = errors.New("curation engine: caller is not the entry owner")
	// ErrAmountMismatch rejects downvote payments that differ from the freshly
	// computed cost.
	ErrAmountMismatch = errors.New("curation engine: amount does not match the downvote cost")
	// ErrExceedsAvailable rejects withdrawals above the entry's available stake.
	ErrExceedsAvailable = errors.New("curation engine: amount exceeds available stake")
	// ErrInsufficientAllowance is returned when the caller has not authorized
	// enough tokens for the operation.
	ErrInsufficientAllowance = errors.New("curation engine: allowance below requested amount")
	// ErrEscrow wraps a failed token movement.
	ErrEscrow = errors.New("curation engine: token escrow failed")
	// ErrArithmetic is returned when the curve math runs out of headroom, for
	// example when a downvote would exhaust the remaining vote supply.
	ErrArithmetic = errors.New("curation engine: arithmetic bounds exceeded")

	errNilParams    = errors.New("curation engine: params required")
	errNilState     = errors.New("curation engine: state not configured")
	errNilToken     = errors.New("curation engine: token adapter not configured")
	errCorruptEntry = errors.New("curation engine: entry invariant violated")
)
