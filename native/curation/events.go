package curation

import (
	"encoding/hex"
	"math/big"

	"dappstore/core/types"
)

const (
	// TypeEntryCreated is emitted when a new identifier enters curation.
	TypeEntryCreated = "curation.entry.created"
	// TypeEntryUpvoted is emitted when stake is added behind an entry.
	TypeEntryUpvoted = "curation.entry.upvoted"
	// TypeEntryDownvoted is emitted when a paid downvote lands on an entry.
	TypeEntryDownvoted = "curation.entry.downvoted"
	// TypeEntryWithdrawn is emitted when an owner reclaims unlocked stake.
	TypeEntryWithdrawn = "curation.entry.withdrawn"
)

// EntryCreated announces a freshly curated identifier.
type EntryCreated struct {
	ID               [32]byte
	Owner            [20]byte
	VotesMinted      *big.Int
	EffectiveBalance *big.Int
}

func (EntryCreated) EventType() string { return TypeEntryCreated }

// Event converts the payload into the wire representation.
func (e EntryCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeEntryCreated,
		Attributes: map[string]string{
			"id":               hexID(e.ID),
			"owner":            hexAddr(e.Owner),
			"votesMinted":      formatAmount(e.VotesMinted),
			"effectiveBalance": formatAmount(e.EffectiveBalance),
		},
	}
}

// EntryUpvoted announces additional stake behind an entry.
type EntryUpvoted struct {
	ID               [32]byte
	EffectiveBalance *big.Int
}

func (EntryUpvoted) EventType() string { return TypeEntryUpvoted }

// Event converts the payload into the wire representation.
func (e EntryUpvoted) Event() *types.Event {
	return &types.Event{
		Type: TypeEntryUpvoted,
		Attributes: map[string]string{
			"id":               hexID(e.ID),
			"effectiveBalance": formatAmount(e.EffectiveBalance),
		},
	}
}

// EntryDownvoted announces a paid downvote against an entry.
type EntryDownvoted struct {
	ID               [32]byte
	EffectiveBalance *big.Int
}

func (EntryDownvoted) EventType() string { return TypeEntryDownvoted }

// Event converts the payload into the wire representation.
func (e EntryDownvoted) Event() *types.Event {
	return &types.Event{
		Type: TypeEntryDownvoted,
		Attributes: map[string]string{
			"id":               hexID(e.ID),
			"effectiveBalance": formatAmount(e.EffectiveBalance),
		},
	}
}

// EntryWithdrawn announces an owner withdrawal.
type EntryWithdrawn struct {
	ID               [32]byte
	EffectiveBalance *big.Int
}

func (EntryWithdrawn) EventType() string { return TypeEntryWithdrawn }

// Event converts the payload into the wire representation.
func (e EntryWithdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypeEntryWithdrawn,
		Attributes: map[string]string{
			"id":               hexID(e.ID),
			"effectiveBalance": formatAmount(e.EffectiveBalance),
		},
	}
}

func hexID(id [32]byte) string {
	return "0x" + hex.EncodeToString(id[:])
}

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
