package curation

import (
	"errors"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Approval-callback payloads are a four byte method selector followed by the
// 32-byte entry id and a 32-byte big-endian amount.
const commandPayloadLen = 4 + 32 + 32

var (
	// ErrPayloadLength rejects callback payloads that are not exactly a
	// selector plus two words.
	ErrPayloadLength = errors.New("curation codec: payload must be selector plus id and amount words")
	// ErrUnknownSelector rejects payloads whose selector maps to no operation.
	ErrUnknownSelector = errors.New("curation codec: unknown method selector")

	errUnknownCommand = errors.New("curation codec: unknown command kind")

	selectorCreate   = methodSelector("create(bytes32,uint256)")
	selectorUpvote   = methodSelector("upvote(bytes32,uint256)")
	selectorDownvote = methodSelector("downvote(bytes32,uint256)")
)

// CommandKind identifies the operation a decoded command routes to.
type CommandKind uint8

const (
	// CommandCreate curates a new identifier.
	CommandCreate CommandKind = iota + 1
	// CommandUpvote adds stake behind an identifier.
	CommandUpvote
	// CommandDownvote pays for a 1% effective-balance reduction.
	CommandDownvote
)

// Command is the typed form of an approval-callback payload.
type Command struct {
	Kind   CommandKind
	ID     [32]byte
	Amount *big.Int
}

// DecodeCommand parses an approval-callback payload into a typed command.
func DecodeCommand(payload []byte) (Command, error) {
	if len(payload) != commandPayloadLen {
		return Command{}, ErrPayloadLength
	}
	var selector [4]byte
	copy(selector[:], payload[:4])
	var kind CommandKind
	switch selector {
	case selectorCreate:
		kind = CommandCreate
	case selectorUpvote:
		kind = CommandUpvote
	case selectorDownvote:
		kind = CommandDownvote
	default:
		return Command{}, ErrUnknownSelector
	}
	cmd := Command{Kind: kind}
	copy(cmd.ID[:], payload[4:36])
	cmd.Amount = new(big.Int).SetBytes(payload[36:68])
	return cmd, nil
}

// Apply routes a decoded command into the corresponding engine operation. The
// command amount must match the amount the caller approved alongside the
// callback; a disagreement means the payload and the approval were built for
// different operations.
func (e *Engine) Apply(caller [20]byte, cmd Command, approved *big.Int) (*Entry, error) {
	if cmd.Amount == nil || approved == nil || cmd.Amount.Cmp(approved) != 0 {
		return nil, ErrAmountMismatch
	}
	switch cmd.Kind {
	case CommandCreate:
		return e.Create(caller, cmd.ID, cmd.Amount)
	case CommandUpvote:
		return e.Upvote(caller, cmd.ID, cmd.Amount)
	case CommandDownvote:
		return e.Downvote(caller, cmd.ID, cmd.Amount)
	default:
		return nil, errUnknownCommand
	}
}

func methodSelector(signature string) [4]byte {
	var selector [4]byte
	copy(selector[:], ethcrypto.Keccak256([]byte(signature))[:4])
	return selector
}
