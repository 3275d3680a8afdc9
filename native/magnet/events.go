package magnet

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"magnetd/core/types"
)

const (
	EventTypeFunderRegistered = "magnet.funder_registered"
	EventTypeMinted           = "magnet.minted"
	EventTypeDeposited        = "magnet.deposited"
	EventTypeWithdrawn        = "magnet.withdrawn"
)

// NewFunderRegisteredEvent returns the canonical event payload emitted when an
// address registers as a funder.
func NewFunderRegisteredEvent(f *Funder) *types.Event {
	attrs := make(map[string]string)
	if f == nil {
		return &types.Event{Type: EventTypeFunderRegistered, Attributes: attrs}
	}
	attrs["funder"] = hex.EncodeToString(f.Funder[:])
	attrs["id"] = strconv.FormatUint(f.ID, 10)
	return &types.Event{Type: EventTypeFunderRegistered, Attributes: attrs}
}

// NewMintedEvent returns the canonical event payload for a newly minted
// vesting magnet.
func NewMintedEvent(m *VestingMagnet) *types.Event {
	attrs := make(map[string]string)
	if m == nil {
		return &types.Event{Type: EventTypeMinted, Attributes: attrs}
	}
	attrs["recipient"] = hex.EncodeToString(m.Recipient[:])
	attrs["funder"] = hex.EncodeToString(m.Funder[:])
	attrs["id"] = strconv.FormatUint(m.ID, 10)
	return &types.Event{Type: EventTypeMinted, Attributes: attrs}
}

// NewDepositedEvent returns the canonical event payload emitted when the
// funder escrows value into a magnet.
func NewDepositedEvent(funder [20]byte, m *VestingMagnet, amount *big.Int) *types.Event {
	attrs := make(map[string]string)
	if m == nil {
		return &types.Event{Type: EventTypeDeposited, Attributes: attrs}
	}
	attrs["funder"] = hex.EncodeToString(funder[:])
	attrs["magnetId"] = strconv.FormatUint(m.ID, 10)
	attrs["amount"] = cloneBigInt(amount).String()
	return &types.Event{Type: EventTypeDeposited, Attributes: attrs}
}

// NewWithdrawnEvent returns the canonical event payload emitted when either
// party draws value out of a magnet's escrow.
func NewWithdrawnEvent(caller [20]byte, m *VestingMagnet, amount *big.Int) *types.Event {
	attrs := make(map[string]string)
	if m == nil {
		return &types.Event{Type: EventTypeWithdrawn, Attributes: attrs}
	}
	attrs["caller"] = hex.EncodeToString(caller[:])
	attrs["magnetId"] = strconv.FormatUint(m.ID, 10)
	attrs["token"] = hex.EncodeToString(m.Token[:])
	attrs["amount"] = cloneBigInt(amount).String()
	return &types.Event{Type: EventTypeWithdrawn, Attributes: attrs}
}
