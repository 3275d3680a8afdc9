package magnet

import (
	"math/big"
	"time"

	"github.com/holiman/uint256"

	"magnetd/core/events"
	"magnetd/core/types"
)

// engineState is the narrow view of ledger state the engine depends on. The
// production implementation lives in core/state; tests provide in-memory
// fakes.
type engineState interface {
	FunderPut(*Funder) error
	FunderGet(addr [20]byte) (*Funder, bool)
	FunderCount() (uint64, error)
	MagnetPut(*VestingMagnet) error
	MagnetGet(id uint64) (*VestingMagnet, bool)
	MagnetCount() (uint64, error)
	NextMagnetID() (uint64, error)
	RecipientIndexAppend(recipient [20]byte, id uint64) error
	MagnetIDsByRecipient(recipient [20]byte) ([]uint64, error)
	MagnetVaultAddress(token [20]byte) ([20]byte, error)
}

// TokenGateway moves token value between accounts on behalf of the engine.
// Both calls report success as a boolean; the engine treats false identically
// to an abort of the whole operation.
type TokenGateway interface {
	// TransferFrom pulls amount of token from the from account into to.
	TransferFrom(token [20]byte, from [20]byte, to [20]byte, amount *big.Int) bool
	// Transfer pushes amount of token out of escrow to the to account.
	Transfer(token [20]byte, to [20]byte, amount *big.Int) bool
}

type magnetEvent struct {
	evt *types.Event
}

func (e magnetEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e magnetEvent) Event() *types.Event { return e.evt }

// Engine wires the vesting-magnet business logic with external state, the
// token gateway and event emission. Mutating calls are serialized by the
// host; each runs to completion or leaves no state change behind.
type Engine struct {
	state   engineState
	gateway TokenGateway
	emitter events.Emitter
	nowFn   func() uint64
}

// NewEngine creates a magnet engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetGateway configures the token transfer gateway used by the engine.
func (e *Engine) SetGateway(gateway TokenGateway) { e.gateway = gateway }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() uint64) {
	if now == nil {
		e.nowFn = func() uint64 { return uint64(time.Now().Unix()) }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(magnetEvent{evt: event})
}

func (e *Engine) now() uint64 {
	if e == nil || e.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	return e.nowFn()
}

func checkedAdd(a, b *big.Int) (*big.Int, error) {
	sum := new(big.Int).Add(a, b)
	if _, overflow := uint256.FromBig(sum); overflow {
		return nil, ErrAdditionOverflow
	}
	return sum, nil
}

func checkedSub(a, b *big.Int) (*big.Int, error) {
	if a.Cmp(b) < 0 {
		return nil, ErrSubtractionOverflow
	}
	return new(big.Int).Sub(a, b), nil
}

// RegisterFunder records the caller as a grant issuer. An address registers
// exactly once; the assigned id is immutable.
func (e *Engine) RegisterFunder(caller [20]byte, admins [][20]byte, name, description, imageURL string) (*Funder, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if _, ok := e.state.FunderGet(caller); ok {
		return nil, ErrFunderExists
	}
	count, err := e.state.FunderCount()
	if err != nil {
		return nil, err
	}
	funder := &Funder{
		ID:          count,
		Funder:      caller,
		Admins:      append([][20]byte(nil), admins...),
		Name:        name,
		Description: description,
		ImageURL:    imageURL,
		MagnetIDs:   []uint64{},
	}
	if err := e.state.FunderPut(funder); err != nil {
		return nil, err
	}
	e.emit(NewFunderRegisteredEvent(funder))
	return funder.Clone(), nil
}

// MintVestingMagnet validates the schedule parameters and creates a new
// magnet with zero balance. The checks run in a fixed order so each invalid
// parameter combination produces its own distinct failure.
func (e *Engine) MintVestingMagnet(caller, recipient, token [20]byte, startTime, vestingPeriodLength uint64, amountPerPeriod *big.Int, cliffTime, endTime uint64, message string) (*VestingMagnet, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	funder, ok := e.state.FunderGet(caller)
	if !ok {
		return nil, ErrNotRegistered
	}
	if recipient == ([20]byte{}) {
		return nil, ErrZeroRecipient
	}
	if startTime <= e.now() {
		return nil, ErrStartTimeInPast
	}
	if cliffTime < startTime {
		return nil, ErrCliffBeforeStart
	}
	if endTime <= startTime || endTime < cliffTime {
		return nil, ErrEndTimeOrder
	}
	if vestingPeriodLength == 0 {
		return nil, ErrZeroPeriod
	}
	duration := endTime - startTime
	if vestingPeriodLength >= duration {
		return nil, ErrPeriodTooLong
	}
	if duration%vestingPeriodLength != 0 {
		return nil, ErrDurationNotMultiple
	}
	if amountPerPeriod == nil || amountPerPeriod.Sign() <= 0 {
		return nil, ErrZeroAmountPerPeriod
	}
	id, err := e.state.NextMagnetID()
	if err != nil {
		return nil, err
	}
	m := &VestingMagnet{
		ID:                  id,
		Recipient:           recipient,
		Token:               token,
		Funder:              caller,
		StartTime:           startTime,
		VestingPeriodLength: vestingPeriodLength,
		AmountPerPeriod:     cloneBigInt(amountPerPeriod),
		CliffTime:           cliffTime,
		EndTime:             endTime,
		Message:             message,
		Balance:             big.NewInt(0),
		AmountWithdrawn:     big.NewInt(0),
	}
	if err := e.state.MagnetPut(m); err != nil {
		return nil, err
	}
	funder.MagnetIDs = append(funder.MagnetIDs, id)
	if err := e.state.FunderPut(funder); err != nil {
		return nil, err
	}
	if err := e.state.RecipientIndexAppend(recipient, id); err != nil {
		return nil, err
	}
	e.emit(NewMintedEvent(m))
	return m.Clone(), nil
}

// Deposit pulls amount of the magnet's token from the funder into escrow and
// credits the magnet's balance. Only the funder may deposit, and only in the
// asset the magnet was minted with. The overflow bound is checked before the
// gateway call so a failed addition never strands transferred value.
func (e *Engine) Deposit(caller [20]byte, magnetID uint64, amount *big.Int, token [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.gateway == nil {
		return errNilGateway
	}
	m, ok := e.state.MagnetGet(magnetID)
	if !ok {
		return ErrMagnetNotFound
	}
	if caller != m.Funder {
		return ErrDepositNotFunder
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroDeposit
	}
	if token != m.Token {
		return ErrTokenMismatch
	}
	newBalance, err := checkedAdd(m.Balance, amount)
	if err != nil {
		return err
	}
	vault, err := e.state.MagnetVaultAddress(m.Token)
	if err != nil {
		return err
	}
	if !e.gateway.TransferFrom(m.Token, caller, vault, amount) {
		return ErrTransferFailed
	}
	m.Balance = newBalance
	if err := e.state.MagnetPut(m); err != nil {
		return err
	}
	e.emit(NewDepositedEvent(caller, m, amount))
	return nil
}

// Withdraw pays amount of the magnet's token out of escrow to the caller.
// The recipient may take up to the vested entitlement not yet withdrawn; the
// funder may reclaim only the portion of the balance the recipient has not
// yet earned. Accounting effects are persisted before the gateway transfer so
// any reentry observes the already-reduced entitlement; a failed transfer
// restores the prior record.
func (e *Engine) Withdraw(caller [20]byte, magnetID uint64, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.gateway == nil {
		return errNilGateway
	}
	m, ok := e.state.MagnetGet(magnetID)
	if !ok {
		return ErrMagnetNotFound
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroWithdraw
	}
	prior := m.Clone()
	vested := VestedAmount(m, e.now())
	owed, err := checkedSub(vested, m.AmountWithdrawn)
	if err != nil {
		return err
	}
	switch caller {
	case m.Recipient:
		if owed.Sign() == 0 {
			return ErrZeroAvailable
		}
		if amount.Cmp(owed) > 0 || amount.Cmp(m.Balance) > 0 {
			return ErrExceedsAvailable
		}
		withdrawn, err := checkedAdd(m.AmountWithdrawn, amount)
		if err != nil {
			return err
		}
		m.AmountWithdrawn = withdrawn
	case m.Funder:
		available := big.NewInt(0)
		if m.Balance.Cmp(owed) > 0 {
			available = new(big.Int).Sub(m.Balance, owed)
		}
		if available.Sign() == 0 {
			return ErrZeroAvailable
		}
		if amount.Cmp(available) > 0 {
			return ErrExceedsAvailable
		}
	default:
		return ErrNotFunderOrRecipient
	}
	balance, err := checkedSub(m.Balance, amount)
	if err != nil {
		return err
	}
	m.Balance = balance
	if err := e.state.MagnetPut(m); err != nil {
		return err
	}
	if !e.gateway.Transfer(m.Token, caller, amount) {
		if restoreErr := e.state.MagnetPut(prior); restoreErr != nil {
			return restoreErr
		}
		return ErrTransferFailed
	}
	e.emit(NewWithdrawnEvent(caller, m, amount))
	return nil
}

// --- Read accessors ---

// IsFunder reports whether addr has registered as a funder.
func (e *Engine) IsFunder(addr [20]byte) bool {
	if e == nil || e.state == nil {
		return false
	}
	_, ok := e.state.FunderGet(addr)
	return ok
}

// FunderCount returns the number of registered funders.
func (e *Engine) FunderCount() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.state.FunderCount()
}

// GetFunder returns the funder record for addr.
func (e *Engine) GetFunder(addr [20]byte) (*Funder, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	funder, ok := e.state.FunderGet(addr)
	if !ok {
		return nil, ErrNotFunder
	}
	return funder.Clone(), nil
}

// MagnetCountByFunder returns how many magnets addr has minted.
func (e *Engine) MagnetCountByFunder(addr [20]byte) (uint64, error) {
	funder, err := e.GetFunder(addr)
	if err != nil {
		return 0, err
	}
	return uint64(len(funder.MagnetIDs)), nil
}

// MagnetIDsByFunder returns the ids of every magnet addr has minted, in mint
// order.
func (e *Engine) MagnetIDsByFunder(addr [20]byte) ([]uint64, error) {
	funder, err := e.GetFunder(addr)
	if err != nil {
		return nil, err
	}
	return funder.MagnetIDs, nil
}

// AdminsByFunder returns the admin address set of the funder.
func (e *Engine) AdminsByFunder(addr [20]byte) ([][20]byte, error) {
	funder, err := e.GetFunder(addr)
	if err != nil {
		return nil, err
	}
	return funder.Admins, nil
}

// IsAdmin reports whether addr is an admin of the given funder. Unknown
// funders simply report false.
func (e *Engine) IsAdmin(addr, funderAddr [20]byte) bool {
	if e == nil || e.state == nil {
		return false
	}
	funder, ok := e.state.FunderGet(funderAddr)
	if !ok {
		return false
	}
	return funder.IsAdmin(addr)
}

// IsMagnet reports whether a magnet exists for id.
func (e *Engine) IsMagnet(id uint64) bool {
	if e == nil || e.state == nil {
		return false
	}
	_, ok := e.state.MagnetGet(id)
	return ok
}

// MagnetCount returns the number of minted magnets.
func (e *Engine) MagnetCount() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.state.MagnetCount()
}

// NextMagnetID returns the id the next mint will be assigned. Ids are
// sequential and never reused, so this equals the magnet count.
func (e *Engine) NextMagnetID() (uint64, error) {
	return e.MagnetCount()
}

// Get returns the magnet record for id.
func (e *Engine) Get(id uint64) (*VestingMagnet, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	m, ok := e.state.MagnetGet(id)
	if !ok {
		return nil, ErrMagnetNotFound
	}
	return m.Clone(), nil
}

// Balance returns the current escrowed value of the magnet.
func (e *Engine) Balance(id uint64) (*big.Int, error) {
	m, err := e.Get(id)
	if err != nil {
		return nil, err
	}
	return m.Balance, nil
}

// MagnetsByRecipient returns the ids of every magnet naming addr as
// recipient, in mint order. Unknown recipients report an empty list.
func (e *Engine) MagnetsByRecipient(addr [20]byte) ([]uint64, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.MagnetIDsByRecipient(addr)
}

// GetVestedAmount returns the recipient's cumulative unlocked value for the
// magnet at the engine's current time.
func (e *Engine) GetVestedAmount(id uint64) (*big.Int, error) {
	m, err := e.Get(id)
	if err != nil {
		return nil, err
	}
	return VestedAmount(m, e.now()), nil
}

// GetVestedAmountIgnoringCliff returns the unlocked value for the magnet at
// the engine's current time without applying the cliff gate.
func (e *Engine) GetVestedAmountIgnoringCliff(id uint64) (*big.Int, error) {
	m, err := e.Get(id)
	if err != nil {
		return nil, err
	}
	return VestedAmountIgnoringCliff(m, e.now()), nil
}
