package magnet

import "errors"

// Failure values returned by the engine. The message strings are part of the
// external contract: callers and downstream integrations match on them, so
// they must stay byte-for-byte stable across releases.
var (
	// Funder registry failures.
	ErrFunderExists  = errors.New("Funder already exists")
	ErrNotFunder     = errors.New("Not a funder")
	ErrNotRegistered = errors.New("Must register as funder first")

	// Mint validation failures, in the order the checks run.
	ErrZeroRecipient       = errors.New("Recipient cant be the zero address")
	ErrStartTimeInPast     = errors.New("Start time is in the past")
	ErrCliffBeforeStart    = errors.New("Cliff time must be >= start time")
	ErrEndTimeOrder        = errors.New("End time must be > start time and cliff time")
	ErrZeroPeriod          = errors.New("Vesting period length cannot be zero")
	ErrPeriodTooLong       = errors.New("Period must be < duration")
	ErrDurationNotMultiple = errors.New("Duration must be a multiple of period length")
	ErrZeroAmountPerPeriod = errors.New("Amount must be >0")

	// Ledger failures.
	ErrMagnetNotFound       = errors.New("Magnet does not exist")
	ErrDepositNotFunder     = errors.New("Only the funder can deposit to a magnet")
	ErrZeroDeposit          = errors.New("Deposit must be greater than zero")
	ErrTokenMismatch        = errors.New("Deposit token address does not match magnet token")
	ErrZeroAvailable        = errors.New("Available balance is zero")
	ErrNotFunderOrRecipient = errors.New("Caller is not the funder or recipient of this magnet")
	ErrExceedsAvailable     = errors.New("Amount exceeds available balance")
	ErrZeroWithdraw         = errors.New("Withdrawal must be greater than zero")
	ErrTransferFailed       = errors.New("Token transfer failed")

	// Arithmetic guards on the escrow balance accounting.
	ErrAdditionOverflow    = errors.New("SafeMath: addition overflow")
	ErrSubtractionOverflow = errors.New("SafeMath: subtraction overflow")
)

// Wiring failures: these indicate a misconfigured engine, not a caller error.
var (
	errNilState   = errors.New("magnet engine: state not configured")
	errNilGateway = errors.New("magnet engine: token gateway not configured")
)
