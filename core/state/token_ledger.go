package state

import (
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"magnetd/storage"
)

var tokenBalancePrefix = []byte("magnet/token/balance/")

// TokenLedger tracks per-token account balances inside the same database as
// the magnet records and implements the engine's TokenGateway. Transfers are
// all-or-nothing: a failed leg leaves both balances untouched.
type TokenLedger struct {
	mgr *Manager
}

// NewTokenLedger creates a gateway moving value through the manager's store.
func NewTokenLedger(mgr *Manager) *TokenLedger {
	return &TokenLedger{mgr: mgr}
}

func tokenBalanceKey(token, addr [20]byte) []byte {
	buf := make([]byte, len(tokenBalancePrefix)+len(token)+len(addr))
	copy(buf, tokenBalancePrefix)
	copy(buf[len(tokenBalancePrefix):], token[:])
	copy(buf[len(tokenBalancePrefix)+len(token):], addr[:])
	return ethcrypto.Keccak256(buf)
}

// BalanceOf returns the current balance of addr in the given token.
func (l *TokenLedger) BalanceOf(token, addr [20]byte) (*big.Int, error) {
	if l == nil || l.mgr == nil || l.mgr.db == nil {
		return nil, fmt.Errorf("token ledger uninitialised")
	}
	raw, err := l.mgr.db.Get(tokenBalanceKey(token, addr))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return big.NewInt(0), nil
		}
		return nil, err
	}
	return new(big.Int).SetBytes(raw), nil
}

func (l *TokenLedger) setBalance(token, addr [20]byte, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("negative balance")
	}
	return l.mgr.db.Put(tokenBalanceKey(token, addr), amount.Bytes())
}

// Mint credits addr with amount of token. Used to seed balances at genesis
// and in tests; the escrow engine itself never mints.
func (l *TokenLedger) Mint(token, addr [20]byte, amount *big.Int) error {
	if l == nil || l.mgr == nil || l.mgr.db == nil {
		return fmt.Errorf("token ledger uninitialised")
	}
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("mint amount must be non-negative")
	}
	balance, err := l.BalanceOf(token, addr)
	if err != nil {
		return err
	}
	sum := new(big.Int).Add(balance, amount)
	if _, overflow := uint256.FromBig(sum); overflow {
		return fmt.Errorf("token supply overflow")
	}
	return l.setBalance(token, addr, sum)
}

func (l *TokenLedger) move(token, from, to [20]byte, amount *big.Int) error {
	if l == nil || l.mgr == nil || l.mgr.db == nil {
		return fmt.Errorf("token ledger uninitialised")
	}
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("negative transfer amount")
	}
	if amount.Sign() == 0 {
		return nil
	}
	fromBalance, err := l.BalanceOf(token, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient balance")
	}
	toBalance, err := l.BalanceOf(token, to)
	if err != nil {
		return err
	}
	sum := new(big.Int).Add(toBalance, amount)
	if _, overflow := uint256.FromBig(sum); overflow {
		return fmt.Errorf("token balance overflow")
	}
	if err := l.setBalance(token, from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return l.setBalance(token, to, sum)
}

// TransferFrom pulls amount of token from the from account into to. It
// reports success as a boolean per the gateway contract.
func (l *TokenLedger) TransferFrom(token, from, to [20]byte, amount *big.Int) bool {
	return l.move(token, from, to, amount) == nil
}

// Transfer pushes amount of token out of the escrow vault to the to account.
func (l *TokenLedger) Transfer(token, to [20]byte, amount *big.Int) bool {
	if l == nil || l.mgr == nil {
		return false
	}
	vault, err := l.mgr.MagnetVaultAddress(token)
	if err != nil {
		return false
	}
	return l.move(token, vault, to, amount) == nil
}
