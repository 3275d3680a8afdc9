package magnet

import (
	"fmt"
	"math/big"
)

// Funder is a registered grant issuer. The address acts as the identity; the
// id is assigned once at registration and never changes. MagnetIDs records
// every magnet the funder has minted, in mint order.
type Funder struct {
	ID          uint64
	Funder      [20]byte
	Admins      [][20]byte
	Name        string
	Description string
	ImageURL    string
	MagnetIDs   []uint64
}

// Clone returns a deep copy of the funder record so callers can safely mutate
// the copy without affecting the stored instance.
func (f *Funder) Clone() *Funder {
	if f == nil {
		return nil
	}
	clone := *f
	if f.Admins != nil {
		clone.Admins = make([][20]byte, len(f.Admins))
		copy(clone.Admins, f.Admins)
	}
	if f.MagnetIDs != nil {
		clone.MagnetIDs = append([]uint64(nil), f.MagnetIDs...)
	}
	return &clone
}

// IsAdmin reports whether addr is in the funder's admin set.
func (f *Funder) IsAdmin(addr [20]byte) bool {
	if f == nil {
		return false
	}
	for _, admin := range f.Admins {
		if admin == addr {
			return true
		}
	}
	return false
}

// VestingMagnet is a single vesting grant. The schedule fields are immutable
// after mint; Balance and AmountWithdrawn are the only mutable fields and are
// changed exclusively by deposit and withdraw.
type VestingMagnet struct {
	ID                  uint64
	Recipient           [20]byte
	Token               [20]byte
	Funder              [20]byte
	StartTime           uint64
	VestingPeriodLength uint64
	AmountPerPeriod     *big.Int
	CliffTime           uint64
	EndTime             uint64
	Message             string
	Balance             *big.Int
	AmountWithdrawn     *big.Int
}

// Clone returns a deep copy of the magnet so callers can safely mutate the
// copy without affecting the stored instance.
func (m *VestingMagnet) Clone() *VestingMagnet {
	if m == nil {
		return nil
	}
	clone := *m
	clone.AmountPerPeriod = cloneBigInt(m.AmountPerPeriod)
	clone.Balance = cloneBigInt(m.Balance)
	clone.AmountWithdrawn = cloneBigInt(m.AmountWithdrawn)
	return &clone
}

// SanitizeMagnet validates structural invariants of a magnet record and
// returns a cloned instance with non-nil amount fields. Schedule invariants
// are established at mint time; this guards against corrupted storage records
// re-entering the engine.
func SanitizeMagnet(m *VestingMagnet) (*VestingMagnet, error) {
	if m == nil {
		return nil, fmt.Errorf("nil magnet")
	}
	clone := m.Clone()
	if clone.Recipient == ([20]byte{}) {
		return nil, fmt.Errorf("magnet %d: zero recipient", clone.ID)
	}
	if clone.VestingPeriodLength == 0 {
		return nil, fmt.Errorf("magnet %d: zero vesting period", clone.ID)
	}
	if clone.EndTime <= clone.StartTime || clone.CliffTime < clone.StartTime || clone.EndTime < clone.CliffTime {
		return nil, fmt.Errorf("magnet %d: inconsistent schedule times", clone.ID)
	}
	if clone.AmountPerPeriod.Sign() <= 0 {
		return nil, fmt.Errorf("magnet %d: non-positive amount per period", clone.ID)
	}
	if clone.Balance.Sign() < 0 || clone.AmountWithdrawn.Sign() < 0 {
		return nil, fmt.Errorf("magnet %d: negative accounting field", clone.ID)
	}
	return clone, nil
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
