package magnet

import "math/big"

// The vesting schedule calculation is pure: it reads only the magnet's
// immutable schedule fields and a caller-supplied timestamp, so any observer
// can recompute it from public state.

// VestedAmountIgnoringCliff returns the cumulative value unlocked by elapsed
// whole vesting periods at time now, without applying the cliff gate. The
// result is non-decreasing in now, jumps only at period boundaries, and clamps
// at EndTime, so the maximum is
// ((EndTime-StartTime)/VestingPeriodLength) * AmountPerPeriod — exact because
// the duration is a verified multiple of the period length.
func VestedAmountIgnoringCliff(m *VestingMagnet, now uint64) *big.Int {
	if m == nil || now < m.StartTime {
		return big.NewInt(0)
	}
	effective := now
	if effective > m.EndTime {
		effective = m.EndTime
	}
	elapsedPeriods := (effective - m.StartTime) / m.VestingPeriodLength
	amount := new(big.Int).SetUint64(elapsedPeriods)
	return amount.Mul(amount, cloneBigInt(m.AmountPerPeriod))
}

// VestedAmount returns the recipient's cumulative unlocked value at time now.
// The cliff is a hard gate: before and at CliffTime nothing is vested. Once
// past the cliff the recipient is credited with all periods elapsed since
// StartTime, not just those since the cliff — the cliff delays access, it
// does not forfeit accrued value.
func VestedAmount(m *VestingMagnet, now uint64) *big.Int {
	if m == nil || now <= m.CliffTime {
		return big.NewInt(0)
	}
	return VestedAmountIgnoringCliff(m, now)
}
