package magnet

import (
	"math/big"
	"testing"
)

func newTestSchedule(start, period uint64, amountPerPeriod int64, cliff, end uint64) *VestingMagnet {
	return &VestingMagnet{
		ID:                  0,
		Recipient:           newTestAddress(0x01),
		Token:               newTestAddress(0x02),
		Funder:              newTestAddress(0x03),
		StartTime:           start,
		VestingPeriodLength: period,
		AmountPerPeriod:     big.NewInt(amountPerPeriod),
		CliffTime:           cliff,
		EndTime:             end,
		Message:             "test",
		Balance:             big.NewInt(0),
		AmountWithdrawn:     big.NewInt(0),
	}
}

func TestVestedAmountIgnoringCliffBeforeStart(t *testing.T) {
	m := newTestSchedule(1000, 10, 5, 1000, 1100)
	for _, now := range []uint64{0, 500, 999} {
		if got := VestedAmountIgnoringCliff(m, now); got.Sign() != 0 {
			t.Fatalf("expected 0 before start at %d, got %s", now, got)
		}
	}
}

func TestVestedAmountIgnoringCliffStepShape(t *testing.T) {
	m := newTestSchedule(1000, 10, 5, 1000, 1100)
	// Partial periods unlock nothing; whole periods unlock amountPerPeriod each.
	cases := []struct {
		now  uint64
		want int64
	}{
		{1000, 0},
		{1009, 0},
		{1010, 5},
		{1019, 5},
		{1020, 10},
		{1099, 45},
		{1100, 50},
	}
	for _, tc := range cases {
		if got := VestedAmountIgnoringCliff(m, tc.now); got.Int64() != tc.want {
			t.Fatalf("at %d: expected %d, got %s", tc.now, tc.want, got)
		}
	}
}

func TestVestedAmountIgnoringCliffClampsAtEnd(t *testing.T) {
	m := newTestSchedule(1000, 10, 5, 1000, 1100)
	max := VestedAmountIgnoringCliff(m, m.EndTime)
	if max.Int64() != 50 {
		t.Fatalf("expected max 50, got %s", max)
	}
	for _, now := range []uint64{1101, 2000, 1 << 62} {
		if got := VestedAmountIgnoringCliff(m, now); got.Cmp(max) != 0 {
			t.Fatalf("expected clamp at %s past end, got %s at %d", max, got, now)
		}
	}
}

func TestVestedAmountMonotonicAndBounded(t *testing.T) {
	m := newTestSchedule(1000, 7, 3, 1021, 1070)
	bound := new(big.Int).Mul(big.NewInt(int64((m.EndTime-m.StartTime)/m.VestingPeriodLength)), m.AmountPerPeriod)
	prev := big.NewInt(0)
	for now := uint64(990); now <= 1090; now++ {
		got := VestedAmount(m, now)
		if got.Cmp(prev) < 0 {
			t.Fatalf("vested amount decreased at %d: %s -> %s", now, prev, got)
		}
		if got.Cmp(bound) > 0 {
			t.Fatalf("vested amount %s exceeds bound %s at %d", got, bound, now)
		}
		prev = got
	}
	if prev.Cmp(bound) != 0 {
		t.Fatalf("expected final vested amount %s, got %s", bound, prev)
	}
}

func TestVestedAmountCliffGate(t *testing.T) {
	m := newTestSchedule(1000, 10, 5, 1050, 1100)
	for _, now := range []uint64{0, 1000, 1049, 1050} {
		if got := VestedAmount(m, now); got.Sign() != 0 {
			t.Fatalf("expected 0 at or before cliff at %d, got %s", now, got)
		}
	}
	// Past the cliff the recipient is credited with every period elapsed
	// since start, not just those since the cliff.
	for _, now := range []uint64{1051, 1060, 1099, 1100, 1200} {
		want := VestedAmountIgnoringCliff(m, now)
		if got := VestedAmount(m, now); got.Cmp(want) != 0 {
			t.Fatalf("at %d: expected %s, got %s", now, want, got)
		}
	}
	if got := VestedAmount(m, 1051); got.Int64() != 25 {
		t.Fatalf("expected 25 just past cliff, got %s", got)
	}
}

func TestVestedAmountCliffEqualsStart(t *testing.T) {
	m := newTestSchedule(1000, 10, 5, 1000, 1100)
	if got := VestedAmount(m, 1000); got.Sign() != 0 {
		t.Fatalf("expected 0 at start, got %s", got)
	}
	if got := VestedAmount(m, 1030); got.Int64() != 15 {
		t.Fatalf("expected 15 three periods in, got %s", got)
	}
}

func TestVestedAmountCliffEqualsEnd(t *testing.T) {
	m := newTestSchedule(1000, 10, 5, 1100, 1100)
	for _, now := range []uint64{1000, 1050, 1099, 1100} {
		if got := VestedAmount(m, now); got.Sign() != 0 {
			t.Fatalf("expected 0 up to end-cliff at %d, got %s", now, got)
		}
	}
	if got := VestedAmount(m, 1101); got.Int64() != 50 {
		t.Fatalf("expected full 50 past end-cliff, got %s", got)
	}
}

func TestVestedAmountNilMagnet(t *testing.T) {
	if got := VestedAmount(nil, 1000); got.Sign() != 0 {
		t.Fatalf("expected 0 for nil magnet, got %s", got)
	}
	if got := VestedAmountIgnoringCliff(nil, 1000); got.Sign() != 0 {
		t.Fatalf("expected 0 for nil magnet, got %s", got)
	}
}
