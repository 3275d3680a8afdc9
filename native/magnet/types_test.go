package magnet

import (
	"math/big"
	"testing"
)

func TestFunderClone(t *testing.T) {
	original := &Funder{
		ID:          3,
		Funder:      newTestAddress(0x01),
		Admins:      [][20]byte{newTestAddress(0x02)},
		Name:        "Funder 1",
		Description: "Description 1",
		ImageURL:    "imageUrl 1",
		MagnetIDs:   []uint64{4, 5},
	}
	clone := original.Clone()
	clone.Admins[0] = newTestAddress(0x0F)
	clone.MagnetIDs[0] = 99
	clone.Name = "changed"

	if original.Admins[0] != newTestAddress(0x02) {
		t.Fatal("clone admin mutation leaked into the original")
	}
	if original.MagnetIDs[0] != 4 {
		t.Fatal("clone magnet id mutation leaked into the original")
	}
	if original.Name != "Funder 1" {
		t.Fatal("clone name mutation leaked into the original")
	}
	var nilFunder *Funder
	if nilFunder.Clone() != nil {
		t.Fatal("expected nil clone of nil funder")
	}
}

func TestFunderIsAdmin(t *testing.T) {
	funder := &Funder{Admins: [][20]byte{newTestAddress(0x02), newTestAddress(0x03)}}
	if !funder.IsAdmin(newTestAddress(0x03)) {
		t.Fatal("expected admin membership")
	}
	if funder.IsAdmin(newTestAddress(0x04)) {
		t.Fatal("expected non-member to be rejected")
	}
	var nilFunder *Funder
	if nilFunder.IsAdmin(newTestAddress(0x02)) {
		t.Fatal("expected nil funder to have no admins")
	}
}

func TestVestingMagnetClone(t *testing.T) {
	original := &VestingMagnet{
		ID:                  1,
		Recipient:           newTestAddress(0x01),
		Token:               newTestAddress(0x02),
		Funder:              newTestAddress(0x03),
		StartTime:           100,
		VestingPeriodLength: 10,
		AmountPerPeriod:     big.NewInt(5),
		CliffTime:           120,
		EndTime:             200,
		Balance:             big.NewInt(50),
		AmountWithdrawn:     big.NewInt(5),
	}
	clone := original.Clone()
	clone.Balance.SetInt64(999)
	clone.AmountWithdrawn.SetInt64(999)
	clone.AmountPerPeriod.SetInt64(999)

	if original.Balance.Int64() != 50 || original.AmountWithdrawn.Int64() != 5 || original.AmountPerPeriod.Int64() != 5 {
		t.Fatalf("clone amount mutation leaked into the original: %+v", original)
	}

	withNil := &VestingMagnet{ID: 2}
	nilClone := withNil.Clone()
	if nilClone.Balance == nil || nilClone.Balance.Sign() != 0 {
		t.Fatal("expected nil amounts to clone as zero")
	}
}

func TestSanitizeMagnet(t *testing.T) {
	valid := &VestingMagnet{
		ID:                  1,
		Recipient:           newTestAddress(0x01),
		Token:               newTestAddress(0x02),
		Funder:              newTestAddress(0x03),
		StartTime:           100,
		VestingPeriodLength: 10,
		AmountPerPeriod:     big.NewInt(5),
		CliffTime:           120,
		EndTime:             200,
		Balance:             big.NewInt(0),
		AmountWithdrawn:     big.NewInt(0),
	}
	sanitized, err := SanitizeMagnet(valid)
	if err != nil {
		t.Fatalf("sanitize valid magnet: %v", err)
	}
	sanitized.Balance.SetInt64(7)
	if valid.Balance.Sign() != 0 {
		t.Fatal("sanitize must return an independent copy")
	}

	cases := []struct {
		name   string
		mutate func(m *VestingMagnet)
	}{
		{"zero recipient", func(m *VestingMagnet) { m.Recipient = [20]byte{} }},
		{"zero period", func(m *VestingMagnet) { m.VestingPeriodLength = 0 }},
		{"end before start", func(m *VestingMagnet) { m.EndTime = 90 }},
		{"cliff before start", func(m *VestingMagnet) { m.CliffTime = 90 }},
		{"cliff after end", func(m *VestingMagnet) { m.CliffTime = 250 }},
		{"zero amount per period", func(m *VestingMagnet) { m.AmountPerPeriod = big.NewInt(0) }},
		{"nil amount per period", func(m *VestingMagnet) { m.AmountPerPeriod = nil }},
		{"negative balance", func(m *VestingMagnet) { m.Balance = big.NewInt(-1) }},
		{"negative withdrawn", func(m *VestingMagnet) { m.AmountWithdrawn = big.NewInt(-1) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			broken := valid.Clone()
			tc.mutate(broken)
			if _, err := SanitizeMagnet(broken); err == nil {
				t.Fatal("expected sanitize to reject corrupted record")
			}
		})
	}

	if _, err := SanitizeMagnet(nil); err == nil {
		t.Fatal("expected sanitize to reject nil magnet")
	}
}
