package fees

import "testing"

func TestComputeCommissionTierOne(t *testing.T) {
	// GHS 300.00 -> 15% -> commission 45.00, net 255.00
	commission, net := ComputeCommission(300_00)
	if commission != 45_00 {
		t.Fatalf("expected commission 4500, got %d", commission)
	}
	if net != 255_00 {
		t.Fatalf("expected net 25500, got %d", net)
	}
}

func TestComputeCommissionTierTwo(t *testing.T) {
	// GHS 1500.00 -> 10% -> commission 150.00, net 1350.00
	commission, net := ComputeCommission(1_500_00)
	if commission != 150_00 {
		t.Fatalf("expected commission 15000, got %d", commission)
	}
	if net != 1_350_00 {
		t.Fatalf("expected net 135000, got %d", net)
	}
}

func TestComputeCommissionTierThree(t *testing.T) {
	// GHS 5000.00 -> 5% -> commission 250.00, net 4750.00
	commission, net := ComputeCommission(5_000_00)
	if commission != 250_00 {
		t.Fatalf("expected commission 25000, got %d", commission)
	}
	if net != 4_750_00 {
		t.Fatalf("expected net 475000, got %d", net)
	}
}

func TestCommissionBracketBoundary(t *testing.T) {
	// The whole-amount bracket scheme is discontinuous at the boundary:
	// 500.00 pays 15%, 500.01 pays 10%.
	atCeiling, _ := ComputeCommission(500_00)
	aboveCeiling, _ := ComputeCommission(500_01)
	if atCeiling != 75_00 {
		t.Fatalf("expected 7500 at ceiling, got %d", atCeiling)
	}
	if aboveCeiling != 50_00 {
		t.Fatalf("expected 5000 just above ceiling, got %d", aboveCeiling)
	}
}

func TestCommissionConservation(t *testing.T) {
	for _, gross := range []int64{1, 99, 500_00, 500_01, 2_000_00, 2_000_01, 123_456_789} {
		commission, net := ComputeCommission(gross)
		if commission+net != gross {
			t.Fatalf("gross %d: commission %d + net %d != gross", gross, commission, net)
		}
		if commission < 0 || net < 0 {
			t.Fatalf("gross %d: negative split commission=%d net=%d", gross, commission, net)
		}
	}
}

func TestComputeStatutoryDeduction(t *testing.T) {
	// 1.25% of 255.00 = 3.1875 -> 3.19 half-up
	if got := ComputeStatutoryDeduction(255_00); got != 3_19 {
		t.Fatalf("expected 319, got %d", got)
	}
	// 1.25% of 1350.00 = 16.875 -> 16.88 half-up
	if got := ComputeStatutoryDeduction(1_350_00); got != 16_88 {
		t.Fatalf("expected 1688, got %d", got)
	}
	if got := ComputeStatutoryDeduction(0); got != 0 {
		t.Fatalf("expected 0 for zero input, got %d", got)
	}
	if got := ComputeStatutoryDeduction(-500); got != 0 {
		t.Fatalf("expected 0 for negative input, got %d", got)
	}
}

func TestRoundHalfUpBps(t *testing.T) {
	// 40 * 1.25% = 0.5 -> rounds up to 1
	if got := RoundHalfUpBps(40, 125); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	// 39 * 1.25% = 0.4875 -> rounds down to 0
	if got := RoundHalfUpBps(39, 125); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}
