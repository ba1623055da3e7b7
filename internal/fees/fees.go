// Package fees computes the platform's tiered commission and the mandatory
// statutory contribution. All functions are pure and total over non-negative
// input; callers are responsible for rejecting negative amounts up front.
package fees

// Commission brackets (amounts in minor units, rates in basis points).
// The single matching bracket's rate applies to the entire gross amount,
// not marginally. Carried over from the platform's pricing as-is, including
// the discontinuity at bracket boundaries.
const (
	TierOneCeiling = 500_00   // <= GHS 500.00
	TierTwoCeiling = 2_000_00 // <= GHS 2000.00

	TierOneRateBps   = 1500 // 15%
	TierTwoRateBps   = 1000 // 10%
	TierThreeRateBps = 500  // 5%

	StatutoryRateBps = 125 // 1.25% of net earnings
)

// RoundHalfUpBps applies a basis-point rate to an amount in minor units,
// rounding half-up to the nearest minor unit.
func RoundHalfUpBps(amount int64, rateBps int64) int64 {
	if amount <= 0 {
		return 0
	}
	return (amount*rateBps + 5_000) / 10_000
}

// CommissionRateBps returns the bracket rate for a gross amount.
func CommissionRateBps(gross int64) int64 {
	switch {
	case gross <= TierOneCeiling:
		return TierOneRateBps
	case gross <= TierTwoCeiling:
		return TierTwoRateBps
	default:
		return TierThreeRateBps
	}
}

// ComputeCommission splits a gross amount into platform commission and the
// freelancer's net. commission + net == gross for every input.
func ComputeCommission(gross int64) (commission, net int64) {
	if gross <= 0 {
		return 0, 0
	}
	commission = RoundHalfUpBps(gross, CommissionRateBps(gross))
	return commission, gross - commission
}

// ComputeStatutoryDeduction returns the flat statutory contribution withheld
// from net earnings. Zero for non-positive input.
func ComputeStatutoryDeduction(netEarnings int64) int64 {
	return RoundHalfUpBps(netEarnings, StatutoryRateBps)
}
