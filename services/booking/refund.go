package booking

import "math"

// RefundTier is one row of the cancellation policy, evaluated highest MinHours first.
type RefundTier struct {
	MinHours    float64 `json:"min_hours"`
	Percentage  int     `json:"refund_percentage"`
	Reason      string  `json:"reason"`
	Description string  `json:"description"`
}

var refundTiers = []RefundTier{
	{MinHours: 72, Percentage: 100, Reason: "Full refund - cancelled 72+ hours before move", Description: "Full refund - cancel 72+ hours before move"},
	{MinHours: 48, Percentage: 75, Reason: "Partial refund (75%) - cancelled 48-72 hours before move", Description: "75% refund - cancel 48-72 hours before move"},
	{MinHours: 24, Percentage: 50, Reason: "Partial refund (50%) - cancelled 24-48 hours before move", Description: "50% refund - cancel 24-48 hours before move"},
	{MinHours: 0, Percentage: 0, Reason: "No refund - cancelled less than 24 hours before move", Description: "No refund - cancel less than 24 hours before move"},
}

// RefundTiers returns a copy of the policy table.
func RefundTiers() []RefundTier {
	out := make([]RefundTier, len(refundTiers))
	copy(out, refundTiers)
	return out
}

func tierFor(hours float64) RefundTier {
	hours = math.Max(0, hours)
	for _, t := range refundTiers {
		if hours >= t.MinHours {
			return t
		}
	}
	return refundTiers[len(refundTiers)-1]
}

// RefundPercentage maps hours-before-move onto the policy. Negative input counts as zero.
func RefundPercentage(hours float64) int {
	return tierFor(hours).Percentage
}

type RefundQuote struct {
	HoursBeforeMove float64 `json:"hours_before_move"`
	Percentage      int     `json:"refund_percentage"`
	Amount          float64 `json:"refund_amount"`
	Reason          string  `json:"reason"`
}

func CalculateRefund(amount, hours float64) RefundQuote {
	hours = math.Max(0, hours)
	t := tierFor(hours)
	return RefundQuote{
		HoursBeforeMove: hours,
		Percentage:      t.Percentage,
		Amount:          roundCents(amount * float64(t.Percentage) / 100),
		Reason:          t.Reason,
	}
}
