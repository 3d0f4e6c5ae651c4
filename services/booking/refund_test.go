package booking

import "testing"

func TestRefundPercentage(t *testing.T) {
	tests := []struct {
		hours float64
		want  int
	}{
		{200, 100},
		{72, 100},
		{71.999, 75},
		{48, 75},
		{47.999, 50},
		{24, 50},
		{23.999, 0},
		{0, 0},
		{-5, 0},
	}
	for _, tt := range tests {
		if got := RefundPercentage(tt.hours); got != tt.want {
			t.Errorf("RefundPercentage(%v) = %d, want %d", tt.hours, got, tt.want)
		}
	}
}

func TestCalculateRefund(t *testing.T) {
	q := CalculateRefund(833.33, 50)
	if q.Percentage != 75 {
		t.Fatalf("percentage = %d", q.Percentage)
	}
	if q.Amount != 625.00 {
		t.Errorf("amount = %v, want 625.00", q.Amount)
	}
	if q.Reason == "" {
		t.Error("reason should name the tier")
	}

	late := CalculateRefund(500, -3)
	if late.Amount != 0 || late.HoursBeforeMove != 0 {
		t.Errorf("past move refund = %+v", late)
	}
}

func TestRefundTiersIsACopy(t *testing.T) {
	tiers := RefundTiers()
	tiers[0].Percentage = 1
	if RefundPercentage(100) != 100 {
		t.Fatal("mutating the returned tiers changed the policy")
	}
	if len(tiers) != 4 {
		t.Errorf("tiers = %d", len(tiers))
	}
}
