package booking

import "time"

// TimeWindow is a half-open interval [Start, End).
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ComputeWindow expands a move into the interval during which its truck and
// driver are occupied, including travel buffer on both sides.
func ComputeWindow(moveDate time.Time, durationHours float64, bufferMinutes int) TimeWindow {
	buffer := time.Duration(bufferMinutes) * time.Minute
	duration := time.Duration(durationHours * float64(time.Hour))
	return TimeWindow{
		Start: moveDate.Add(-buffer),
		End:   moveDate.Add(duration + buffer),
	}
}

// Overlaps is true when the windows share any instant. Touching endpoints do not overlap.
func (w TimeWindow) Overlaps(other TimeWindow) bool {
	return w.Start.Before(other.End) && w.End.After(other.Start)
}

func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}
