package tapmetrics

import "math"

// Window sizes in milliseconds.
const (
	burstWindow    = 1000
	velocityWindow = 3000

	frenzyVelocity  = 5.0
	frenzyMinTaps   = 15
	botMinHistory   = 20
	botMaxCV        = 0.05
	botMinLifetime  = 50
	consistencyMin  = 5
)

// Snapshot bundles the derived intensity metrics for one tap.
type Snapshot struct {
	TimeSinceLast int64   `json:"timeSinceLastTap"`
	Velocity      float64 `json:"tapVelocity"`
	BurstCount    int     `json:"burstCount"`
	MaxBurst      int     `json:"maxBurst"`
	Frenzy        bool    `json:"isFrenzyMode"`
}

// Compute derives all per-tap metrics from a newest-first timestamp history
// (unix milliseconds, at most 20 entries) and the current timestamp.
func Compute(times []int64, now int64) Snapshot {
	return Snapshot{
		TimeSinceLast: TimeSinceLast(times, now),
		Velocity:      Velocity(times, now),
		BurstCount:    BurstCount(times, now),
		MaxBurst:      MaxBurst(times),
		Frenzy:        Frenzy(times, now),
	}
}

// TimeSinceLast returns now minus the newest recorded tap, or 0 with no
// history.
func TimeSinceLast(times []int64, now int64) int64 {
	if len(times) == 0 {
		return 0
	}
	return now - times[0]
}

// BurstCount counts taps within the trailing one-second window.
func BurstCount(times []int64, now int64) int {
	n := 0
	for _, ts := range times {
		if now-ts < burstWindow {
			n++
		}
	}
	return n
}

// Velocity is taps-per-second over the trailing three-second window, one
// decimal place.
func Velocity(times []int64, now int64) float64 {
	var oldest int64 = -1
	n := 0
	for _, ts := range times {
		if now-ts < velocityWindow {
			n++
			oldest = ts
		}
	}
	if n == 0 {
		return 0
	}
	span := float64(now-oldest) / 1000
	if span <= 0 {
		span = 0.001
	}
	return math.Round(float64(n)/span*10) / 10
}

// MaxBurst finds the largest number of taps inside any one-second window
// anchored at a recorded timestamp.
func MaxBurst(times []int64) int {
	max := 0
	for _, anchor := range times {
		n := 0
		for _, ts := range times {
			if ts <= anchor && anchor-ts < burstWindow {
				n++
			}
		}
		if n > max {
			max = n
		}
	}
	return max
}

// Frenzy reports a sustained high tap rate: velocity above 5 with at least
// 15 of the recent taps inside the three-second window.
func Frenzy(times []int64, now int64) bool {
	n := 0
	for _, ts := range times {
		if now-ts < velocityWindow {
			n++
		}
	}
	return Velocity(times, now) > frenzyVelocity && n >= frenzyMinTaps
}

// ConsistencyScore converts inter-tap interval variation into a 0-100 score
// where steadier tapping scores higher. The second return is false when the
// history is too short (fewer than 5 entries) to score.
func ConsistencyScore(times []int64) (float64, bool) {
	if len(times) < consistencyMin {
		return 0, false
	}
	cv, ok := intervalCV(times)
	if !ok {
		return 0, false
	}
	score := 100 - cv*100
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, true
}

// SuspectBot flags machine-steady tapping: a full 20-entry history whose 19
// intervals vary by less than 5% while the lifetime tap count exceeds 50.
// The second return is the measured coefficient of variation, for anomaly
// reporting.
func SuspectBot(times []int64, lifetimeTaps int64) (bool, float64) {
	if len(times) < botMinHistory || lifetimeTaps <= botMinLifetime {
		return false, 0
	}
	cv, ok := intervalCV(times[:botMinHistory])
	if !ok {
		return false, 0
	}
	return cv < botMaxCV, cv
}

// intervalCV is the coefficient of variation (stddev/mean) of consecutive
// inter-tap intervals. Returns false for a zero mean interval.
func intervalCV(times []int64) (float64, bool) {
	if len(times) < 2 {
		return 0, false
	}
	intervals := make([]float64, 0, len(times)-1)
	for i := 0; i < len(times)-1; i++ {
		intervals = append(intervals, float64(times[i]-times[i+1]))
	}
	var sum float64
	for _, v := range intervals {
		sum += v
	}
	mean := sum / float64(len(intervals))
	if mean == 0 {
		return 0, false
	}
	var sq float64
	for _, v := range intervals {
		sq += (v - mean) * (v - mean)
	}
	stddev := math.Sqrt(sq / float64(len(intervals)))
	return stddev / mean, true
}
