package netmon

import (
	"sync"
	"time"

	"github.com/zsiec/vstream/media"
)

// GradientWindow is the number of recent arrivals the classifier considers.
const GradientWindow = 100

// GradientMinSamples is the minimum number of arrivals required before the
// classifier will produce a non-Hold decision.
const GradientMinSamples = 50

// GradientThreshold is the symmetric threshold applied to the average
// normalized delay gradient.
const GradientThreshold = 0.05

type arrival struct {
	at     time.Time
	mediaTS int64
}

// GradientClassifier observes packet arrival times against their media
// timestamps and classifies the trend as Increase, Decrease, or Hold.
type GradientClassifier struct {
	mu      sync.Mutex
	history []arrival
}

// NewGradientClassifier creates an empty classifier.
func NewGradientClassifier() *GradientClassifier {
	return &GradientClassifier{}
}

// Observe records one packet's arrival wall-time and media timestamp
// (milliseconds), retaining at most GradientWindow most-recent entries.
func (g *GradientClassifier) Observe(at time.Time, mediaTS int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.history = append(g.history, arrival{at: at, mediaTS: mediaTS})
	if len(g.history) > GradientWindow {
		g.history = g.history[len(g.history)-GradientWindow:]
	}
}

// Classify computes the average normalized delay gradient across
// consecutive arrivals in the window and maps it to a Trend. Returns
// media.TrendHold until at least GradientMinSamples arrivals have been
// observed.
func (g *GradientClassifier) Classify() media.Trend {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.history) < GradientMinSamples {
		return media.TrendHold
	}

	var sum float64
	var n int
	for i := 1; i < len(g.history); i++ {
		mediaDelta := float64(g.history[i].mediaTS - g.history[i-1].mediaTS)
		if mediaDelta == 0 {
			continue
		}
		arrivalDelta := float64(g.history[i].at.Sub(g.history[i-1].at).Milliseconds())
		sum += (arrivalDelta - mediaDelta) / mediaDelta
		n++
	}
	if n == 0 {
		return media.TrendHold
	}

	gradient := sum / float64(n)
	switch {
	case gradient > GradientThreshold:
		return media.TrendDecrease // arriving slower than presented -> congestion building
	case gradient < -GradientThreshold:
		return media.TrendIncrease // arriving faster than presented -> headroom available
	default:
		return media.TrendHold
	}
}

// Reset discards all observed history.
func (g *GradientClassifier) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.history = nil
}
