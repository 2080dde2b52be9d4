package netmon

import (
	"testing"
	"time"

	"github.com/zsiec/vstream/media"
)

func TestGradientClassifier_HoldBeforeMinSamples(t *testing.T) {
	t.Parallel()

	g := NewGradientClassifier()
	base := time.Now()
	for i := 0; i < GradientMinSamples-1; i++ {
		g.Observe(base.Add(time.Duration(i)*33*time.Millisecond), int64(i)*33)
	}
	if got := g.Classify(); got != media.TrendHold {
		t.Fatalf("Classify() = %v, want Hold below min samples", got)
	}
}

func TestGradientClassifier_SteadyArrivalIsHold(t *testing.T) {
	t.Parallel()

	g := NewGradientClassifier()
	base := time.Now()
	for i := 0; i < GradientWindow; i++ {
		g.Observe(base.Add(time.Duration(i)*33*time.Millisecond), int64(i)*33)
	}
	if got := g.Classify(); got != media.TrendHold {
		t.Fatalf("Classify() = %v, want Hold for steady arrival matching media cadence", got)
	}
}

func TestGradientClassifier_GrowingDelayIsDecrease(t *testing.T) {
	t.Parallel()

	g := NewGradientClassifier()
	base := time.Now()
	arrivalMs := int64(0)
	for i := 0; i < GradientWindow; i++ {
		arrivalMs += 50 // arriving much slower than the 33ms media cadence
		g.Observe(base.Add(time.Duration(arrivalMs)*time.Millisecond), int64(i)*33)
	}
	if got := g.Classify(); got != media.TrendDecrease {
		t.Fatalf("Classify() = %v, want Decrease when arrivals lag media cadence", got)
	}
}

func TestGradientClassifier_ShrinkingDelayIsIncrease(t *testing.T) {
	t.Parallel()

	g := NewGradientClassifier()
	base := time.Now()
	arrivalMs := int64(0)
	for i := 0; i < GradientWindow; i++ {
		arrivalMs += 10 // arriving much faster than the 33ms media cadence
		g.Observe(base.Add(time.Duration(arrivalMs)*time.Millisecond), int64(i)*33)
	}
	if got := g.Classify(); got != media.TrendIncrease {
		t.Fatalf("Classify() = %v, want Increase when arrivals outpace media cadence", got)
	}
}

func TestGradientClassifier_Reset(t *testing.T) {
	t.Parallel()

	g := NewGradientClassifier()
	base := time.Now()
	for i := 0; i < GradientWindow; i++ {
		g.Observe(base.Add(time.Duration(i)*33*time.Millisecond), int64(i)*33)
	}
	g.Reset()
	if got := g.Classify(); got != media.TrendHold {
		t.Fatalf("Classify() after Reset = %v, want Hold", got)
	}
}
