package netmon

import (
	"testing"
	"time"
)

func TestMonitor_LossRateAndBitrate(t *testing.T) {
	t.Parallel()

	start := time.Now()
	m := New()
	m.nowFunc = func() time.Time { return start }
	m.windowStart = start

	for _, seq := range []uint16{10, 11, 13} {
		m.Record(seq, 1000)
	}

	m.nowFunc = func() time.Time { return start.Add(1 * time.Second) }
	snap := m.Snapshot()

	const wantLossRate = 1.0 / 4.0 // lost=1, received=3: lost/(received+lost)
	if diff := snap.LossRate - wantLossRate; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("LossRate = %v, want %v", snap.LossRate, wantLossRate)
	}
	if diff := snap.BitrateBps - 24000; diff > 1 || diff < -1 {
		t.Fatalf("BitrateBps = %v, want ~24000", snap.BitrateBps)
	}
}

func TestMonitor_SnapshotResetsCounters(t *testing.T) {
	t.Parallel()

	m := New()
	m.Record(1, 100)
	m.Record(2, 100)
	m.Snapshot()

	snap := m.Snapshot()
	if snap.LossRate != 0 || snap.BitrateBps != 0 {
		t.Fatalf("expected zeroed snapshot after reset, got %+v", snap)
	}
}

func TestMonitor_SequenceWrap(t *testing.T) {
	t.Parallel()

	m := New()
	m.Record(65534, 10)
	m.Record(65535, 10)
	m.Record(0, 10) // wraps, no loss
	m.Record(1, 10)

	snap := m.Snapshot()
	if snap.LossRate != 0 {
		t.Fatalf("LossRate = %v, want 0 (no loss across wrap)", snap.LossRate)
	}
}

func TestMonitor_NoLossWhenSequential(t *testing.T) {
	t.Parallel()

	m := New()
	for seq := uint16(0); seq < 20; seq++ {
		m.Record(seq, 50)
	}
	snap := m.Snapshot()
	if snap.LossRate != 0 {
		t.Fatalf("LossRate = %v, want 0", snap.LossRate)
	}
}
