// Package abr implements the server-side adaptive-bitrate controller: a
// quality-ladder state machine that turns network-trend feedback into a
// bitrate/fps/height decision for the encoder.
package abr

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zsiec/vstream/media"
)

// UpgradeSustain is how long ConsideringUpgrade must persist before a
// promotion to the next-higher level fires.
const UpgradeSustain = 5 * time.Second

// DowngradeSustain is how long ConsideringDowngrade must persist before a
// demotion to the next-lower level fires.
const DowngradeSustain = 8 * time.Second

const (
	increaseFactor = 1.10
	decreaseFactor = 0.85
)

// Decision is the encoder-facing output of the controller: read lock-free
// via Controller.Decision.
type Decision struct {
	Bitrate      int64
	TargetFPS    int
	TargetHeight int
}

// Controller runs the quality-ladder hysteresis state machine described
// in spec §4.F. Mutating state is mutex-guarded; Decision is additionally
// published to an atomic.Value for lock-free reads by the encoder.
type Controller struct {
	log *slog.Logger

	mu          sync.Mutex
	ladder      []media.QualityLevel
	levelIndex  int
	bitrate     int64
	changeState media.ChangeState
	changeSince time.Time
	nowFunc     func() time.Time

	decision atomic.Value // Decision
}

// New creates a Controller with no ladder configured; call
// SetSourceResolution before Feedback.
func New(log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	c := &Controller{
		log:         log.With("component", "abr"),
		changeState: media.Stable,
		nowFunc:     time.Now,
	}
	return c
}

// SetSourceResolution builds the ladder from DefaultLadder, keeping only
// levels with Height <= h, and starts at the highest surviving level with
// bitrate = level.StartBitrate.
func (c *Controller) SetSourceResolution(w, h int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ladder = buildLadder(DefaultLadder, h)
	c.levelIndex = 0
	c.changeState = media.Stable
	if len(c.ladder) > 0 {
		c.bitrate = c.ladder[0].StartBitrate
	}
	c.publishLocked()
}

// Ladder returns the filtered quality ladder currently in effect.
func (c *Controller) Ladder() []media.QualityLevel {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]media.QualityLevel, len(c.ladder))
	copy(out, c.ladder)
	return out
}

// Feedback applies one heartbeat's trend, adjusting bitrate within the
// current level and running the level-change hysteresis.
func (c *Controller) Feedback(trend media.Trend) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.ladder) == 0 {
		return
	}
	level := c.ladder[c.levelIndex]

	switch trend {
	case media.TrendIncrease:
		c.bitrate = int64(float64(c.bitrate) * increaseFactor)
	case media.TrendDecrease:
		c.bitrate = int64(float64(c.bitrate) * decreaseFactor)
	}
	if c.bitrate < level.MinBitrate {
		c.bitrate = level.MinBitrate
	}
	if c.bitrate > level.MaxBitrate {
		c.bitrate = level.MaxBitrate
	}

	now := c.nowFunc()

	switch {
	case c.bitrate >= level.MaxBitrate && c.levelIndex > 0:
		c.enterOrSustain(media.ConsideringUpgrade, now, UpgradeSustain, func() {
			c.promote()
		})

	case c.bitrate <= level.MinBitrate && c.levelIndex < len(c.ladder)-1:
		c.enterOrSustain(media.ConsideringDowngrade, now, DowngradeSustain, func() {
			c.demote()
		})

	default:
		c.changeState = media.Stable
	}

	c.publishLocked()
}

// enterOrSustain transitions into state (recording changeSince) if not
// already in it, or fires onSustained once the sustain duration elapses.
// Caller holds c.mu.
func (c *Controller) enterOrSustain(state media.ChangeState, now time.Time, sustain time.Duration, onSustained func()) {
	if c.changeState != state {
		c.changeState = state
		c.changeSince = now
		return
	}
	if now.Sub(c.changeSince) >= sustain {
		onSustained()
	}
}

// promote moves to the next-higher (lower-index) level, resetting bitrate
// to its start bitrate. Caller holds c.mu.
func (c *Controller) promote() {
	c.levelIndex--
	c.bitrate = c.ladder[c.levelIndex].StartBitrate
	c.changeState = media.Stable
	c.log.Info("abr promoted", "level_index", c.levelIndex, "height", c.ladder[c.levelIndex].Height)
}

// demote moves to the next-lower (higher-index) level, resetting bitrate
// to its start bitrate. Caller holds c.mu.
func (c *Controller) demote() {
	c.levelIndex++
	c.bitrate = c.ladder[c.levelIndex].StartBitrate
	c.changeState = media.Stable
	c.log.Info("abr demoted", "level_index", c.levelIndex, "height", c.ladder[c.levelIndex].Height)
}

// publishLocked updates the lock-free Decision snapshot. Caller holds c.mu.
func (c *Controller) publishLocked() {
	if len(c.ladder) == 0 {
		return
	}
	level := c.ladder[c.levelIndex]
	c.decision.Store(Decision{
		Bitrate:      c.bitrate,
		TargetFPS:    level.TargetFPS,
		TargetHeight: level.Height,
	})
}

// Decision returns the current encoder-facing decision without taking a
// lock (beyond atomic.Value's internal synchronization).
func (c *Controller) Decision() Decision {
	d, _ := c.decision.Load().(Decision)
	return d
}

// State returns the current hysteresis state, for diagnostics.
func (c *Controller) State() media.ChangeState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changeState
}

// LevelIndex returns the current ladder index, for diagnostics/tests.
func (c *Controller) LevelIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.levelIndex
}

// Bitrate returns the current bitrate, for diagnostics/tests.
func (c *Controller) Bitrate() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bitrate
}
