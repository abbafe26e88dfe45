package harvest

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"probesampler/api"
)

// rateLimitCooldown pads Reddit's 60-second rate-limit period slightly
const rateLimitCooldown = 62 * time.Second

// Governor paces the harvester's request cadence and absorbs one transient
// rate-limit rejection per operation. It is deliberately not an exponential
// backoff: a probe search is cheap to retry once and expensive to hammer.
type Governor struct {
	perItemPause time.Duration
	sleepEvery   int
	sleepFor     time.Duration
	cooldown     time.Duration
	log          *logrus.Logger

	processed int
	sleep     func(time.Duration)
}

// NewGovernor creates a governor that pauses perItemPause after every
// processed item and an additional sleepFor after every sleepEvery items
// (0 disables the periodic pause).
func NewGovernor(perItemPause time.Duration, sleepEvery int, sleepFor time.Duration, log *logrus.Logger) *Governor {
	return &Governor{
		perItemPause: perItemPause,
		sleepEvery:   sleepEvery,
		sleepFor:     sleepFor,
		cooldown:     rateLimitCooldown,
		log:          log,
		sleep:        time.Sleep,
	}
}

// Pace records one processed item and applies the configured pauses
func (g *Governor) Pace() {
	g.processed++
	if g.sleepEvery > 0 && g.processed%g.sleepEvery == 0 {
		g.log.WithFields(logrus.Fields{
			"processed": g.processed,
			"pause":     g.sleepFor.String(),
		}).Debug("Periodic pacing pause")
		g.sleep(g.sleepFor)
	}
	if g.perItemPause > 0 {
		g.sleep(g.perItemPause)
	}
}

// Processed returns how many items have been paced so far in this run
func (g *Governor) Processed() int {
	return g.processed
}

// WithBackoff invokes op, and on a rate-limit rejection sleeps one fixed
// cooldown and retries exactly once. A second rejection, or any other
// error, propagates to the caller.
func (g *Governor) WithBackoff(op func() error) error {
	err := op()
	if err == nil || !errors.Is(err, api.ErrRateLimited) {
		return err
	}

	g.log.WithField("cooldown", g.cooldown.String()).Warn("Rate limited; backing off before single retry")
	g.sleep(g.cooldown)

	return op()
}
