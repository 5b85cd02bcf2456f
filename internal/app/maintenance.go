package app

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/seenimoa/stockpulse/internal/cache"
)

// StartMaintenance schedules cache backend housekeeping (badger value-log
// GC) on the cron spec. The returned stop function waits for a running job
// to finish. Backends without housekeeping get a no-op stop.
func (a *App) StartMaintenance(spec string) (stop func(), err error) {
	if _, ok := a.backend.(cache.Maintainer); !ok || spec == "" {
		return func() {}, nil
	}

	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if err := a.Maintain(); err != nil {
			a.log.Warn().Err(err).Msg("cache maintenance failed")
			return
		}
		a.log.Debug().Msg("cache maintenance completed")
	}); err != nil {
		return nil, fmt.Errorf("schedule cache maintenance %q: %w", spec, err)
	}

	a.log.Info().Str("schedule", spec).Msg("cache maintenance scheduled")
	c.Start()
	return func() {
		<-c.Stop().Done()
	}, nil
}
