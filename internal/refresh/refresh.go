// Package refresh re-fetches the board's current range on a cron schedule
// so a long-lived view does not go stale between user navigations.
package refresh

import (
	"context"

	"github.com/robfig/cron/v3"

	"opsboard/internal/feed"
	appLog "opsboard/internal/log"
)

// Refresher owns the cron scheduler. A nil Refresher is valid and inert
// (returned when no schedule is configured).
type Refresher struct {
	c *cron.Cron
}

// Start schedules periodic refreshes of the board's current range. An
// empty spec disables the refresher.
func Start(spec string, board *feed.Board) (*Refresher, error) {
	if spec == "" {
		return nil, nil
	}

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		appLog.Debug("cron refresh tick", "range", board.Controller().Range().Key())
		board.Refresh(context.Background())
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	appLog.Info("background refresh scheduled", "cron", spec)
	return &Refresher{c: c}, nil
}

// Stop halts the scheduler. Safe on nil.
func (r *Refresher) Stop() {
	if r == nil {
		return
	}
	r.c.Stop()
}
