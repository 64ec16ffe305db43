package entitlement

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/finsuite/accessgate/pkg/observability"
	"github.com/finsuite/accessgate/pkg/tenant"
)

// Refresher periodically re-warms the entitlement cache for a set of
// organizations so licensing changes missed by explicit invalidation (e.g.
// an admin process that died before publishing the event) converge within
// one refresh period instead of waiting for organic traffic.
type Refresher struct {
	checker  *Checker
	orgs     func(ctx context.Context) ([]tenant.OrgID, error)
	schedule string
	logger   *observability.Logger
	cron     *cron.Cron
}

// NewRefresher creates a refresher. orgs supplies the organizations to warm
// on each tick; schedule is a cron expression (e.g. "@every 5m").
func NewRefresher(checker *Checker, orgs func(ctx context.Context) ([]tenant.OrgID, error), schedule string, logger *observability.Logger) *Refresher {
	return &Refresher{
		checker:  checker,
		orgs:     orgs,
		schedule: schedule,
		logger:   logger,
	}
}

// Start registers the refresh job and starts the scheduler.
func (r *Refresher) Start() error {
	r.cron = cron.New()
	if _, err := r.cron.AddFunc(r.schedule, r.refresh); err != nil {
		return err
	}
	r.cron.Start()
	r.logger.WithField("schedule", r.schedule).Info("entitlement refresher started")
	return nil
}

// Stop stops the scheduler and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}

func (r *Refresher) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	orgIDs, err := r.orgs(ctx)
	if err != nil {
		r.logger.WithError(err).Warn("entitlement refresh: listing organizations failed")
		return
	}
	if err := r.checker.Warmup(ctx, orgIDs); err != nil {
		r.logger.WithError(err).Warn("entitlement refresh: warmup failed")
		return
	}
	r.logger.WithField("orgs", len(orgIDs)).Debug("entitlement cache refreshed")
}
