package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"graphmail/utils"
)

type Renewer interface {
	Renew(ctx context.Context) error
}

// RenewalWorker refreshes the access token and then the subscription on a fixed
// interval, for deployments without an external scheduler.
type RenewalWorker struct {
	token        Renewer
	subscription Renewer
	interval     time.Duration
	logger       *logrus.Entry
}

func NewRenewalWorker(token, subscription Renewer, interval time.Duration, logger *logrus.Entry) *RenewalWorker {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &RenewalWorker{
		token:        token,
		subscription: subscription,
		interval:     interval,
		logger:       logger,
	}
}

// Start runs a renewal immediately and then once per interval until ctx ends.
func (rw *RenewalWorker) Start(ctx context.Context) {
	rw.logger.WithField("interval", rw.interval.String()).Info("Renewal worker started")
	_ = rw.RunOnce(ctx)

	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			rw.logger.Info("Renewal worker shutting down...")
			return
		case <-ticker.C:
			_ = rw.RunOnce(ctx)
		}
	}
}

// RunOnce attempts both renewals; a token failure does not skip the
// subscription, which issues its own token.
func (rw *RenewalWorker) RunOnce(ctx context.Context) error {
	var errs []error
	if err := rw.token.Renew(ctx); err != nil {
		utils.LogError("token_renewal_failed", err, nil)
		errs = append(errs, fmt.Errorf("token: %w", err))
	}
	if err := rw.subscription.Renew(ctx); err != nil {
		utils.LogError("subscription_renewal_failed", err, nil)
		errs = append(errs, fmt.Errorf("subscription: %w", err))
	}
	return errors.Join(errs...)
}
