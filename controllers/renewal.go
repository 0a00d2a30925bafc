package controller

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"graphmail/credentials"
	"graphmail/graph"
	"graphmail/utils"
)

// SubscriptionLifetime is how far ahead each renewal pushes the subscription expiry.
const SubscriptionLifetime = 48 * time.Hour

type TokenIssuer interface {
	IssueToken(ctx context.Context, creds graph.AppCredentials) (string, error)
}

type SubscriptionUpdater interface {
	UpdateSubscription(ctx context.Context, token, subscriptionID string, expiresAt time.Time) (*graph.Subscription, error)
}

// issueToken reads the static app credentials and exchanges them for a bearer token.
func issueToken(ctx context.Context, creds credentials.Provider, issuer TokenIssuer) (string, error) {
	var app graph.AppCredentials
	for _, p := range []struct {
		name string
		dst  *string
	}{
		{credentials.ClientID, &app.ClientID},
		{credentials.ClientSecret, &app.ClientSecret},
		{credentials.TenantID, &app.TenantID},
	} {
		v, err := creds.Get(ctx, p.name)
		if err != nil {
			return "", utils.Upstream("read "+p.name, err)
		}
		*p.dst = v
	}

	token, err := issuer.IssueToken(ctx, app)
	if err != nil {
		return "", utils.Upstream("issue token", err)
	}
	if token == "" {
		return "", utils.Upstream("issue token", errors.New("token endpoint returned an empty access token"))
	}
	return token, nil
}

// CredentialRenewer refreshes the stored access token.
type CredentialRenewer struct {
	creds  credentials.Provider
	issuer TokenIssuer
	logger *logrus.Entry
}

func NewCredentialRenewer(creds credentials.Provider, issuer TokenIssuer, logger *logrus.Entry) *CredentialRenewer {
	return &CredentialRenewer{creds: creds, issuer: issuer, logger: logger}
}

// Renew writes a fresh token only after the issuer succeeded.
func (r *CredentialRenewer) Renew(ctx context.Context) error {
	token, err := issueToken(ctx, r.creds, r.issuer)
	if err != nil {
		return err
	}
	if err := r.creds.Put(ctx, credentials.AccessToken, token); err != nil {
		return utils.Upstream("store access token", err)
	}
	r.logger.Info("Access token renewed")
	return nil
}

// SubscriptionRenewer pushes the notification subscription's expiry forward.
type SubscriptionRenewer struct {
	creds   credentials.Provider
	issuer  TokenIssuer
	updater SubscriptionUpdater
	now     func() time.Time
	logger  *logrus.Entry
}

func NewSubscriptionRenewer(creds credentials.Provider, issuer TokenIssuer, updater SubscriptionUpdater, logger *logrus.Entry) *SubscriptionRenewer {
	return &SubscriptionRenewer{
		creds:   creds,
		issuer:  issuer,
		updater: updater,
		now:     time.Now,
		logger:  logger,
	}
}

func (r *SubscriptionRenewer) Renew(ctx context.Context) error {
	token, err := issueToken(ctx, r.creds, r.issuer)
	if err != nil {
		return err
	}
	subscriptionID, err := r.creds.Get(ctx, credentials.SubscriptionID)
	if err != nil {
		return utils.Upstream("read subscription id", err)
	}

	expiresAt := r.now().UTC().Add(SubscriptionLifetime)
	sub, err := r.updater.UpdateSubscription(ctx, token, subscriptionID, expiresAt)
	if err != nil {
		return utils.Upstream("renew subscription "+subscriptionID, err)
	}

	r.logger.WithFields(logrus.Fields{
		"subscription_id": sub.ID,
		"expires_at":      sub.ExpirationDateTime,
	}).Info("Subscription renewed")
	return nil
}
