// Package credentials resolves the named secrets every handler depends on and
// stores the ones the renewal handlers refresh.
package credentials

import (
	"context"
	"errors"
)

// Parameter names, matching the ones registered for the Graph subscription.
const (
	ClientID       = "MSGraphClientId"
	ClientSecret   = "MSGraphClientSecret"
	TenantID       = "MSGraphTenantId"
	AccessToken    = "MSGraphAccessToken"
	UserID         = "MSGraphUserId"
	SubscriptionID = "MSGraphSubNotificationSecure"
	ClientState    = "MSGraphSecretClientState"
	DispatchTopic  = "EmailSNSTopic"
)

// ErrNotFound is returned when a parameter has never been stored.
var ErrNotFound = errors.New("parameter not found")

// Provider is the credential store as the handlers see it. Put always stores a
// secure value and overwrites any previous one.
type Provider interface {
	Get(ctx context.Context, name string) (string, error)
	Put(ctx context.Context, name, value string) error
}
