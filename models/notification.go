package models

import (
	"encoding/json"
	"time"
)

// NotificationEnvelope is the body Graph POSTs to the webhook.
type NotificationEnvelope struct {
	Value []json.RawMessage `json:"value" validate:"required,min=1"`
}

// ResourceData carries the changed item's identity.
type ResourceData struct {
	ODataType string `json:"@odata.type"`
	ODataID   string `json:"@odata.id"`
	ODataEtag string `json:"@odata.etag"`
	ID        string `json:"id"`
}

// ChangeNotification is a single entry of NotificationEnvelope.Value.
type ChangeNotification struct {
	ID                             string        `json:"id"`
	SubscriptionID                 string        `json:"subscriptionId" validate:"required"`
	SubscriptionExpirationDateTime string        `json:"subscriptionExpirationDateTime"`
	ChangeType                     string        `json:"changeType"`
	Resource                       string        `json:"resource"`
	ResourceData                   *ResourceData `json:"resourceData"`
	ClientState                    string        `json:"clientState"`
	TenantID                       string        `json:"tenantId"`
	TransactionID                  string        `json:"transactionId"`
}

// MessageID prefers resourceData.id and falls back to the notification id.
func (n ChangeNotification) MessageID() string {
	if n.ResourceData != nil && n.ResourceData.ID != "" {
		return n.ResourceData.ID
	}
	return n.ID
}

// QueueMessage wraps a forwarded notification on the dispatch topic.
type QueueMessage struct {
	ID          string          `json:"id"`
	Topic       string          `json:"topic"`
	Subject     string          `json:"subject"`
	Message     json.RawMessage `json:"message"`
	PublishedAt time.Time       `json:"publishedAt"`
	Error       string          `json:"error,omitempty"`
}
