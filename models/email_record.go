package models

import "time"

// EmailRecord is the flattened, queryable projection of a Graph message plus its
// decoded thread metadata. One row per DBIndex; writes overwrite.
//
// Provider timestamps stay as the ISO-8601 strings Graph returned. Booleans and
// counters are typed here and mapped to native columns by gorm.
type EmailRecord struct {
	DBIndex string `gorm:"primaryKey;column:db_index" json:"dbIndex"`
	GUID    string `gorm:"not null;index" json:"guid"`

	MessageID      string `gorm:"not null;index" json:"id"`
	TransactionID  string `json:"transactionId"`
	SubscriptionID string `gorm:"index" json:"subscriptionId"`

	ODataContext string `gorm:"column:odata_context" json:"odataContext"`
	ODataEtag    string `gorm:"column:odata_etag" json:"odataEtag"`

	SenderEmailAddress string   `gorm:"not null;index" json:"senderEmailAddress"`
	SenderName         string   `json:"senderName"`
	ToEmailAddress     string   `gorm:"index" json:"toEmailAddress"`
	ToEmailName        string   `json:"toEmailName"`
	CcRecipients       []string `gorm:"serializer:json;type:text" json:"ccRecipients"`
	BccRecipients      []string `gorm:"serializer:json;type:text" json:"bccRecipients"`

	Subject               string `json:"subject"`
	Body                  string `gorm:"type:text" json:"body"`
	BodyContentType       string `json:"bodyContentType"`
	BodyPreview           string `gorm:"type:text" json:"bodyPreview"`
	UniqueBodyContent     string `gorm:"type:text" json:"uniqueBodyContent"`
	UniqueBodyContentType string `json:"uniqueBodyContentType"`

	SentDateTime     string `json:"sentDateTime"`
	ReceivedDateTime string `json:"receivedDateTime"`

	IsDraft        bool   `gorm:"default:false" json:"isDraft"`
	IsRead         bool   `gorm:"default:false" json:"isRead"`
	HasAttachments bool   `gorm:"default:false" json:"hasAttachments"`
	Importance     string `json:"importance"`

	ConversationID    string    `gorm:"index" json:"conversationId"`
	ConversationIndex string    `json:"conversationIndex"`
	ThreadCount       int       `gorm:"not null;default:1" json:"thread_count"`
	RootSentAt        time.Time `json:"rootSentAt"`
	LastHopAt         time.Time `json:"lastHopAt"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (EmailRecord) TableName() string {
	return "graph_emails"
}
