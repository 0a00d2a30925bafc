package models

// EmailAddress mirrors Graph's emailAddress resource.
type EmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type Recipient struct {
	EmailAddress EmailAddress `json:"emailAddress"`
}

type ItemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// GraphMessage is the subset of the Graph message resource requested with $select.
// Pointer fields distinguish "absent from the response" from zero values.
type GraphMessage struct {
	ODataContext string `json:"@odata.context"`
	ODataEtag    string `json:"@odata.etag"`
	ID           string `json:"id"`

	Sender        *Recipient   `json:"sender"`
	ToRecipients  *[]Recipient `json:"toRecipients"`
	CcRecipients  []Recipient  `json:"ccRecipients"`
	BccRecipients []Recipient  `json:"bccRecipients"`

	Subject     *string   `json:"subject"`
	Body        *ItemBody `json:"body"`
	UniqueBody  *ItemBody `json:"uniqueBody"`
	BodyPreview string    `json:"bodyPreview"`

	SentDateTime     string `json:"sentDateTime"`
	ReceivedDateTime string `json:"receivedDateTime"`

	IsDraft        bool   `json:"isDraft"`
	IsRead         bool   `json:"isRead"`
	HasAttachments bool   `json:"hasAttachments"`
	Importance     string `json:"importance"`

	ConversationID    string `json:"conversationId"`
	ConversationIndex string `json:"conversationIndex"`
}

// MessageSelectFields is the $select list sent with every message lookup.
var MessageSelectFields = []string{
	"sender", "toRecipients", "ccRecipients", "bccRecipients",
	"subject", "uniqueBody", "bodyPreview", "body",
	"sentDateTime", "receivedDateTime",
	"isDraft", "isRead", "importance", "hasAttachments",
	"conversationIndex", "conversationId", "id",
}

// Addresses flattens a recipient list to bare addresses.
func Addresses(recipients []Recipient) []string {
	out := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if r.EmailAddress.Address == "" {
			continue
		}
		out = append(out, r.EmailAddress.Address)
	}
	return out
}
