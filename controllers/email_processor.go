package controller

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/badoux/checkmail"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"graphmail/credentials"
	"graphmail/models"
	"graphmail/store"
	"graphmail/utils"
)

// MessageFetcher loads full message detail for a notification.
type MessageFetcher interface {
	GetMessage(ctx context.Context, token, userID, messageID string) (*models.GraphMessage, error)
}

// EmailProcessor turns one change notification into a stored EmailRecord.
type EmailProcessor struct {
	creds   credentials.Provider
	fetcher MessageFetcher
	records store.RecordStore
	logger  *logrus.Entry
}

func NewEmailProcessor(creds credentials.Provider, fetcher MessageFetcher, records store.RecordStore, logger *logrus.Entry) *EmailProcessor {
	return &EmailProcessor{
		creds:   creds,
		fetcher: fetcher,
		records: records,
		logger:  logger,
	}
}

// Process authenticates the notification, fetches the message it points at,
// decodes its thread position and upserts the flattened record.
func (p *EmailProcessor) Process(ctx context.Context, n models.ChangeNotification) (*models.EmailRecord, error) {
	// clientState is checked before anything else is read or fetched
	expected, err := p.creds.Get(ctx, credentials.ClientState)
	if err != nil {
		return nil, utils.Upstream("read client state", err)
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(n.ClientState)) != 1 {
		return nil, fmt.Errorf("subscription %s: %w", n.SubscriptionID, utils.ErrAuthMismatch)
	}

	messageID := n.MessageID()
	if messageID == "" {
		return nil, utils.Incomplete("resourceData.id")
	}

	token, err := p.creds.Get(ctx, credentials.AccessToken)
	if err != nil {
		return nil, utils.Upstream("read access token", err)
	}
	userID, err := p.creds.Get(ctx, credentials.UserID)
	if err != nil {
		return nil, utils.Upstream("read user id", err)
	}

	msg, err := p.fetcher.GetMessage(ctx, token, userID, messageID)
	if err != nil {
		return nil, utils.Upstream("fetch message "+messageID, err)
	}
	if msg.ID == "" {
		msg.ID = messageID
	}

	record, err := BuildEmailRecord(msg, n)
	if err != nil {
		return nil, err
	}

	if err := checkmail.ValidateFormat(record.SenderEmailAddress); err != nil {
		p.logger.WithFields(logrus.Fields{
			"db_index": record.DBIndex,
			"sender":   record.SenderEmailAddress,
		}).Warn("Sender address has an unexpected format")
	}

	if err := p.records.Upsert(ctx, record); err != nil {
		return nil, utils.Upstream("store record "+record.DBIndex, err)
	}

	p.logger.WithFields(logrus.Fields{
		"db_index":     record.DBIndex,
		"thread_count": record.ThreadCount,
	}).Info("Email record stored")
	return record, nil
}

// BuildEmailRecord flattens a Graph message into an EmailRecord. The message
// must carry a sender address, subject, body, uniqueBody and a toRecipients
// list; an empty toRecipients list leaves the To fields blank.
func BuildEmailRecord(msg *models.GraphMessage, n models.ChangeNotification) (*models.EmailRecord, error) {
	ci, err := utils.ParseConversationIndex(msg.ConversationIndex)
	if err != nil {
		return nil, fmt.Errorf("message %s: %w", msg.ID, err)
	}

	switch {
	case msg.Sender == nil || msg.Sender.EmailAddress.Address == "":
		return nil, utils.Incomplete("sender.emailAddress.address")
	case msg.Subject == nil:
		return nil, utils.Incomplete("subject")
	case msg.Body == nil:
		return nil, utils.Incomplete("body")
	case msg.UniqueBody == nil:
		return nil, utils.Incomplete("uniqueBody")
	case msg.ToRecipients == nil:
		return nil, utils.Incomplete("toRecipients")
	}

	guid := ci.GUIDHex()
	record := &models.EmailRecord{
		DBIndex:               msg.ID + "--" + guid,
		GUID:                  guid,
		MessageID:             msg.ID,
		TransactionID:         n.TransactionID,
		SubscriptionID:        n.SubscriptionID,
		ODataContext:          msg.ODataContext,
		ODataEtag:             msg.ODataEtag,
		SenderEmailAddress:    msg.Sender.EmailAddress.Address,
		SenderName:            msg.Sender.EmailAddress.Name,
		CcRecipients:          models.Addresses(msg.CcRecipients),
		BccRecipients:         models.Addresses(msg.BccRecipients),
		Subject:               *msg.Subject,
		Body:                  msg.Body.Content,
		BodyContentType:       msg.Body.ContentType,
		BodyPreview:           msg.BodyPreview,
		UniqueBodyContent:     msg.UniqueBody.Content,
		UniqueBodyContentType: msg.UniqueBody.ContentType,
		SentDateTime:          msg.SentDateTime,
		ReceivedDateTime:      msg.ReceivedDateTime,
		IsDraft:               msg.IsDraft,
		IsRead:                msg.IsRead,
		HasAttachments:        msg.HasAttachments,
		Importance:            msg.Importance,
		ConversationID:        msg.ConversationID,
		ConversationIndex:     msg.ConversationIndex,
		ThreadCount:           ci.ThreadCount(),
		RootSentAt:            ci.Root(),
		LastHopAt:             ci.Last(),
	}
	if to := *msg.ToRecipients; len(to) > 0 {
		record.ToEmailAddress = to[0].EmailAddress.Address
		record.ToEmailName = to[0].EmailAddress.Name
	}
	return record, nil
}

// Outcome is how a processed notification is reported at the handler boundary.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeRejected  Outcome = "rejected"
	OutcomeFailed    Outcome = "failed"
	OutcomeUpstream  Outcome = "upstream"
)

// OutcomeFor classifies the error returned by Process.
func OutcomeFor(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeProcessed
	case errors.Is(err, utils.ErrAuthMismatch):
		return OutcomeRejected
	case errors.Is(err, utils.ErrMalformedIndex), errors.Is(err, utils.ErrIncompleteMessage):
		return OutcomeFailed
	default:
		return OutcomeUpstream
	}
}

// StatusCode maps an outcome to the HTTP status a synchronous caller would see.
func (o Outcome) StatusCode() int {
	switch o {
	case OutcomeProcessed:
		return fiber.StatusOK
	case OutcomeRejected:
		return fiber.StatusForbidden
	case OutcomeFailed:
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusBadGateway
	}
}

// Terminal reports whether a replay of the same input could ever succeed.
func (o Outcome) Terminal() bool {
	return o == OutcomeRejected || o == OutcomeFailed
}
