package controller

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"graphmail/credentials"
	"graphmail/graph"
	"graphmail/models"
)

const sampleIndex = "Adpu5r/IjUxaHp8rTD2Of2BxgpOktQASNFYhAAAEAJw="

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type fakeCreds struct {
	mu     sync.Mutex
	values map[string]string
	failOn map[string]error
	gets   []string
	puts   map[string]string
}

func newFakeCreds(values map[string]string) *fakeCreds {
	return &fakeCreds{values: values, failOn: map[string]error{}, puts: map[string]string{}}
}

func (f *fakeCreds) Get(_ context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets = append(f.gets, name)
	if err := f.failOn[name]; err != nil {
		return "", err
	}
	v, ok := f.values[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", credentials.ErrNotFound, name)
	}
	return v, nil
}

func (f *fakeCreds) Put(_ context.Context, name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn["put:"+name]; err != nil {
		return err
	}
	f.puts[name] = value
	f.values[name] = value
	return nil
}

type fakeFetcher struct {
	msg   *models.GraphMessage
	err   error
	calls int
	last  [3]string
}

func (f *fakeFetcher) GetMessage(_ context.Context, token, userID, messageID string) (*models.GraphMessage, error) {
	f.calls++
	f.last = [3]string{token, userID, messageID}
	if f.err != nil {
		return nil, f.err
	}
	cp := *f.msg
	return &cp, nil
}

type memStore struct {
	records map[string]models.EmailRecord
	upserts int
	err     error
}

func newMemStore() *memStore {
	return &memStore{records: map[string]models.EmailRecord{}}
}

func (s *memStore) Upsert(_ context.Context, record *models.EmailRecord) error {
	s.upserts++
	if s.err != nil {
		return s.err
	}
	s.records[record.DBIndex] = *record
	return nil
}

type fakeIssuer struct {
	token string
	err   error
	calls int
	got   graph.AppCredentials
}

func (f *fakeIssuer) IssueToken(_ context.Context, creds graph.AppCredentials) (string, error) {
	f.calls++
	f.got = creds
	return f.token, f.err
}

type fakeUpdater struct {
	err       error
	calls     int
	token     string
	id        string
	expiresAt time.Time
}

func (f *fakeUpdater) UpdateSubscription(_ context.Context, token, subscriptionID string, expiresAt time.Time) (*graph.Subscription, error) {
	f.calls++
	f.token, f.id, f.expiresAt = token, subscriptionID, expiresAt
	if f.err != nil {
		return nil, f.err
	}
	return &graph.Subscription{ID: subscriptionID, ExpirationDateTime: expiresAt.Format(graph.ExpirationLayout)}, nil
}

type fakePublisher struct {
	calls   int
	topic   string
	subject string
	payload []byte
	err     error
}

func (f *fakePublisher) Publish(_ context.Context, topic, subject string, payload []byte) (string, error) {
	f.calls++
	f.topic, f.subject = topic, subject
	f.payload = append([]byte(nil), payload...)
	if f.err != nil {
		return "", f.err
	}
	return "q-1", nil
}

func strPtr(s string) *string { return &s }

func sampleMessage() *models.GraphMessage {
	to := []models.Recipient{
		{EmailAddress: models.EmailAddress{Name: "Ops", Address: "ops@contoso.com"}},
		{EmailAddress: models.EmailAddress{Name: "Second", Address: "second@contoso.com"}},
	}
	return &models.GraphMessage{
		ODataContext:      "https://graph.microsoft.com/v1.0/$metadata#users('u1')/messages/$entity",
		ODataEtag:         `W/"CQAAABYAAAA"`,
		ID:                "AAMkAGI2",
		Sender:            &models.Recipient{EmailAddress: models.EmailAddress{Name: "Ada Lovelace", Address: "ada@contoso.com"}},
		ToRecipients:      &to,
		CcRecipients:      []models.Recipient{{EmailAddress: models.EmailAddress{Address: "cc@contoso.com"}}},
		Subject:           strPtr("Re: quarterly numbers"),
		Body:              &models.ItemBody{ContentType: "html", Content: "<p>see attached</p>"},
		UniqueBody:        &models.ItemBody{ContentType: "html", Content: "<p>see attached</p>"},
		BodyPreview:       "see attached",
		SentDateTime:      "2024-03-05T19:02:11Z",
		ReceivedDateTime:  "2024-03-05T19:02:12Z",
		IsRead:            true,
		HasAttachments:    true,
		Importance:        "normal",
		ConversationID:    "AAQkAGI2conv",
		ConversationIndex: sampleIndex,
	}
}

func processorCreds() *fakeCreds {
	return newFakeCreds(map[string]string{
		credentials.ClientState: "s3cr3t-state",
		credentials.AccessToken: "tok-123",
		credentials.UserID:      "u1",
	})
}

func sampleNotification() models.ChangeNotification {
	return models.ChangeNotification{
		SubscriptionID: "sub-42",
		ChangeType:     "created",
		ClientState:    "s3cr3t-state",
		TransactionID:  "tx-9",
		ResourceData:   &models.ResourceData{ID: "AAMkAGI2"},
	}
}
