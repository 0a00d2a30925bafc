package controller

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphmail/credentials"
)

func newIngressApp(creds *fakeCreds, pub *fakePublisher) *fiber.App {
	nc := NewNotificationController(creds, pub, quietLogger())
	app := fiber.New()
	app.Get("/api/notifications", nc.Ping)
	app.Post("/api/notifications", nc.Receive)
	app.All("/api/notifications", nc.MethodNotAllowed)
	return app
}

func ingressCreds() *fakeCreds {
	return newFakeCreds(map[string]string{credentials.DispatchTopic: "graphmail:notifications"})
}

func readBody(t *testing.T, r io.Reader) string {
	t.Helper()
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(b)
}

func TestIngressValidationHandshake(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"validationToken=hello%20world", "hello world"},
		{"validationToken=a+b%2Bc", "a b+c"},
		{"validationToken=", ""},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			pub := &fakePublisher{}
			app := newIngressApp(ingressCreds(), pub)

			resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/api/notifications?"+tt.query, nil))
			require.NoError(t, err)

			assert.Equal(t, fiber.StatusOK, resp.StatusCode)
			assert.True(t, strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), "text/plain"))
			assert.Equal(t, tt.want, readBody(t, resp.Body))
			assert.Equal(t, 0, pub.calls)
		})
	}
}

func TestIngressForwardsFirstNotification(t *testing.T) {
	first := `{"subscriptionId":"sub-42","clientState":"s3cr3t-state","changeType":"created","resourceData":{"id":"AAMkAGI2"}}`
	second := `{"subscriptionId":"sub-42","resourceData":{"id":"other"}}`
	body := `{"value":[` + first + `,` + second + `]}`

	pub := &fakePublisher{}
	app := newIngressApp(ingressCreds(), pub)

	req := httptest.NewRequest(fiber.MethodPost, "/api/notifications", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	assert.Empty(t, readBody(t, resp.Body))
	assert.Equal(t, 1, pub.calls)
	assert.Equal(t, "graphmail:notifications", pub.topic)
	assert.Equal(t, NotificationSubject, pub.subject)
	assert.Equal(t, first, string(pub.payload))
}

func TestIngressRejectsBadBodies(t *testing.T) {
	for _, body := range []string{"", "{", `{"value":[]}`, `{"other":1}`} {
		pub := &fakePublisher{}
		app := newIngressApp(ingressCreds(), pub)

		req := httptest.NewRequest(fiber.MethodPost, "/api/notifications", strings.NewReader(body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, "body %q", body)
		assert.Contains(t, readBody(t, resp.Body), `"error"`)
		assert.Equal(t, 0, pub.calls)
	}
}

func TestIngressUpstreamFailures(t *testing.T) {
	body := `{"value":[{"subscriptionId":"sub-42"}]}`

	t.Run("topic lookup", func(t *testing.T) {
		creds := ingressCreds()
		creds.failOn[credentials.DispatchTopic] = errors.New("denied")
		pub := &fakePublisher{}
		app := newIngressApp(creds, pub)

		req := httptest.NewRequest(fiber.MethodPost, "/api/notifications", strings.NewReader(body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
		assert.Equal(t, 0, pub.calls)
	})

	t.Run("publish", func(t *testing.T) {
		pub := &fakePublisher{err: errors.New("connection refused")}
		app := newIngressApp(ingressCreds(), pub)

		req := httptest.NewRequest(fiber.MethodPost, "/api/notifications", strings.NewReader(body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
	})
}

func TestIngressPing(t *testing.T) {
	app := newIngressApp(ingressCreds(), &fakePublisher{})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/api/notifications", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, readBody(t, resp.Body))
}

func TestIngressOtherVerbs(t *testing.T) {
	app := newIngressApp(ingressCreds(), &fakePublisher{})

	for _, method := range []string{fiber.MethodPut, fiber.MethodDelete, fiber.MethodPatch} {
		resp, err := app.Test(httptest.NewRequest(method, "/api/notifications", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusMethodNotAllowed, resp.StatusCode, method)
		assert.Equal(t, "GET, POST", resp.Header.Get(fiber.HeaderAllow))
	}
}
