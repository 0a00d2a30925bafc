package controller

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"graphmail/credentials"
	"graphmail/models"
	"graphmail/utils"
)

// NotificationSubject labels every forwarded notification on the dispatch topic.
const NotificationSubject = "Email"

type TopicPublisher interface {
	Publish(ctx context.Context, topic, subject string, payload []byte) (string, error)
}

// NotificationController is the webhook Graph calls for subscription validation
// and change notifications.
type NotificationController struct {
	creds     credentials.Provider
	publisher TopicPublisher
	logger    *logrus.Entry
}

func NewNotificationController(creds credentials.Provider, publisher TopicPublisher, logger *logrus.Entry) *NotificationController {
	return &NotificationController{
		creds:     creds,
		publisher: publisher,
		logger:    logger,
	}
}

// Ping answers platform health probes.
func (nc *NotificationController) Ping(c *fiber.Ctx) error {
	c.Status(fiber.StatusOK)
	return nil
}

// Receive handles both the validation handshake and notification delivery.
func (nc *NotificationController) Receive(c *fiber.Ctx) error {
	if c.Context().QueryArgs().Has("validationToken") {
		return nc.echoValidationToken(c)
	}

	var envelope models.NotificationEnvelope
	if err := c.BodyParser(&envelope); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(envelope); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Invalid notification",
			"details": err.Error(),
		})
	}

	ctx := c.UserContext()
	topic, err := nc.creds.Get(ctx, credentials.DispatchTopic)
	if err != nil {
		utils.LogError("dispatch_topic_lookup_failed", err, logrus.Fields{"ip": c.IP()})
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to resolve dispatch topic",
		})
	}

	id, err := nc.publisher.Publish(ctx, topic, NotificationSubject, envelope.Value[0])
	if err != nil {
		utils.LogError("notification_publish_failed", err, logrus.Fields{"topic": topic})
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to forward notification",
		})
	}

	nc.logger.WithFields(logrus.Fields{
		"queue_id": id,
		"topic":    topic,
		"batch":    len(envelope.Value),
	}).Debug("Notification forwarded")

	c.Status(fiber.StatusAccepted)
	return nil
}

func (nc *NotificationController) echoValidationToken(c *fiber.Ctx) error {
	// fasthttp has already percent-decoded the query value, '+' included
	token := string(c.Context().QueryArgs().Peek("validationToken"))
	nc.logger.Info("Subscription validation handshake")
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlain)
	return c.Status(fiber.StatusOK).SendString(token)
}

// MethodNotAllowed rejects every verb other than GET and POST.
func (nc *NotificationController) MethodNotAllowed(c *fiber.Ctx) error {
	c.Set(fiber.HeaderAllow, "GET, POST")
	return c.Status(fiber.StatusMethodNotAllowed).JSON(fiber.Map{
		"error": "Method not allowed",
	})
}
