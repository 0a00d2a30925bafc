package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	controller "graphmail/controllers"
	"graphmail/models"
	"graphmail/utils"
)

type Receiver interface {
	Receive(ctx context.Context, topic string) (*models.QueueMessage, error)
	DeadLetter(ctx context.Context, msg *models.QueueMessage, reason string) error
}

type Processor interface {
	Process(ctx context.Context, n models.ChangeNotification) (*models.EmailRecord, error)
}

// NotificationWorker drains the dispatch topic into the record builder.
// Nothing is retried here; failed messages are parked on the dead-letter list.
type NotificationWorker struct {
	queue     Receiver
	processor Processor
	topic     string
	logger    *logrus.Entry

	// ErrorBackoff is the pause after a failed receive.
	ErrorBackoff time.Duration
}

func NewNotificationWorker(queue Receiver, processor Processor, topic string, logger *logrus.Entry) *NotificationWorker {
	return &NotificationWorker{
		queue:        queue,
		processor:    processor,
		topic:        topic,
		logger:       logger,
		ErrorBackoff: 5 * time.Second,
	}
}

func (nw *NotificationWorker) Start(ctx context.Context) {
	nw.logger.WithField("topic", nw.topic).Info("Notification worker started")

	for {
		select {
		case <-ctx.Done():
			nw.logger.Info("Notification worker shutting down...")
			return
		default:
		}

		msg, err := nw.queue.Receive(ctx, nw.topic)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			utils.LogError("queue_receive_failed", err, logrus.Fields{"topic": nw.topic})
			select {
			case <-ctx.Done():
			case <-time.After(nw.ErrorBackoff):
			}
			continue
		}
		if msg == nil {
			continue
		}
		nw.HandleMessage(ctx, msg)
	}
}

// HandleMessage processes one queued notification and reports how it ended.
func (nw *NotificationWorker) HandleMessage(ctx context.Context, msg *models.QueueMessage) controller.Outcome {
	log := nw.logger.WithField("queue_id", msg.ID)

	var n models.ChangeNotification
	if err := json.Unmarshal(msg.Message, &n); err != nil {
		nw.deadLetter(ctx, msg, fmt.Sprintf("undecodable notification: %v", err))
		return controller.OutcomeFailed
	}
	if err := utils.ValidateStruct(n); err != nil {
		nw.deadLetter(ctx, msg, "invalid notification: "+err.Error())
		return controller.OutcomeFailed
	}

	record, err := nw.processor.Process(ctx, n)
	outcome := controller.OutcomeFor(err)
	fields := logrus.Fields{
		"outcome":         outcome,
		"subscription_id": n.SubscriptionID,
		"message_id":      n.MessageID(),
	}

	switch {
	case err == nil:
		log.WithFields(fields).WithField("db_index", record.DBIndex).Info("Notification processed")
	case outcome.Terminal():
		log.WithFields(fields).WithError(err).Warn("Notification dropped")
		nw.deadLetter(ctx, msg, err.Error())
	default:
		utils.LogError("notification_upstream_failure", err, fields)
		nw.deadLetter(ctx, msg, err.Error())
	}
	return outcome
}

func (nw *NotificationWorker) deadLetter(ctx context.Context, msg *models.QueueMessage, reason string) {
	if err := nw.queue.DeadLetter(ctx, msg, reason); err != nil {
		utils.LogError("dead_letter_failed", err, logrus.Fields{
			"queue_id": msg.ID,
			"reason":   reason,
		})
	}
}
