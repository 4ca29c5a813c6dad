package mail

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tech-e/apiserver/internal/mq"
	"go.uber.org/zap"
)

// Worker consumes queued messages and delivers them through a Sender.
type Worker struct {
	sender   Sender
	logger   *zap.Logger
	onResult ResultFunc
}

func NewWorker(sender Sender, logger *zap.Logger, onResult ResultFunc) *Worker {
	return &Worker{sender: sender, logger: logger, onResult: onResult}
}

// Run blocks until ctx is cancelled or the subscription fails.
func (w *Worker) Run(ctx context.Context, backend mq.Backend, queue string) error {
	w.logger.Info("Mailer worker started", zap.String("queue", queue))
	return backend.Subscribe(ctx, queue, w.Handle)
}

// Handle delivers one queued message. Undecodable or invalid payloads are
// dropped; send failures are returned so the broker redelivers.
func (w *Worker) Handle(ctx context.Context, raw mq.Message) error {
	var msg Message
	if err := json.Unmarshal(raw.Data, &msg); err != nil {
		w.logger.Warn("Dropping undecodable mail message", zap.String("id", raw.ID), zap.Error(err))
		return nil
	}
	if err := msg.Validate(); err != nil {
		w.logger.Warn("Dropping invalid mail message", zap.String("id", raw.ID), zap.Error(err))
		return nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	start := time.Now()
	err := w.sender.Send(sendCtx, msg)
	if w.onResult != nil {
		w.onResult(err)
	}
	if err != nil {
		w.logger.Error("Failed to send email", zap.String("id", raw.ID), zap.String("to", msg.To), zap.Error(err))
		return err
	}
	w.logger.Info("Email sent", zap.String("id", raw.ID), zap.String("to", msg.To), zap.Duration("latency", time.Since(start)))
	return nil
}
