package mail

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tech-e/apiserver/internal/mq"
	"go.uber.org/zap"
)

const (
	publishTimeout = 5 * time.Second
	sendTimeout    = 30 * time.Second
)

// ErrNotifierClosed is returned by AsyncNotifier.Notify once Wait has begun.
var ErrNotifierClosed = errors.New("mail: notifier is shutting down")

// Notifier hands a message off for delivery. Implementations must not block
// on the SMTP conversation.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// ResultFunc observes the outcome of a delivery attempt.
type ResultFunc func(err error)

// QueueNotifier publishes messages for the mailer worker.
type QueueNotifier struct {
	backend  mq.Backend
	queue    string
	onResult ResultFunc
}

func NewQueueNotifier(backend mq.Backend, queue string, onResult ResultFunc) *QueueNotifier {
	return &QueueNotifier{backend: backend, queue: queue, onResult: onResult}
}

func (n *QueueNotifier) Notify(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	_, err := mq.PublishJSON(ctx, n.backend, n.queue, msg)
	if n.onResult != nil {
		n.onResult(err)
	}
	if err != nil {
		return fmt.Errorf("enqueue mail: %w", err)
	}
	return nil
}

// AsyncNotifier sends through SMTP on a background goroutine. Failures are
// logged and reported to the result func, never to the caller.
type AsyncNotifier struct {
	sender   Sender
	logger   *zap.Logger
	onResult ResultFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewAsyncNotifier(sender Sender, logger *zap.Logger, onResult ResultFunc) *AsyncNotifier {
	return &AsyncNotifier{sender: sender, logger: logger, onResult: onResult}
}

func (n *AsyncNotifier) Notify(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	ctx = context.WithoutCancel(ctx)

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return ErrNotifierClosed
	}
	n.wg.Add(1)
	n.mu.Unlock()

	go func() {
		defer n.wg.Done()
		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		defer cancel()

		err := n.sender.Send(sendCtx, msg)
		if err != nil {
			n.logger.Error("Failed to send email", zap.String("to", msg.To), zap.Error(err))
		} else {
			n.logger.Info("Email sent", zap.String("to", msg.To))
		}
		if n.onResult != nil {
			n.onResult(err)
		}
	}()
	return nil
}

// Wait stops accepting messages and blocks until in-flight sends finish.
func (n *AsyncNotifier) Wait() {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
	n.wg.Wait()
}

// Discard drops every message. Used when mail is not configured.
type Discard struct{}

func (Discard) Notify(context.Context, Message) error { return nil }
