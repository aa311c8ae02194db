package push

import (
	"auxchat/internal/storage"
	"context"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"sync"
	"time"
)

// DefaultTimeout bounds a single dispatch including lookups
const DefaultTimeout = 3 * time.Second

// Outcome of a single delivery attempt
type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

var dispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "auxchat",
	Subsystem: "push",
	Name:      "dispatch_total",
	Help:      "Push notification dispatches by outcome.",
}, []string{"outcome"})

// UserDirectory resolves receiver tokens and sender names
type UserDirectory interface {
	UserByID(ctx context.Context, id int64) (storage.User, error)
}

// Dispatcher sends push notifications about appended messages.
// Dispatch never reports failures to the caller and never retries.
type Dispatcher struct {
	logger  *zap.SugaredLogger
	users   UserDirectory
	gateway Gateway
	timeout time.Duration
	tracer  trace.Tracer
	wg      sync.WaitGroup
}

func NewDispatcher(logger *zap.SugaredLogger, users UserDirectory, gateway Gateway, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		logger:  logger,
		users:   users,
		gateway: gateway,
		timeout: timeout,
		tracer:  otel.Tracer("auxchat/internal/push"),
	}
}

// Dispatch delivers notification about m in background, detached from the request lifetime
func (d *Dispatcher) Dispatch(m storage.Message) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		outcome, err := d.Deliver(ctx, m)
		if err != nil {
			d.logger.Warnw("Push notification failed",
				"message_id", m.ID,
				"receiver_id", m.ReceiverID,
				"error", err,
			)
			return
		}
		d.logger.Debugw("Push notification processed", "message_id", m.ID, "outcome", outcome)
	}()
}

// Deliver synchronously sends notification about m to its receiver.
// Receiver without push token is skipped without error.
func (d *Dispatcher) Deliver(ctx context.Context, m storage.Message) (outcome Outcome, err error) {
	ctx, span := d.tracer.Start(ctx, "push.deliver", trace.WithAttributes(
		attribute.Int64("message.id", m.ID),
		attribute.Int64("receiver.id", m.ReceiverID),
	))
	defer func() {
		span.SetAttributes(attribute.String("push.outcome", string(outcome)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		dispatchTotal.WithLabelValues(string(outcome)).Inc()
	}()

	receiver, err := d.users.UserByID(ctx, m.ReceiverID)
	if err != nil {
		return OutcomeFailed, err
	}
	if receiver.PushToken == nil || *receiver.PushToken == "" {
		return OutcomeSkipped, nil
	}

	senderName := m.Sender.Username
	if senderName == "" {
		sender, err := d.users.UserByID(ctx, m.SenderID)
		if err != nil {
			return OutcomeFailed, err
		}
		senderName = sender.Username
	}

	if err := d.gateway.Send(ctx, Build(*receiver.PushToken, senderName, m)); err != nil {
		return OutcomeFailed, err
	}

	return OutcomeSent, nil
}

// Wait blocks until all background dispatches finish
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
