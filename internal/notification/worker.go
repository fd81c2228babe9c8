package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"occupancy-status-backend/internal/model"
	"occupancy-status-backend/internal/store"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Event is a single notification job: the room changed state at At.
type Event struct {
	Occupied bool      `json:"occupied"`
	At       time.Time `json:"at"`
}

// message is the JSON payload delivered to browsers.
type message struct {
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	Occupied bool      `json:"occupied"`
	At       time.Time `json:"at"`
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan Event
	store   store.Store
	webpush *webpush.Options
	sender  NotificationSender
	logger  *zap.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, s store.Store, webpushOptions *webpush.Options, logger *zap.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Event, size),
		store:   s,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		logger:  logger,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.logger.Debug("notification worker started", zap.Int("worker", id))
	for {
		select {
		case ev := <-wp.jobs:
			wp.notifyAll(ctx, ev)
		case <-ctx.Done():
			wp.logger.Debug("notification worker shutting down", zap.Int("worker", id))
			return
		}
	}
}

// Dispatch queues a job, giving up if ctx ends while the queue is full.
func (wp *WorkerPool) Dispatch(ctx context.Context, ev Event) error {
	select {
	case wp.jobs <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Event {
	return wp.jobs
}

// notifyAll sends ev to every registered subscription.
func (wp *WorkerPool) notifyAll(ctx context.Context, ev Event) {
	subs, err := wp.store.ListSubscriptions(ctx)
	if err != nil {
		wp.logger.Error("failed to list subscriptions", zap.Error(err))
		return
	}
	if len(subs) == 0 {
		return
	}

	payload, err := json.Marshal(newMessage(ev))
	if err != nil {
		wp.logger.Error("failed to marshal notification", zap.Error(err))
		return
	}

	wp.logger.Info("sending notifications",
		zap.Int("subscriptions", len(subs)),
		zap.Bool("occupied", ev.Occupied))
	for _, sub := range subs {
		wp.sendNotification(ctx, sub, payload)
	}
}

func newMessage(ev Event) message {
	m := message{Title: "Room status", Occupied: ev.Occupied, At: ev.At}
	if ev.Occupied {
		m.Body = "The room is now occupied."
	} else {
		m.Body = "The room is free."
	}
	return m
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.logger.Warn("failed to send notification", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	// The push service reports unsubscribed browsers with 404 or 410.
	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		wp.logger.Info("subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			wp.logger.Warn("failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
	}
}
