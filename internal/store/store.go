package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"occupancy-status-backend/internal/model"
)

// ErrNotFound is returned when a subscription does not exist or has expired.
var ErrNotFound = errors.New("subscription not found")

// ErrInvalidSubscription is returned for subscriptions missing an endpoint or keys.
var ErrInvalidSubscription = errors.New("endpoint, p256dh and auth are required")

// Store defines the interface for push subscription bookkeeping. Subscriptions
// live in memory only and are forgotten on restart.
type Store interface {
	PutSubscription(ctx context.Context, sub model.PushSubscription) error
	GetSubscription(ctx context.Context, endpoint string) (model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	ListSubscriptions(ctx context.Context) ([]model.PushSubscription, error)
}

// cacheStore implements the Store interface on top of go-cache.
type cacheStore struct {
	c   *cache.Cache
	ttl time.Duration
}

// NewCacheStore creates an in-memory store whose entries expire ttl after
// their last write.
func NewCacheStore(ttl time.Duration) Store {
	return &cacheStore{
		c:   cache.New(ttl, ttl/2+time.Minute),
		ttl: ttl,
	}
}

// PutSubscription creates or replaces a subscription and refreshes its expiry.
func (s *cacheStore) PutSubscription(_ context.Context, sub model.PushSubscription) error {
	sub.Endpoint = strings.TrimSpace(sub.Endpoint)
	if sub.Endpoint == "" || sub.P256DH == "" || sub.Auth == "" {
		return ErrInvalidSubscription
	}

	if old, ok := s.c.Get(sub.Endpoint); ok {
		sub.CreatedAt = old.(model.PushSubscription).CreatedAt
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	s.c.Set(sub.Endpoint, sub, s.ttl)
	return nil
}

// GetSubscription returns the subscription registered for endpoint.
func (s *cacheStore) GetSubscription(_ context.Context, endpoint string) (model.PushSubscription, error) {
	v, ok := s.c.Get(endpoint)
	if !ok {
		return model.PushSubscription{}, ErrNotFound
	}
	return v.(model.PushSubscription), nil
}

// DeleteSubscription removes a subscription. Deleting an unknown endpoint is not an error.
func (s *cacheStore) DeleteSubscription(_ context.Context, endpoint string) error {
	s.c.Delete(endpoint)
	return nil
}

// ListSubscriptions returns all unexpired subscriptions ordered by creation time.
func (s *cacheStore) ListSubscriptions(_ context.Context) ([]model.PushSubscription, error) {
	items := s.c.Items()
	subs := make([]model.PushSubscription, 0, len(items))
	for _, item := range items {
		subs = append(subs, item.Object.(model.PushSubscription))
	}
	sort.Slice(subs, func(i, j int) bool {
		if subs[i].CreatedAt.Equal(subs[j].CreatedAt) {
			return subs[i].Endpoint < subs[j].Endpoint
		}
		return subs[i].CreatedAt.Before(subs[j].CreatedAt)
	})
	return subs, nil
}
