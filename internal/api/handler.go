package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"occupancy-status-backend/internal/occupancy"
	"occupancy-status-backend/internal/store"
)

// Tracker is the occupancy state the handlers read and write.
type Tracker interface {
	Report(detected bool) occupancy.Record
	Status() occupancy.Status
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	tracker Tracker
	store   store.Store
	webpush *webpush.Options
}

// NewHandler creates a new API handler. s and webpushOptions may be nil when
// push notifications are not configured.
func NewHandler(t Tracker, s store.Store, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		tracker: t,
		store:   s,
		webpush: webpushOptions,
	}
}
