package repository

import (
	"context"
	"time"

	"github.com/sas-finance/service_layer/internal/backend"
	"github.com/sas-finance/service_layer/internal/domain"
	"github.com/sas-finance/service_layer/internal/mapping"
	"github.com/sas-finance/service_layer/pkg/logger"
)

// NotificationsResult is the outcome of a feed read. A degraded read has no
// items and carries the cause.
type NotificationsResult struct {
	Items    []domain.Notification
	Degraded bool
	Cause    error
}

// DeliveryResult is the outcome of a best-effort notification write.
type DeliveryResult struct {
	Delivered bool
	Cause     error
}

// Notifications is the optional activity feed. No operation on it fails the
// caller: the backing table may not exist.
type Notifications struct {
	data backend.Data
	log  *logger.Logger
	now  func() time.Time
}

func NewNotifications(data backend.Data, log *logger.Logger) *Notifications {
	if log == nil {
		log = logger.NewDefault("notifications")
	}
	return &Notifications{data: data, log: log, now: time.Now}
}

// Lookup reads the feed, newest first.
func (r *Notifications) Lookup(ctx context.Context) NotificationsResult {
	var rows []mapping.NotificationRow
	err := r.data.Select(ctx, backend.Query{
		Table: TableNotifications,
		Order: []backend.Order{{Column: "date", Descending: true}},
	}, &rows)
	if err != nil {
		r.log.WithError(err).Warn("notifications unavailable")
		return NotificationsResult{Items: []domain.Notification{}, Degraded: true, Cause: err}
	}

	items := make([]domain.Notification, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapping.NotificationToDomain(row))
	}
	return NotificationsResult{Items: items}
}

// List returns the feed, or an empty slice when it cannot be read.
func (r *Notifications) List(ctx context.Context) []domain.Notification {
	return r.Lookup(ctx).Items
}

// Create posts an unread notification stamped now.
func (r *Notifications) Create(ctx context.Context, n domain.NewNotification) DeliveryResult {
	err := r.data.Insert(ctx, TableNotifications, mapping.NotificationInsert(n, r.now()), backend.Returning{}, nil)
	if err != nil {
		r.log.WithError(err).WithField("title", n.Title).Warn("notification not delivered")
		return DeliveryResult{Cause: err}
	}
	return DeliveryResult{Delivered: true}
}

func (r *Notifications) MarkRead(ctx context.Context, id string) DeliveryResult {
	err := r.data.Update(ctx, TableNotifications, byID(id), map[string]any{"read": true}, backend.Returning{}, nil)
	if err != nil {
		r.log.WithError(err).WithField("notification_id", id).Warn("notification not marked read")
		return DeliveryResult{Cause: err}
	}
	return DeliveryResult{Delivered: true}
}
