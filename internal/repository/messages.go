package repository

import (
	"context"

	"github.com/sas-finance/service_layer/internal/backend"
	"github.com/sas-finance/service_layer/internal/domain"
	"github.com/sas-finance/service_layer/internal/mapping"
	"github.com/sas-finance/service_layer/pkg/logger"
)

// Messages is the community board. Posts are never edited or deleted.
type Messages struct {
	data backend.Data
	log  *logger.Logger
}

func NewMessages(data backend.Data, log *logger.Logger) *Messages {
	if log == nil {
		log = logger.NewDefault("messages")
	}
	return &Messages{data: data, log: log}
}

var messageJoins = []backend.Join{memberNameJoin("author_id")}

// List returns the thread in chronological order.
func (r *Messages) List(ctx context.Context) ([]domain.CommunityMessage, error) {
	var rows []mapping.MessageRow
	err := r.data.Select(ctx, backend.Query{
		Table: TableMessages,
		Joins: messageJoins,
		Order: []backend.Order{{Column: "created_at"}},
	}, &rows)
	if err != nil {
		return nil, wrap("list", TableMessages, err)
	}

	out := make([]domain.CommunityMessage, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapping.MessageToDomain(row))
	}
	return out, nil
}

func (r *Messages) Create(ctx context.Context, n domain.NewMessage) (*domain.CommunityMessage, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}

	var row mapping.MessageRow
	err := r.data.Insert(ctx, TableMessages, mapping.MessageInsert(n), backend.Returning{Joins: messageJoins}, &row)
	if err != nil {
		return nil, wrap("create", TableMessages, err)
	}
	msg := mapping.MessageToDomain(row)
	r.log.WithField("message_id", msg.ID).Debug("message posted")
	return &msg, nil
}
