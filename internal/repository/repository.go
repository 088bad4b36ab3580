// Package repository exposes one repository per persisted entity. Each
// composes the row mappers with the backend's query boundary and wraps
// failures in *domain.RepositoryError. Repositories never retry.
package repository

import (
	"errors"

	"github.com/sas-finance/service_layer/internal/backend"
	"github.com/sas-finance/service_layer/internal/domain"
)

// Remote collection names.
const (
	TableMembers        = "members"
	TableTransactions   = "transactions"
	TableReimbursements = "reimbursement_requests"
	TableMessages       = "community_messages"
	TableSettings       = "app_settings"
	TableNotifications  = "notifications"
)

// memberNameJoin embeds the owning member's name through foreignKey.
func memberNameJoin(foreignKey string) backend.Join {
	return backend.Join{
		Table:      TableMembers,
		ForeignKey: foreignKey,
		Columns:    []string{"first_name", "last_name"},
	}
}

func byID(id string) []backend.Filter {
	return []backend.Filter{backend.Eq("id", id)}
}

// wrap converts a backend failure into a RepositoryError. A single-row miss
// becomes domain.ErrNotFound.
func wrap(op, table string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, backend.ErrNoRows) {
		err = domain.ErrNotFound
	}
	return &domain.RepositoryError{Op: op, Table: table, Err: err}
}
