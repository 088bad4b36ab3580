package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/sas-finance/service_layer/internal/backend"
	"github.com/sas-finance/service_layer/internal/domain"
	"github.com/sas-finance/service_layer/internal/mapping"
	"github.com/sas-finance/service_layer/pkg/logger"
)

// Transactions is the association ledger.
type Transactions struct {
	data backend.Data
	log  *logger.Logger
}

func NewTransactions(data backend.Data, log *logger.Logger) *Transactions {
	if log == nil {
		log = logger.NewDefault("transactions")
	}
	return &Transactions{data: data, log: log}
}

var transactionJoins = []backend.Join{memberNameJoin("member_id")}

// List returns every transaction, newest first.
func (r *Transactions) List(ctx context.Context) ([]domain.Transaction, error) {
	return r.list(ctx, "list", nil)
}

// ListByMember returns one member's transactions, newest first.
func (r *Transactions) ListByMember(ctx context.Context, memberID string) ([]domain.Transaction, error) {
	return r.list(ctx, "list_by_member", []backend.Filter{backend.Eq("member_id", memberID)})
}

func (r *Transactions) list(ctx context.Context, op string, filters []backend.Filter) ([]domain.Transaction, error) {
	var rows []mapping.TransactionRow
	err := r.data.Select(ctx, backend.Query{
		Table:   TableTransactions,
		Joins:   transactionJoins,
		Filters: filters,
		Order:   []backend.Order{{Column: "date", Descending: true}},
	}, &rows)
	if err != nil {
		return nil, wrap(op, TableTransactions, err)
	}

	out := make([]domain.Transaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapping.TransactionToDomain(row))
	}
	return out, nil
}

func (r *Transactions) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	var row mapping.TransactionRow
	err := r.data.Select(ctx, backend.Query{Table: TableTransactions, Joins: transactionJoins, Filters: byID(id)}, &row)
	if err != nil {
		return nil, wrap("get", TableTransactions, err)
	}
	tx := mapping.TransactionToDomain(row)
	return &tx, nil
}

// Create records a transaction. The identifier and owner name come from the backend.
func (r *Transactions) Create(ctx context.Context, n domain.NewTransaction) (*domain.Transaction, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}

	var row mapping.TransactionRow
	err := r.data.Insert(ctx, TableTransactions, mapping.TransactionInsert(n), backend.Returning{Joins: transactionJoins}, &row)
	if err != nil {
		return nil, wrap("create", TableTransactions, err)
	}
	tx := mapping.TransactionToDomain(row)
	r.log.WithField("transaction_id", tx.ID).WithField("status", tx.Status).Info("transaction created")
	return &tx, nil
}

func (r *Transactions) Delete(ctx context.Context, id string) error {
	if err := r.data.Delete(ctx, TableTransactions, byID(id)); err != nil {
		return wrap("delete", TableTransactions, err)
	}
	r.log.WithField("transaction_id", id).Info("transaction deleted")
	return nil
}

// UpdateStatus sets the approval state of transaction id.
func (r *Transactions) UpdateStatus(ctx context.Context, id string, status domain.TransactionStatus) error {
	if !status.Valid() {
		return &domain.ValidationError{Field: "status", Reason: "unknown transaction status"}
	}

	var row mapping.TransactionRow
	err := r.data.Update(ctx, TableTransactions, byID(id), map[string]any{"status": status}, backend.Returning{Columns: []string{"id"}}, &row)
	if err != nil {
		return wrap("update_status", TableTransactions, err)
	}
	r.log.WithField("transaction_id", id).WithField("status", status).Info("transaction status updated")
	return nil
}

// Review settles pending transaction id as approved or rejected. The write
// only applies while the transaction is still pending.
func (r *Transactions) Review(ctx context.Context, id string, status domain.TransactionStatus) error {
	if status != domain.TransactionApproved && status != domain.TransactionRejected {
		return &domain.ValidationError{Field: "status", Reason: "must be approved or rejected"}
	}

	current, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if current.Status != domain.TransactionPending {
		return &domain.TransitionError{From: string(current.Status), To: string(status)}
	}

	filters := []backend.Filter{
		backend.Eq("id", id),
		backend.Eq("status", domain.TransactionPending),
	}
	var row mapping.TransactionRow
	err = r.data.Update(ctx, TableTransactions, filters, map[string]any{"status": status}, backend.Returning{Columns: []string{"id", "status"}}, &row)
	if errors.Is(err, backend.ErrNoRows) {
		return &domain.RepositoryError{
			Op:    "review",
			Table: TableTransactions,
			Err:   fmt.Errorf("%w: status is no longer %q", domain.ErrInvalidTransition, domain.TransactionPending),
		}
	}
	if err != nil {
		return wrap("review", TableTransactions, err)
	}

	r.log.WithField("transaction_id", id).WithField("status", status).Info("transaction reviewed")
	return nil
}
