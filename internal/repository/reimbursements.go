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

// Reimbursements holds members' reimbursement requests.
type Reimbursements struct {
	data backend.Data
	log  *logger.Logger
}

func NewReimbursements(data backend.Data, log *logger.Logger) *Reimbursements {
	if log == nil {
		log = logger.NewDefault("reimbursements")
	}
	return &Reimbursements{data: data, log: log}
}

var reimbursementJoins = []backend.Join{memberNameJoin("member_id")}

// List returns every request, most recently requested first.
func (r *Reimbursements) List(ctx context.Context) ([]domain.ReimbursementRequest, error) {
	return r.list(ctx, "list", nil)
}

func (r *Reimbursements) ListByMember(ctx context.Context, memberID string) ([]domain.ReimbursementRequest, error) {
	return r.list(ctx, "list_by_member", []backend.Filter{backend.Eq("member_id", memberID)})
}

func (r *Reimbursements) list(ctx context.Context, op string, filters []backend.Filter) ([]domain.ReimbursementRequest, error) {
	var rows []mapping.ReimbursementRow
	err := r.data.Select(ctx, backend.Query{
		Table:   TableReimbursements,
		Joins:   reimbursementJoins,
		Filters: filters,
		Order:   []backend.Order{{Column: "requested_date", Descending: true}},
	}, &rows)
	if err != nil {
		return nil, wrap(op, TableReimbursements, err)
	}

	out := make([]domain.ReimbursementRequest, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapping.ReimbursementToDomain(row))
	}
	return out, nil
}

func (r *Reimbursements) Get(ctx context.Context, id string) (*domain.ReimbursementRequest, error) {
	var row mapping.ReimbursementRow
	err := r.data.Select(ctx, backend.Query{Table: TableReimbursements, Joins: reimbursementJoins, Filters: byID(id)}, &row)
	if err != nil {
		return nil, wrap("get", TableReimbursements, err)
	}
	req := mapping.ReimbursementToDomain(row)
	return &req, nil
}

// Create files a new request. It always starts pending.
func (r *Reimbursements) Create(ctx context.Context, n domain.NewReimbursement) (*domain.ReimbursementRequest, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}

	var row mapping.ReimbursementRow
	err := r.data.Insert(ctx, TableReimbursements, mapping.ReimbursementInsert(n), backend.Returning{Joins: reimbursementJoins}, &row)
	if err != nil {
		return nil, wrap("create", TableReimbursements, err)
	}
	req := mapping.ReimbursementToDomain(row)
	r.log.WithField("reimbursement_id", req.ID).Info("reimbursement requested")
	return &req, nil
}

// UpdateStatus moves request id to next. Transitions outside
// pending -> approved|rejected and approved -> paid fail with a
// *domain.TransitionError. The write only applies if the status is still the
// one that was checked.
func (r *Reimbursements) UpdateStatus(ctx context.Context, id string, next domain.ReimbursementStatus) error {
	current, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := current.Status.CheckTransition(next); err != nil {
		return err
	}

	filters := []backend.Filter{
		backend.Eq("id", id),
		backend.Eq("status", current.Status),
	}
	var row mapping.ReimbursementRow
	err = r.data.Update(ctx, TableReimbursements, filters, map[string]any{"status": next}, backend.Returning{Columns: []string{"id", "status"}}, &row)
	if errors.Is(err, backend.ErrNoRows) {
		return &domain.RepositoryError{
			Op:    "update_status",
			Table: TableReimbursements,
			Err:   fmt.Errorf("%w: status is no longer %q", domain.ErrInvalidTransition, current.Status),
		}
	}
	if err != nil {
		return wrap("update_status", TableReimbursements, err)
	}

	r.log.WithField("reimbursement_id", id).
		WithField("from", current.Status).
		WithField("to", next).
		Info("reimbursement status updated")
	return nil
}
