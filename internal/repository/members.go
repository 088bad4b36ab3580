package repository

import (
	"context"

	"github.com/sas-finance/service_layer/internal/backend"
	"github.com/sas-finance/service_layer/internal/domain"
	"github.com/sas-finance/service_layer/internal/mapping"
	"github.com/sas-finance/service_layer/internal/session"
	"github.com/sas-finance/service_layer/pkg/logger"
)

// Members is the member roster.
type Members struct {
	data  backend.Data
	cache *session.Cache
	log   *logger.Logger
}

// NewMembers creates the roster repository. When cache is set, updates to the
// signed-in member are written through to it.
func NewMembers(data backend.Data, cache *session.Cache, log *logger.Logger) *Members {
	if log == nil {
		log = logger.NewDefault("members")
	}
	return &Members{data: data, cache: cache, log: log}
}

// List returns every member ordered by last name.
func (r *Members) List(ctx context.Context) ([]domain.Member, error) {
	var rows []mapping.MemberRow
	err := r.data.Select(ctx, backend.Query{
		Table: TableMembers,
		Order: []backend.Order{{Column: "last_name"}},
	}, &rows)
	if err != nil {
		return nil, wrap("list", TableMembers, err)
	}

	out := make([]domain.Member, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapping.MemberToDomain(row))
	}
	return out, nil
}

func (r *Members) Get(ctx context.Context, id string) (*domain.Member, error) {
	var row mapping.MemberRow
	err := r.data.Select(ctx, backend.Query{Table: TableMembers, Filters: byID(id)}, &row)
	if err != nil {
		return nil, wrap("get", TableMembers, err)
	}
	m := mapping.MemberToDomain(row)
	return &m, nil
}

// Create inserts a member directly, outside the sign-up flow.
func (r *Members) Create(ctx context.Context, m domain.Member) (*domain.Member, error) {
	if m.Email == "" {
		return nil, &domain.ValidationError{Field: "email", Reason: "required"}
	}
	if m.Role != "" && !m.Role.Valid() {
		return nil, &domain.ValidationError{Field: "role", Reason: "unknown role"}
	}

	var row mapping.MemberRow
	if err := r.data.Insert(ctx, TableMembers, mapping.MemberInsert(m), backend.Returning{}, &row); err != nil {
		return nil, wrap("create", TableMembers, err)
	}
	created := mapping.MemberToDomain(row)
	r.log.WithField("member_id", created.ID).Info("member created")
	return &created, nil
}

// Update applies patch to member id. If id is the signed-in member, the
// session cache is refreshed with the result.
func (r *Members) Update(ctx context.Context, id string, patch domain.MemberPatch) (*domain.Member, error) {
	if patch.Role != "" && !patch.Role.Valid() {
		return nil, &domain.ValidationError{Field: "role", Reason: "unknown role"}
	}
	if patch.Empty() {
		return r.Get(ctx, id)
	}

	var row mapping.MemberRow
	if err := r.data.Update(ctx, TableMembers, byID(id), mapping.MemberPatch(patch), backend.Returning{}, &row); err != nil {
		return nil, wrap("update", TableMembers, err)
	}
	updated := mapping.MemberToDomain(row)

	if r.cache != nil {
		if current, ok := r.cache.Read(); ok && current.ID == id {
			if err := r.cache.UpdateIdentity(ctx, updated); err != nil {
				r.log.WithError(err).WithField("member_id", id).Warn("session cache refresh failed")
			}
		}
	}

	r.log.WithField("member_id", id).Debug("member updated")
	return &updated, nil
}
