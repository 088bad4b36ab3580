package backend

import (
	"context"
	"errors"
	"strings"

	"github.com/sas-finance/service_layer/infra/supabase"
)

// PostgREST answers 406 with this code when a single-object request matched
// zero or several rows; the details say which.
const postgrestSingleCode = "PGRST116"

// Supabase adapts a supabase.Client to the Auth, Data and Blob interfaces.
type Supabase struct {
	client *supabase.Client
	creds  CredentialSource
}

// SupabaseOption configures the adapter.
type SupabaseOption func(*Supabase)

// WithCredentials makes every data and storage request carry the signed-in
// user's token so row-level security applies.
func WithCredentials(src CredentialSource) SupabaseOption {
	return func(s *Supabase) { s.creds = src }
}

// NewSupabase creates the adapter.
func NewSupabase(client *supabase.Client, opts ...SupabaseOption) *Supabase {
	s := &Supabase{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	_ Auth = (*Supabase)(nil)
	_ Data = (*Supabase)(nil)
	_ Blob = (*Supabase)(nil)
)

func (s *Supabase) token(ctx context.Context) string {
	if c, ok := credentialFrom(ctx); ok {
		return c
	}
	if s.creds == nil {
		return ""
	}
	return s.creds.Credential()
}

// =============================================================================
// Auth
// =============================================================================

// SignUp creates an account; metadata lands in user_metadata.
func (s *Supabase) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*AuthUser, error) {
	session, err := s.client.Auth().SignUp(ctx, supabase.SignUpRequest{
		Email:    email,
		Password: password,
		Data:     metadata,
	})
	if err != nil {
		return nil, translate(err)
	}
	if session.User == nil {
		return nil, &RemoteError{Status: 200, Message: "sign-up returned no user"}
	}
	user := toAuthUser(session.User)
	return &user, nil
}

// SignIn exchanges email and password for a session.
func (s *Supabase) SignIn(ctx context.Context, email, password string) (*AuthSession, error) {
	session, err := s.client.Auth().SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, translate(err)
	}
	return toAuthSession(session), nil
}

// RefreshSession exchanges refreshToken for a new session.
func (s *Supabase) RefreshSession(ctx context.Context, refreshToken string) (*AuthSession, error) {
	session, err := s.client.Auth().RefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, translate(err)
	}
	return toAuthSession(session), nil
}

// SignOut revokes the session behind credential.
func (s *Supabase) SignOut(ctx context.Context, credential string) error {
	return translate(s.client.Auth().SignOut(ctx, credential))
}

// GetUser resolves the user behind credential.
func (s *Supabase) GetUser(ctx context.Context, credential string) (*AuthUser, error) {
	user, err := s.client.Auth().GetUser(ctx, credential)
	if err != nil {
		return nil, translate(err)
	}
	out := toAuthUser(user)
	return &out, nil
}

func toAuthSession(session *supabase.Session) *AuthSession {
	out := &AuthSession{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		ExpiresAt:    session.ExpiresAt,
	}
	if session.User != nil {
		out.User = toAuthUser(session.User)
	}
	return out
}

func toAuthUser(u *supabase.User) AuthUser {
	return AuthUser{ID: u.ID, Email: u.Email, Metadata: u.UserMetadata}
}

// =============================================================================
// Data
// =============================================================================

// Select runs q against PostgREST.
func (s *Supabase) Select(ctx context.Context, q Query, dest any) error {
	qb := s.client.Database().From(q.Table).
		Select(selectClause(q.Columns, q.Joins)).
		WithToken(s.token(ctx))
	applyFilters(qb, q.Filters)
	for _, o := range q.Order {
		dir := supabase.OrderAsc
		if o.Descending {
			dir = supabase.OrderDesc
		}
		qb.Order(o.Column, dir)
	}
	if q.Limit > 0 {
		qb.Limit(q.Limit)
	}
	if wantsOne(dest) {
		qb.MaybeSingle()
	}
	return translate(qb.ExecuteInto(ctx, dest))
}

// Insert adds row to table.
func (s *Supabase) Insert(ctx context.Context, table string, row any, ret Returning, dest any) error {
	qb := s.client.Database().From(table).
		Insert(row).
		Select(selectClause(ret.Columns, ret.Joins)).
		WithToken(s.token(ctx))
	if wantsOne(dest) {
		qb.Single()
	}
	return translate(qb.ExecuteInto(ctx, dest))
}

// Update patches the rows matching filters.
func (s *Supabase) Update(ctx context.Context, table string, filters []Filter, patch any, ret Returning, dest any) error {
	qb := s.client.Database().From(table).
		Update(patch).
		Select(selectClause(ret.Columns, ret.Joins)).
		WithToken(s.token(ctx))
	applyFilters(qb, filters)
	if wantsOne(dest) {
		qb.Single()
	}
	return translate(qb.ExecuteInto(ctx, dest))
}

// Delete removes the rows matching filters.
func (s *Supabase) Delete(ctx context.Context, table string, filters []Filter) error {
	qb := s.client.Database().From(table).Delete().WithToken(s.token(ctx))
	applyFilters(qb, filters)
	_, err := qb.Execute(ctx)
	return translate(err)
}

func applyFilters(qb *supabase.QueryBuilder, filters []Filter) {
	for _, f := range filters {
		switch f.Op {
		case OpNeq:
			qb.Neq(f.Column, f.Value)
		default:
			qb.Eq(f.Column, f.Value)
		}
	}
}

// selectClause renders PostgREST's select syntax, e.g. "*,members(first_name,last_name)".
func selectClause(columns []string, joins []Join) string {
	parts := make([]string, 0, len(columns)+len(joins)+1)
	if len(columns) == 0 {
		parts = append(parts, "*")
	} else {
		parts = append(parts, columns...)
	}
	for _, j := range joins {
		cols := "*"
		if len(j.Columns) > 0 {
			cols = strings.Join(j.Columns, ",")
		}
		parts = append(parts, j.Table+"("+cols+")")
	}
	return strings.Join(parts, ",")
}

// =============================================================================
// Blob
// =============================================================================

// Put uploads data to bucket under name.
func (s *Supabase) Put(ctx context.Context, bucket, name string, data []byte, contentType string) error {
	_, err := s.client.Storage().UploadWithToken(ctx, bucket, name, data, &supabase.UploadOptions{ContentType: contentType}, s.token(ctx))
	return translate(err)
}

// PublicURL returns the public address of an object in a public bucket.
func (s *Supabase) PublicURL(bucket, name string) string {
	return s.client.Storage().GetPublicURL(bucket, name)
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, supabase.ErrNoRows) {
		return ErrNoRows
	}
	var apiErr *supabase.Error
	if errors.As(err, &apiErr) {
		if matchedNoRows(apiErr) {
			return ErrNoRows
		}
		return &RemoteError{Status: apiErr.StatusCode, Code: apiErr.Code, Message: apiErr.Message}
	}
	return err
}

// matchedNoRows tells "0 rows" apart from "multiple rows" in a PGRST116
// answer, e.g. details "The result contains 0 rows".
func matchedNoRows(apiErr *supabase.Error) bool {
	if apiErr.Code != postgrestSingleCode {
		return false
	}
	return strings.Contains(apiErr.Details, " 0 rows") || strings.Contains(apiErr.Message, " 0 rows")
}
