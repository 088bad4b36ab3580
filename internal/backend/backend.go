// Package backend defines the remote boundary the finance layer depends on:
// an auth service, a row store and a blob store. Supabase implements all three
// in production; Memory implements them in-process.
package backend

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

// ErrNoRows is returned when a single-row read or write matched nothing.
var ErrNoRows = errors.New("no rows in result set")

// RemoteError is a request the backend answered with an error status.
type RemoteError struct {
	Status  int
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s, status %d)", e.Message, e.Code, e.Status)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

// =============================================================================
// Auth
// =============================================================================

// AuthUser is the auth backend's view of a principal.
type AuthUser struct {
	ID       string
	Email    string
	Metadata map[string]any
}

// MetadataString returns Metadata[key] when it is a string.
func (u AuthUser) MetadataString(key string) string {
	s, _ := u.Metadata[key].(string)
	return s
}

// AuthSession is the result of a successful sign-in.
type AuthSession struct {
	User         AuthUser
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
}

// Auth creates accounts and sessions.
type Auth interface {
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*AuthUser, error)
	SignIn(ctx context.Context, email, password string) (*AuthSession, error)
	SignOut(ctx context.Context, credential string) error
	GetUser(ctx context.Context, credential string) (*AuthUser, error)
	// RefreshSession exchanges a refresh token for a new session. Refresh
	// tokens are single use.
	RefreshSession(ctx context.Context, refreshToken string) (*AuthSession, error)
}

// =============================================================================
// Data
// =============================================================================

// Op is a filter comparison.
type Op string

const (
	OpEq  Op = "eq"
	OpNeq Op = "neq"
)

// Filter restricts the rows a query or mutation touches.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

// Eq matches rows whose column equals value.
func Eq(column string, value any) Filter { return Filter{Column: column, Op: OpEq, Value: value} }

// Neq matches rows whose column differs from value.
func Neq(column string, value any) Filter { return Filter{Column: column, Op: OpNeq, Value: value} }

// Order sorts query results.
type Order struct {
	Column     string
	Descending bool
}

// Join embeds a related row under the related table's name.
// ForeignKey is the local column referencing the related table's id.
type Join struct {
	Table      string
	ForeignKey string
	Columns    []string
}

// Query describes a read.
type Query struct {
	Table   string
	Columns []string
	Joins   []Join
	Filters []Filter
	Order   []Order
	Limit   int
}

// Returning shapes the rows sent back by a write.
type Returning struct {
	Columns []string
	Joins   []Join
}

// Data reads and writes rows.
//
// dest is either a pointer to a slice, which receives every row, or a
// pointer to a single value, which receives exactly one row; in that case
// ErrNoRows is returned when nothing matched. A nil dest discards the result.
type Data interface {
	Select(ctx context.Context, q Query, dest any) error
	Insert(ctx context.Context, table string, row any, ret Returning, dest any) error
	Update(ctx context.Context, table string, filters []Filter, patch any, ret Returning, dest any) error
	Delete(ctx context.Context, table string, filters []Filter) error
}

// =============================================================================
// Blob
// =============================================================================

// Blob stores files and hands out public addresses for them.
type Blob interface {
	Put(ctx context.Context, bucket, name string, data []byte, contentType string) error
	PublicURL(bucket, name string) string
}

// CredentialSource supplies the signed-in user's access token, or "" when signed out.
type CredentialSource interface {
	Credential() string
}

type credentialKey struct{}

// WithCredential scopes requests made with ctx to credential, overriding the
// adapter's CredentialSource. Sign-in uses it before the session is cached.
func WithCredential(ctx context.Context, credential string) context.Context {
	return context.WithValue(ctx, credentialKey{}, credential)
}

func credentialFrom(ctx context.Context) (string, bool) {
	c, ok := ctx.Value(credentialKey{}).(string)
	return c, ok
}

// wantsOne reports whether dest receives a single row rather than a slice.
func wantsOne(dest any) bool {
	if dest == nil {
		return false
	}
	t := reflect.TypeOf(dest)
	return !(t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Slice)
}
