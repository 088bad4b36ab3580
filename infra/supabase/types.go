// Package supabase is a small client for the Supabase auth (GoTrue), database
// (PostgREST) and storage APIs used by the finance layer.
package supabase

import (
	"errors"
	"net/http"
	"time"
)

// =============================================================================
// Configuration
// =============================================================================

// Config holds Supabase client configuration.
type Config struct {
	// ProjectURL is the Supabase project URL (e.g., https://xxx.supabase.co)
	ProjectURL string

	// AnonKey is the project's public anon key. It is sent as the apikey header
	// on every request and as the bearer token when no user token is supplied.
	AnonKey string

	// DefaultHeaders are added to every request
	DefaultHeaders map[string]string

	// Timeout for HTTP requests (default 30s). Ignored when HTTPClient is set.
	Timeout time.Duration

	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client

	// Metrics records request counts and latencies when non-nil.
	Metrics *Metrics

	// Retry wraps the default transport with retries and a circuit breaker
	// when non-nil. Ignored when HTTPClient is set.
	Retry *RetryConfig
}

// =============================================================================
// Auth Types
// =============================================================================

// User represents a Supabase auth user.
type User struct {
	ID           string         `json:"id"`
	Aud          string         `json:"aud"`
	Role         string         `json:"role"`
	Email        string         `json:"email"`
	Phone        string         `json:"phone,omitempty"`
	ConfirmedAt  *time.Time     `json:"confirmed_at,omitempty"`
	LastSignInAt *time.Time     `json:"last_sign_in_at,omitempty"`
	AppMetadata  map[string]any `json:"app_metadata,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// MetadataString returns user_metadata[key] when it is a string.
func (u *User) MetadataString(key string) string {
	if u == nil || u.UserMetadata == nil {
		return ""
	}
	s, _ := u.UserMetadata[key].(string)
	return s
}

// Session represents an auth session.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user,omitempty"`
}

// SignUpRequest for user registration.
type SignUpRequest struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Data     map[string]any `json:"data,omitempty"`
}

// =============================================================================
// Database Types
// =============================================================================

// FilterOperator for query filters.
type FilterOperator string

const (
	OpEq  FilterOperator = "eq"
	OpNeq FilterOperator = "neq"
)

// OrderDirection for sorting.
type OrderDirection string

const (
	OrderAsc  OrderDirection = "asc"
	OrderDesc OrderDirection = "desc"
)

// ErrNoRows is returned by MaybeSingle queries that matched nothing.
var ErrNoRows = errors.New("supabase: no rows in result set")

// =============================================================================
// Storage Types
// =============================================================================

// FileObject represents a file in storage.
type FileObject struct {
	Name     string `json:"name"`
	Key      string `json:"key,omitempty"`
	BucketID string `json:"bucket_id,omitempty"`
}

// UploadOptions for file uploads.
type UploadOptions struct {
	ContentType  string
	CacheControl string
	Upsert       bool
}

// =============================================================================
// Error Types
// =============================================================================

// Error represents a Supabase API error.
type Error struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	Hint       string `json:"hint,omitempty"`
	StatusCode int    `json:"status_code"`
}

func (e *Error) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}
