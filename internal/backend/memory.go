package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultMemoryURL is the base address Memory uses for public object URLs.
const DefaultMemoryURL = "http://localhost:54321"

const memoryTokenTTL = time.Hour

// Memory is an in-process backend for tests and offline runs. It emulates the
// subset of PostgREST the repositories rely on: equality filters, ordering,
// column projection and embedded member joins.
type Memory struct {
	mu sync.RWMutex

	tables   map[string][]map[string]any
	failures map[string]error

	users    map[string]*memoryUser
	sessions map[string]string
	refresh  map[string]memoryRefresh
	authErr  error
	trigger  bool
	secret   []byte

	buckets map[string]map[string][]byte
	baseURL string

	now func() time.Time
}

type memoryUser struct {
	id       string
	email    string
	password string
	metadata map[string]any
}

type memoryRefresh struct {
	userID string
	access string
}

type memoryClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		tables:   make(map[string][]map[string]any),
		failures: make(map[string]error),
		users:    make(map[string]*memoryUser),
		sessions: make(map[string]string),
		refresh:  make(map[string]memoryRefresh),
		secret:   []byte(uuid.NewString()),
		buckets:  make(map[string]map[string][]byte),
		baseURL:  DefaultMemoryURL,
		now:      time.Now,
	}
}

var (
	_ Auth = (*Memory)(nil)
	_ Data = (*Memory)(nil)
	_ Blob = (*Memory)(nil)
)

// =============================================================================
// Test Controls
// =============================================================================

// SetClock replaces the clock used for token expiry and created_at stamps.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// FailTable makes every operation on table return err. A nil err clears it.
func (m *Memory) FailTable(table string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, table)
		return
	}
	m.failures[table] = err
}

// FailAuth makes every auth call return err. A nil err clears it.
func (m *Memory) FailAuth(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authErr = err
}

// EnableProfileTrigger creates a members row for every sign-up, linked by
// user_id, the way the production database trigger does.
func (m *Memory) EnableProfileTrigger() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trigger = true
}

// Seed appends rows to table as-is, apart from a generated id when missing.
func (m *Memory) Seed(table string, rows ...map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range rows {
		copied := cloneRow(row)
		if _, ok := copied["id"]; !ok {
			copied["id"] = uuid.NewString()
		}
		m.tables[table] = append(m.tables[table], normalize(copied))
	}
}

// Rows returns a copy of every row in table.
func (m *Memory) Rows(table string) []map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]map[string]any, 0, len(m.tables[table]))
	for _, row := range m.tables[table] {
		out = append(out, cloneRow(row))
	}
	return out
}

// CreateBucket makes bucket available for Put.
func (m *Memory) CreateBucket(bucket string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buckets[bucket]; !ok {
		m.buckets[bucket] = make(map[string][]byte)
	}
}

// Object returns a stored object.
func (m *Memory) Object(bucket, name string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.buckets[bucket][name]
	return data, ok
}

// =============================================================================
// Auth
// =============================================================================

// SignUp registers a new account.
func (m *Memory) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*AuthUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.authErr != nil {
		return nil, m.authErr
	}
	if email == "" {
		return nil, &RemoteError{Status: 400, Code: "validation_failed", Message: "Anonymous sign-ins are disabled"}
	}
	if len(password) < 6 {
		return nil, &RemoteError{Status: 422, Code: "weak_password", Message: "Password should be at least 6 characters."}
	}
	key := strings.ToLower(email)
	if _, exists := m.users[key]; exists {
		return nil, &RemoteError{Status: 422, Code: "user_already_exists", Message: "User already registered"}
	}

	user := &memoryUser{id: uuid.NewString(), email: email, password: password, metadata: cloneRow(metadata)}
	m.users[key] = user

	if m.trigger {
		m.tables["members"] = append(m.tables["members"], map[string]any{
			"id":         uuid.NewString(),
			"user_id":    user.id,
			"email":      email,
			"first_name": metadata["first_name"],
			"last_name":  metadata["last_name"],
			"role":       "Membre",
			"status":     "active",
			"created_at": m.now().UTC().Format(time.RFC3339),
		})
	}

	out := user.toAuthUser()
	return &out, nil
}

// SignIn checks credentials and issues a session.
func (m *Memory) SignIn(ctx context.Context, email, password string) (*AuthSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.authErr != nil {
		return nil, m.authErr
	}
	user, ok := m.users[strings.ToLower(email)]
	if !ok || user.password != password {
		return nil, &RemoteError{Status: 400, Code: "invalid_credentials", Message: "Invalid login credentials"}
	}

	return m.issue(user)
}

// RefreshSession consumes refreshToken and issues a new session.
func (m *Memory) RefreshSession(ctx context.Context, refreshToken string) (*AuthSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.authErr != nil {
		return nil, m.authErr
	}
	r, ok := m.refresh[refreshToken]
	if !ok {
		return nil, &RemoteError{Status: 400, Code: "refresh_token_not_found", Message: "Invalid Refresh Token: Refresh Token Not Found"}
	}
	delete(m.refresh, refreshToken)
	delete(m.sessions, r.access)
	for _, user := range m.users {
		if user.id == r.userID {
			return m.issue(user)
		}
	}
	return nil, &RemoteError{Status: 404, Code: "user_not_found", Message: "User not found"}
}

// issue signs an HS256 access token and pairs it with a refresh token.
// Callers hold m.mu.
func (m *Memory) issue(user *memoryUser) (*AuthSession, error) {
	now := m.now()
	expiresAt := now.Add(memoryTokenTTL)
	claims := memoryClaims{
		Email: user.email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	refresh := uuid.NewString()
	m.sessions[token] = user.id
	m.refresh[refresh] = memoryRefresh{userID: user.id, access: token}

	return &AuthSession{User: user.toAuthUser(), AccessToken: token, RefreshToken: refresh, ExpiresAt: expiresAt.Unix()}, nil
}

// SignOut revokes credential. Unknown credentials are ignored.
func (m *Memory) SignOut(ctx context.Context, credential string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.authErr != nil {
		return m.authErr
	}
	delete(m.sessions, credential)
	for token, r := range m.refresh {
		if r.access == credential {
			delete(m.refresh, token)
		}
	}
	return nil
}

// GetUser resolves a live, unexpired credential.
func (m *Memory) GetUser(ctx context.Context, credential string) (*AuthUser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.authErr != nil {
		return nil, m.authErr
	}
	userID, ok := m.sessions[credential]
	if !ok {
		return nil, &RemoteError{Status: 403, Code: "session_not_found", Message: "Session from session_id claim in JWT does not exist"}
	}
	_, err := jwt.ParseWithClaims(credential, &memoryClaims{}, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, &RemoteError{Status: 403, Code: "bad_jwt", Message: "invalid JWT: " + err.Error()}
	}
	for _, user := range m.users {
		if user.id == userID {
			out := user.toAuthUser()
			return &out, nil
		}
	}
	return nil, &RemoteError{Status: 404, Code: "user_not_found", Message: "User not found"}
}

func (u *memoryUser) toAuthUser() AuthUser {
	return AuthUser{ID: u.id, Email: u.email, Metadata: cloneRow(u.metadata)}
}

// =============================================================================
// Data
// =============================================================================

// Select filters, orders, projects and joins rows from q.Table.
func (m *Memory) Select(ctx context.Context, q Query, dest any) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failures[q.Table]; err != nil {
		return err
	}

	rows := make([]map[string]any, 0)
	for _, row := range m.tables[q.Table] {
		if matches(row, q.Filters) {
			rows = append(rows, row)
		}
	}
	sortRows(rows, q.Order)
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	if wantsOne(dest) && len(rows) > 1 {
		return &RemoteError{Status: 406, Code: "PGRST116", Message: fmt.Sprintf("JSON object requested, multiple (%d) rows returned", len(rows))}
	}
	return decodeRows(m.represent(rows, q.Columns, q.Joins), dest)
}

// Insert stores row, stamping id and created_at when absent.
func (m *Memory) Insert(ctx context.Context, table string, row any, ret Returning, dest any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures[table]; err != nil {
		return err
	}

	stored, err := toRow(row)
	if err != nil {
		return err
	}
	if id, _ := stored["id"].(string); id == "" {
		stored["id"] = uuid.NewString()
	}
	if _, ok := stored["created_at"]; !ok {
		stored["created_at"] = m.now().UTC().Format(time.RFC3339)
	}
	m.tables[table] = append(m.tables[table], stored)

	return decodeRows(m.represent([]map[string]any{stored}, ret.Columns, ret.Joins), dest)
}

// Update merges patch into every row matching filters.
func (m *Memory) Update(ctx context.Context, table string, filters []Filter, patch any, ret Returning, dest any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures[table]; err != nil {
		return err
	}

	changes, err := toRow(patch)
	if err != nil {
		return err
	}
	updated := make([]map[string]any, 0)
	for _, row := range m.tables[table] {
		if !matches(row, filters) {
			continue
		}
		for k, v := range changes {
			row[k] = v
		}
		updated = append(updated, row)
	}
	if wantsOne(dest) && len(updated) > 1 {
		return &RemoteError{Status: 406, Code: "PGRST116", Message: fmt.Sprintf("JSON object requested, multiple (%d) rows returned", len(updated))}
	}
	return decodeRows(m.represent(updated, ret.Columns, ret.Joins), dest)
}

// Delete removes every row matching filters.
func (m *Memory) Delete(ctx context.Context, table string, filters []Filter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures[table]; err != nil {
		return err
	}

	kept := m.tables[table][:0]
	for _, row := range m.tables[table] {
		if !matches(row, filters) {
			kept = append(kept, row)
		}
	}
	m.tables[table] = kept
	return nil
}

// represent projects rows and embeds joined tables. Callers hold m.mu.
func (m *Memory) represent(rows []map[string]any, columns []string, joins []Join) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		var item map[string]any
		if len(columns) == 0 {
			item = cloneRow(row)
		} else {
			item = make(map[string]any, len(columns))
			for _, c := range columns {
				if v, ok := row[c]; ok {
					item[c] = v
				}
			}
		}
		for _, j := range joins {
			item[j.Table] = m.lookup(j, row[j.ForeignKey])
		}
		out = append(out, item)
	}
	return out
}

func (m *Memory) lookup(j Join, id any) any {
	if id == nil {
		return nil
	}
	for _, related := range m.tables[j.Table] {
		if fmt.Sprint(related["id"]) != fmt.Sprint(id) {
			continue
		}
		if len(j.Columns) == 0 {
			return cloneRow(related)
		}
		embedded := make(map[string]any, len(j.Columns))
		for _, c := range j.Columns {
			embedded[c] = related[c]
		}
		return embedded
	}
	return nil
}

func matches(row map[string]any, filters []Filter) bool {
	for _, f := range filters {
		equal := fmt.Sprint(row[f.Column]) == fmt.Sprint(f.Value)
		switch f.Op {
		case OpEq:
			if !equal {
				return false
			}
		case OpNeq:
			if equal {
				return false
			}
		}
	}
	return true
}

// sortRows orders rows in place. Nulls sort last ascending, first descending.
func sortRows(rows []map[string]any, orders []Order) {
	if len(orders) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, o := range orders {
			c := compare(rows[i][o.Column], rows[j][o.Column])
			if c == 0 {
				continue
			}
			if o.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	if x, ok := a.(float64); ok {
		if y, ok := b.(float64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// toRow converts a struct or map into its JSON object form.
func toRow(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal row: %w", err)
	}
	row := make(map[string]any)
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("unmarshal row: %w", err)
	}
	return row, nil
}

func normalize(row map[string]any) map[string]any {
	if out, err := toRow(row); err == nil {
		return out
	}
	return row
}

func decodeRows(rows []map[string]any, dest any) error {
	if dest == nil {
		return nil
	}
	var payload any = rows
	if wantsOne(dest) {
		if len(rows) == 0 {
			return ErrNoRows
		}
		payload = rows[0]
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func cloneRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

// =============================================================================
// Blob
// =============================================================================

// Put stores data in an existing bucket.
func (m *Memory) Put(ctx context.Context, bucket, name string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	objects, ok := m.buckets[bucket]
	if !ok {
		return &RemoteError{Status: 404, Code: "NoSuchBucket", Message: "Bucket not found"}
	}
	if _, exists := objects[name]; exists {
		return &RemoteError{Status: 409, Code: "Duplicate", Message: "The resource already exists"}
	}
	objects[name] = append([]byte(nil), data...)
	return nil
}

// PublicURL mirrors Supabase's public object address.
func (m *Memory) PublicURL(bucket, name string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", m.baseURL, bucket, url.PathEscape(name))
}
