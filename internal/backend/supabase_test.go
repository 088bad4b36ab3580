package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sas-finance/service_layer/infra/supabase"
)

type staticCredential string

func (s staticCredential) Credential() string { return string(s) }

func newAdapter(t *testing.T, handler http.HandlerFunc, opts ...SupabaseOption) *Supabase {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := supabase.New(supabase.Config{ProjectURL: srv.URL, AnonKey: "anon"})
	require.NoError(t, err)
	return NewSupabase(client, opts...)
}

func TestSelectClause(t *testing.T) {
	assert.Equal(t, "*", selectClause(nil, nil))
	assert.Equal(t, "*,members(first_name,last_name)", selectClause(nil, []Join{memberJoin}))
	assert.Equal(t, "id,status", selectClause([]string{"id", "status"}, nil))
}

func TestSupabase_SelectSendsCredentialAndQuery(t *testing.T) {
	var gotAuth, gotSelect, gotOrder, gotFilter string
	adapter := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotSelect = r.URL.Query().Get("select")
		gotOrder = r.URL.Query().Get("order")
		gotFilter = r.URL.Query().Get("member_id")
		_, _ = io.WriteString(w, `[{"id":"t1","label":"Cables","members":{"first_name":"Ada","last_name":"Lovelace"}}]`)
	}, WithCredentials(staticCredential("user-token")))

	var rows []txRow
	err := adapter.Select(context.Background(), Query{
		Table:   "transactions",
		Joins:   []Join{memberJoin},
		Filters: []Filter{Eq("member_id", "m1")},
		Order:   []Order{{Column: "date", Descending: true}},
	}, &rows)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ada", rows[0].Members.FirstName)
	assert.Equal(t, "Bearer user-token", gotAuth)
	assert.Equal(t, "*,members(first_name,last_name)", gotSelect)
	assert.Equal(t, "date.desc", gotOrder)
	assert.Equal(t, "eq.m1", gotFilter)
}

func TestSupabase_SingleRowMisses(t *testing.T) {
	adapter := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = io.WriteString(w, `[]`)
			return
		}
		w.WriteHeader(http.StatusNotAcceptable)
		_, _ = io.WriteString(w, `{"code":"PGRST116","details":"The result contains 0 rows","message":"JSON object requested, multiple (or no) rows returned"}`)
	})

	var one map[string]any
	err := adapter.Select(context.Background(), Query{Table: "members"}, &one)
	assert.ErrorIs(t, err, ErrNoRows)

	err = adapter.Update(context.Background(), "members", []Filter{Eq("id", "x")}, map[string]any{"role": "Trésorier"}, Returning{}, &one)
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestSupabase_SingleRowAmbiguousIsRemoteError(t *testing.T) {
	adapter := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotAcceptable)
		_, _ = io.WriteString(w, `{"code":"PGRST116","details":"The result contains 2 rows","message":"JSON object requested, multiple (or no) rows returned"}`)
	})

	var one map[string]any
	err := adapter.Update(context.Background(), "members", []Filter{Eq("email", "ada@example.org")}, map[string]any{"role": "Trésorier"}, Returning{}, &one)
	assert.NotErrorIs(t, err, ErrNoRows)
	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, http.StatusNotAcceptable, remote.Status)
	assert.Equal(t, "PGRST116", remote.Code)

	m := NewMemory()
	m.Seed("members", map[string]any{"id": "a", "email": "x"}, map[string]any{"id": "b", "email": "x"})
	err = m.Update(context.Background(), "members", []Filter{Eq("email", "x")}, map[string]any{"role": "Trésorier"}, Returning{}, &one)
	var memRemote *RemoteError
	require.True(t, errors.As(err, &memRemote))
	assert.Equal(t, remote.Code, memRemote.Code)
}

func TestSupabase_RefreshSession(t *testing.T) {
	var grant, sent string
	adapter := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		grant = r.URL.Query().Get("grant_type")
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		sent = body["refresh_token"]
		_, _ = io.WriteString(w, `{"access_token":"new-access","refresh_token":"new-refresh","expires_at":1714569600,"user":{"id":"u1","email":"ada@example.org"}}`)
	})

	sess, err := adapter.RefreshSession(context.Background(), "old-refresh")
	require.NoError(t, err)
	assert.Equal(t, "refresh_token", grant)
	assert.Equal(t, "old-refresh", sent)
	assert.Equal(t, "new-access", sess.AccessToken)
	assert.Equal(t, "new-refresh", sess.RefreshToken)
	assert.Equal(t, int64(1714569600), sess.ExpiresAt)
	assert.Equal(t, "u1", sess.User.ID)
}

func TestSupabase_TranslatesRemoteErrors(t *testing.T) {
	adapter := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error_code":"invalid_credentials","msg":"Invalid login credentials"}`)
	})

	_, err := adapter.SignIn(context.Background(), "ada@example.org", "nope")
	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, http.StatusBadRequest, remote.Status)
	assert.Equal(t, "invalid_credentials", remote.Code)
	assert.Equal(t, "Invalid login credentials", remote.Message)
}

func TestSupabase_InsertAndPut(t *testing.T) {
	var insertBody map[string]any
	var putPath, putType string
	adapter := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/rest/v1/transactions":
			_ = json.NewDecoder(r.Body).Decode(&insertBody)
			_, _ = io.WriteString(w, `{"id":"t9","label":"Cables"}`)
		default:
			putPath = r.URL.Path
			putType = r.Header.Get("Content-Type")
			_, _ = io.WriteString(w, `{"Key":"files/x.png"}`)
		}
	})

	var created txRow
	err := adapter.Insert(context.Background(), "transactions", map[string]any{"label": "Cables"}, Returning{}, &created)
	require.NoError(t, err)
	assert.Equal(t, "t9", created.ID)
	assert.Equal(t, "Cables", insertBody["label"])

	require.NoError(t, adapter.Put(context.Background(), "files", "x.png", []byte("png"), "image/png"))
	assert.Equal(t, "/storage/v1/object/files/x.png", putPath)
	assert.Equal(t, "image/png", putType)
	assert.Contains(t, adapter.PublicURL("files", "x.png"), "/storage/v1/object/public/files/x.png")
}

func TestSupabase_ContextCredentialOverridesSource(t *testing.T) {
	var gotAuth string
	adapter := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = io.WriteString(w, `[]`)
	}, WithCredentials(staticCredential("stale")))

	var rows []map[string]any
	ctx := WithCredential(context.Background(), "fresh")
	require.NoError(t, adapter.Select(ctx, Query{Table: "members"}, &rows))
	assert.Equal(t, "Bearer fresh", gotAuth)

	require.NoError(t, adapter.Select(context.Background(), Query{Table: "members"}, &rows))
	assert.Equal(t, "Bearer stale", gotAuth)
}
