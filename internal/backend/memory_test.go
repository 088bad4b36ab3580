package backend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type txRow struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Date     string `json:"date"`
	MemberID string `json:"member_id"`
	Members  *struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	} `json:"members"`
}

var memberJoin = Join{Table: "members", ForeignKey: "member_id", Columns: []string{"first_name", "last_name"}}

func TestMemory_SelectFiltersOrdersAndJoins(t *testing.T) {
	m := NewMemory()
	m.Seed("members", map[string]any{"id": "m1", "first_name": "Ada", "last_name": "Lovelace"})
	m.Seed("transactions",
		map[string]any{"id": "t1", "label": "old", "date": "2024-01-01", "member_id": "m1"},
		map[string]any{"id": "t2", "label": "new", "date": "2024-03-01", "member_id": "m1"},
		map[string]any{"id": "t3", "label": "orphan", "date": "2024-02-01", "member_id": "gone"},
	)

	var rows []txRow
	err := m.Select(context.Background(), Query{
		Table: "transactions",
		Joins: []Join{memberJoin},
		Order: []Order{{Column: "date", Descending: true}},
	}, &rows)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"t2", "t3", "t1"}, []string{rows[0].ID, rows[1].ID, rows[2].ID})
	require.NotNil(t, rows[0].Members)
	assert.Equal(t, "Ada", rows[0].Members.FirstName)
	assert.Nil(t, rows[1].Members)

	rows = nil
	err = m.Select(context.Background(), Query{
		Table:   "transactions",
		Filters: []Filter{Neq("member_id", "gone")},
		Order:   []Order{{Column: "date"}},
		Limit:   1,
	}, &rows)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "t1", rows[0].ID)
}

func TestMemory_SelectSingle(t *testing.T) {
	m := NewMemory()
	m.Seed("members", map[string]any{"id": "m1", "user_id": "u1"}, map[string]any{"id": "m2", "user_id": "u1"})

	var one map[string]any
	err := m.Select(context.Background(), Query{Table: "members", Filters: []Filter{Eq("user_id", "nobody")}}, &one)
	assert.ErrorIs(t, err, ErrNoRows)

	err = m.Select(context.Background(), Query{Table: "members", Filters: []Filter{Eq("id", "m1")}}, &one)
	require.NoError(t, err)
	assert.Equal(t, "u1", one["user_id"])

	err = m.Select(context.Background(), Query{Table: "members", Filters: []Filter{Eq("user_id", "u1")}}, &one)
	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, "PGRST116", remote.Code)
}

func TestMemory_InsertUpdateDelete(t *testing.T) {
	m := NewMemory()
	m.SetClock(func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) })
	m.Seed("members", map[string]any{"id": "m1", "first_name": "Ada", "last_name": "Lovelace"})
	ctx := context.Background()

	var created txRow
	err := m.Insert(ctx, "transactions", map[string]any{"label": "Cables", "member_id": "m1"}, Returning{Joins: []Join{memberJoin}}, &created)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	require.NotNil(t, created.Members)
	assert.Equal(t, "Lovelace", created.Members.LastName)
	assert.Equal(t, "2024-05-01T12:00:00Z", m.Rows("transactions")[0]["created_at"])

	var updated txRow
	err = m.Update(ctx, "transactions", []Filter{Eq("id", created.ID)}, map[string]any{"label": "Câbles"}, Returning{}, &updated)
	require.NoError(t, err)
	assert.Equal(t, "Câbles", updated.Label)

	err = m.Update(ctx, "transactions", []Filter{Eq("id", "missing")}, map[string]any{"label": "x"}, Returning{}, &updated)
	assert.ErrorIs(t, err, ErrNoRows)

	require.NoError(t, m.Delete(ctx, "transactions", []Filter{Eq("id", created.ID)}))
	assert.Empty(t, m.Rows("transactions"))
}

func TestMemory_FailTable(t *testing.T) {
	m := NewMemory()
	boom := &RemoteError{Status: 404, Code: "42P01", Message: `relation "public.notifications" does not exist`}
	m.FailTable("notifications", boom)

	var rows []map[string]any
	err := m.Select(context.Background(), Query{Table: "notifications"}, &rows)
	assert.Equal(t, boom, err)

	m.FailTable("notifications", nil)
	assert.NoError(t, m.Select(context.Background(), Query{Table: "notifications"}, &rows))
}

func TestMemory_AuthLifecycle(t *testing.T) {
	m := NewMemory()
	m.EnableProfileTrigger()
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return now })

	user, err := m.SignUp(ctx, "ada@example.org", "secret123", map[string]any{"first_name": "Ada", "last_name": "Lovelace"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.MetadataString("first_name"))

	profiles := m.Rows("members")
	require.Len(t, profiles, 1)
	assert.Equal(t, user.ID, profiles[0]["user_id"])
	assert.Equal(t, "Membre", profiles[0]["role"])

	_, err = m.SignUp(ctx, "ada@example.org", "secret123", nil)
	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, "user_already_exists", remote.Code)

	_, err = m.SignIn(ctx, "ada@example.org", "wrong")
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, "Invalid login credentials", remote.Message)

	session, err := m.SignIn(ctx, "ada@example.org", "secret123")
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour).Unix(), session.ExpiresAt)

	got, err := m.GetUser(ctx, session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	now = now.Add(2 * time.Hour)
	_, err = m.GetUser(ctx, session.AccessToken)
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, "bad_jwt", remote.Code)

	require.NoError(t, m.SignOut(ctx, session.AccessToken))
	_, err = m.GetUser(ctx, session.AccessToken)
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, "session_not_found", remote.Code)
	_, err = m.RefreshSession(ctx, session.RefreshToken)
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, "refresh_token_not_found", remote.Code)
}

func TestMemory_RefreshSessionIsSingleUse(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return now })

	_, err := m.SignUp(ctx, "ada@example.org", "secret123", nil)
	require.NoError(t, err)
	first, err := m.SignIn(ctx, "ada@example.org", "secret123")
	require.NoError(t, err)
	require.NotEmpty(t, first.RefreshToken)

	now = now.Add(2 * time.Hour)
	second, err := m.RefreshSession(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, second.User.ID)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.Equal(t, now.Add(time.Hour).Unix(), second.ExpiresAt)

	_, err = m.GetUser(ctx, second.AccessToken)
	require.NoError(t, err)

	_, err = m.RefreshSession(ctx, first.RefreshToken)
	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, 400, remote.Status)
}

func TestMemory_Blob(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	err := m.Put(ctx, "files", "a.png", []byte("x"), "image/png")
	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, 404, remote.Status)

	m.CreateBucket("files")
	require.NoError(t, m.Put(ctx, "files", "a.png", []byte("x"), "image/png"))
	data, ok := m.Object("files", "a.png")
	require.True(t, ok)
	assert.Equal(t, []byte("x"), data)
	assert.Equal(t, DefaultMemoryURL+"/storage/v1/object/public/files/a.png", m.PublicURL("files", "a.png"))
}
