package mapping

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sas-finance/service_layer/internal/domain"
)

func TestTransactionToDomain_JoinedName(t *testing.T) {
	var row TransactionRow
	raw := `{"id":"t1","type":"sortie","amount":42.5,"category":"Matériel","label":"Cables",
		"date":"2024-03-01","member_id":"m1","status":"pending","receipt_url":null,
		"members":{"first_name":"Ada","last_name":"Lovelace"}}`
	require.NoError(t, json.Unmarshal([]byte(raw), &row))

	tx := TransactionToDomain(row)
	assert.Equal(t, domain.Outflow, tx.Direction)
	assert.True(t, decimal.RequireFromString("42.5").Equal(tx.Amount))
	assert.Equal(t, "Ada Lovelace", tx.MemberName)
	assert.Equal(t, domain.TransactionPending, tx.Status)
	assert.Empty(t, tx.ReceiptURL)
}

func TestMemberName_MissingJoin(t *testing.T) {
	var row TransactionRow
	require.NoError(t, json.Unmarshal([]byte(`{"id":"t1","amount":"10","members":null}`), &row))
	assert.Equal(t, UnknownMemberName, TransactionToDomain(row).MemberName)
	assert.Equal(t, UnknownMemberName, MemberName(&MemberRef{}))
	assert.Equal(t, "Ada", MemberName(&MemberRef{FirstName: "Ada"}))
}

func TestReimbursementToDomain_DateFallback(t *testing.T) {
	r := ReimbursementToDomain(ReimbursementRow{ID: "r1", CreatedAt: "2024-02-02T10:00:00Z"})
	assert.Equal(t, "2024-02-02T10:00:00Z", r.Date)
	assert.Equal(t, UnknownMemberName, r.MemberName)

	r = ReimbursementToDomain(ReimbursementRow{ID: "r1", RequestedDate: "2024-02-01", CreatedAt: "2024-02-02T10:00:00Z"})
	assert.Equal(t, "2024-02-01", r.Date)
}

func TestMemberToDomain_Defaults(t *testing.T) {
	m := MemberToDomain(MemberRow{ID: "m1", FirstName: "Ada", Filiere: "Info", Niveau: "L3"})
	assert.Equal(t, domain.RoleRegular, m.Role)
	assert.Equal(t, domain.MemberActive, m.Status)
	assert.Equal(t, "Info", m.Program)
	assert.Equal(t, "L3", m.Level)

	m = MemberToDomain(MemberRow{ID: "m2", Role: "Président", Status: "inactive"})
	assert.Equal(t, domain.RoleAdminPrimary, m.Role)
	assert.Equal(t, domain.MemberInactive, m.Status)
}

func TestMessageAndNotificationToDomain(t *testing.T) {
	msg := MessageToDomain(MessageRow{ID: "c1", AuthorID: "m1", Content: "Salut", CreatedAt: "2024-01-01T00:00:00Z",
		Members: &MemberRef{FirstName: "Ada", LastName: "Lovelace"}})
	assert.Equal(t, "Ada Lovelace", msg.AuthorName)
	assert.Equal(t, "2024-01-01T00:00:00Z", msg.Date)

	n := NotificationToDomain(NotificationRow{ID: "n1", Title: "T", Type: "warning", Read: true})
	assert.Equal(t, domain.SeverityWarning, n.Severity)
	assert.True(t, n.Read)
}

func TestSettingsToDomain_BlankFallsBack(t *testing.T) {
	s := SettingsToDomain(SettingsRow{LogoURL: "https://x/logo.png"})
	assert.Equal(t, domain.DefaultAppName, s.AppName)
	assert.Equal(t, domain.DefaultPrimaryColor, s.PrimaryColor)
	assert.Equal(t, "https://x/logo.png", s.LogoURL)
}

func TestWriteRows_CarryNoIdentifierOrDerivedName(t *testing.T) {
	insert := TransactionInsert(domain.NewTransaction{
		Direction: domain.Outflow,
		Amount:    decimal.RequireFromString("42.50"),
		Category:  "Matériel",
		Label:     "Cables",
		Date:      "2024-03-01",
		MemberID:  "m1",
		Status:    domain.TransactionPending,
	})
	data, err := json.Marshal(insert)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(data, &body))
	assert.NotContains(t, body, "id")
	assert.NotContains(t, body, "members")
	assert.NotContains(t, body, "receipt_url")
	assert.Equal(t, "42.5", body["amount"])
	assert.Equal(t, "sortie", body["type"])

	r := ReimbursementInsert(domain.NewReimbursement{MemberID: "m1", Amount: decimal.NewFromInt(5), Reason: "Taxi", Date: "2024-03-02"})
	assert.Equal(t, "pending", r.Status)
	assert.Equal(t, "2024-03-02", r.RequestedDate)
}

func TestPatches_OnlySetFields(t *testing.T) {
	assert.Equal(t, map[string]any{"role": "Trésorier"}, MemberPatch(domain.MemberPatch{Role: domain.RoleAdminSecondary}))
	assert.Equal(t, map[string]any{"filiere": "Info", "avatar_url": "u"}, MemberPatch(domain.MemberPatch{Program: "Info", AvatarURL: "u"}))
	assert.Empty(t, SettingsPatch(domain.SettingsPatch{}))
	assert.Equal(t, map[string]any{"primary_color": "#000000"}, SettingsPatch(domain.SettingsPatch{PrimaryColor: "#000000"}))
}

func TestNotificationInsert(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.FixedZone("CET", 3600))
	row := NotificationInsert(domain.NewNotification{Title: "Nouvelle dépense", Message: "m"}, now)
	assert.False(t, row.Read)
	assert.Equal(t, "info", row.Type)
	assert.Equal(t, "2024-03-01T08:30:00.000Z", row.Date)
}
