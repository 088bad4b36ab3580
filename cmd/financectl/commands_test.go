package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sas-finance/service_layer/internal/backend"
	"github.com/sas-finance/service_layer/internal/cli"
	"github.com/sas-finance/service_layer/internal/config"
	"github.com/sas-finance/service_layer/internal/domain"
	"github.com/sas-finance/service_layer/internal/repository"
	"github.com/sas-finance/service_layer/internal/session"
	"github.com/sas-finance/service_layer/pkg/logger"
)

func newTestApp(t *testing.T) (*app, *backend.Memory, *bytes.Buffer) {
	t.Helper()
	mem := backend.NewMemory()
	mem.EnableProfileTrigger()
	mem.CreateBucket("files")

	cfg := config.Default()
	cfg.Supabase.URL = backend.DefaultMemoryURL
	cfg.Supabase.AnonKey = "anon"

	var out bytes.Buffer
	log := logger.NewNop()
	cache := session.NewCache(session.NewMemoryStore(), log)
	a := wire(cfg, backends{auth: mem, data: mem, blob: mem}, cache, cli.NewPlainPrinter(&out), log)
	return a, mem, &out
}

func run(t *testing.T, a *app, name string, args ...string) error {
	t.Helper()
	cmd, ok := findCommand(name)
	require.True(t, ok, name)
	return cmd.run(context.Background(), a, args)
}

func promote(t *testing.T, mem *backend.Memory, email string, role domain.Role) {
	t.Helper()
	require.NoError(t, mem.Update(context.Background(), repository.TableMembers,
		[]backend.Filter{backend.Eq("email", email)}, map[string]any{"role": role}, backend.Returning{}, nil))
}

func TestCommands_SessionLifecycle(t *testing.T) {
	a, _, out := newTestApp(t)

	require.NoError(t, run(t, a, "signup", "-email", "ada@example.org", "-password", "secret123", "-first-name", "Ada", "-last-name", "Lovelace"))
	require.NoError(t, run(t, a, "login", "-email", "ada@example.org", "-password", "secret123"))
	assert.Contains(t, out.String(), "Connecté en tant que Ada Lovelace (Membre)")

	out.Reset()
	require.NoError(t, run(t, a, "whoami"))
	assert.Contains(t, out.String(), "ada@example.org")

	out.Reset()
	require.NoError(t, run(t, a, "logout"))
	assert.Contains(t, out.String(), "Déconnecté")
	assert.NotContains(t, out.String(), "Session expirée")

	err := run(t, a, "whoami")
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
	assert.Equal(t, "Vous n'êtes pas connecté.", describe(err))
	assert.Equal(t, 3, exitCode(err))
}

func TestCommands_RevokedSessionIsReportedAsExpired(t *testing.T) {
	a, mem, out := newTestApp(t)

	require.NoError(t, run(t, a, "signup", "-email", "ada@example.org", "-password", "secret123", "-first-name", "Ada", "-last-name", "Lovelace"))
	require.NoError(t, run(t, a, "login", "-email", "ada@example.org", "-password", "secret123"))
	require.NoError(t, mem.SignOut(context.Background(), a.cache.Credential()))

	out.Reset()
	err := run(t, a, "whoami")
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
	assert.Equal(t, "Session expirée, reconnectez-vous avec « financectl login ».", describe(err))
	assert.Equal(t, 3, exitCode(err))
	assert.Contains(t, out.String(), "financectl login")
	assert.False(t, a.identity.IsAuthenticated())
}

func TestCommands_LoginFailureIsDescribed(t *testing.T) {
	a, _, _ := newTestApp(t)

	err := run(t, a, "login", "-email", "nobody@example.org", "-password", "whatever")
	require.Error(t, err)
	assert.Equal(t, "Invalid login credentials", describe(err))
	assert.Equal(t, 1, exitCode(err))
}

func TestCommands_BooksAsTreasurer(t *testing.T) {
	a, mem, out := newTestApp(t)
	require.NoError(t, run(t, a, "signup", "-email", "tres@example.org", "-password", "secret123", "-first-name", "Grace", "-last-name", "Hopper"))
	promote(t, mem, "tres@example.org", domain.RoleAdminSecondary)
	require.NoError(t, run(t, a, "login", "-email", "tres@example.org", "-password", "secret123"))

	receipt := filepath.Join(t.TempDir(), "ticket caisse.txt")
	require.NoError(t, os.WriteFile(receipt, []byte("cables"), 0o600))

	require.NoError(t, run(t, a, "add", "-type", "entree", "-amount", "150", "-category", "Cotisations", "-label", "Adhésions", "-date", "2024-03-02"))
	require.NoError(t, run(t, a, "add", "-type", "sortie", "-amount", "42,50", "-category", "Matériel", "-label", "Cables", "-date", "2024-03-10", "-receipt", receipt))

	txs := mem.Rows(repository.TableTransactions)
	require.Len(t, txs, 2)
	assert.Equal(t, "approved", txs[1]["status"])
	assert.Contains(t, txs[1]["receipt_url"], "ticket_caisse.txt")

	out.Reset()
	require.NoError(t, run(t, a, "summary"))
	assert.Contains(t, out.String(), "107.50")
	assert.Contains(t, out.String(), "2024-03")

	path := filepath.Join(t.TempDir(), "ledger.xlsx")
	require.NoError(t, run(t, a, "export", "-o", path))
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	label, err := f.GetCellValue("Grand livre", "B2")
	require.NoError(t, err)
	assert.NotEmpty(t, label)

	out.Reset()
	require.NoError(t, run(t, a, "notifications"))
	assert.Contains(t, out.String(), "Cables : 42.50€ ajouté par Grace")
}

func TestCommands_RegularMemberCannotReview(t *testing.T) {
	a, mem, _ := newTestApp(t)
	require.NoError(t, run(t, a, "signup", "-email", "ada@example.org", "-password", "secret123"))
	require.NoError(t, run(t, a, "login", "-email", "ada@example.org", "-password", "secret123"))
	require.NoError(t, run(t, a, "add", "-amount", "9.99", "-category", "Transport", "-label", "Ticket"))

	txs := mem.Rows(repository.TableTransactions)
	require.Len(t, txs, 1)
	assert.Equal(t, "pending", txs[0]["status"])

	err := run(t, a, "review", "-id", txs[0]["id"].(string), "-status", "approved")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Equal(t, "Action réservée au bureau.", describe(err))
}

func TestCommands_Reimbursements(t *testing.T) {
	a, mem, out := newTestApp(t)
	require.NoError(t, run(t, a, "signup", "-email", "pres@example.org", "-password", "secret123", "-first-name", "Alan", "-last-name", "Turing"))
	promote(t, mem, "pres@example.org", domain.RoleAdminPrimary)
	require.NoError(t, run(t, a, "login", "-email", "pres@example.org", "-password", "secret123"))

	require.NoError(t, run(t, a, "reimburse", "-amount", "12", "-reason", "Croissants"))
	reqs := mem.Rows(repository.TableReimbursements)
	require.Len(t, reqs, 1)
	id := reqs[0]["id"].(string)

	require.NoError(t, run(t, a, "review-reimbursement", "-id", id, "-status", "approved"))
	require.NoError(t, run(t, a, "review-reimbursement", "-id", id, "-status", "paid"))
	err := run(t, a, "review-reimbursement", "-id", id, "-status", "approved")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	out.Reset()
	require.NoError(t, run(t, a, "reimbursements", "-mine"))
	assert.Contains(t, out.String(), "Croissants")
	assert.Contains(t, out.String(), "paid")
}

func TestCommands_SettingsAndMessages(t *testing.T) {
	a, mem, out := newTestApp(t)
	require.NoError(t, run(t, a, "signup", "-email", "pres@example.org", "-password", "secret123", "-first-name", "Alan", "-last-name", "Turing"))
	promote(t, mem, "pres@example.org", domain.RoleAdminPrimary)
	require.NoError(t, run(t, a, "login", "-email", "pres@example.org", "-password", "secret123"))

	require.NoError(t, run(t, a, "settings", "-name", "BDE Info"))
	assert.Contains(t, out.String(), "BDE Info")

	require.NoError(t, run(t, a, "post", "-message", "  AG jeudi  "))
	out.Reset()
	require.NoError(t, run(t, a, "messages"))
	assert.Contains(t, out.String(), "AG jeudi")
	assert.Contains(t, out.String(), "Alan Turing")
}

func TestCommands_Digest(t *testing.T) {
	a, mem, _ := newTestApp(t)
	mem.Seed(repository.TableTransactions,
		map[string]any{"id": "t1", "type": "entree", "amount": 10, "category": "Dons", "label": "Don", "date": "2000-01-05", "status": "approved"},
	)
	require.NoError(t, run(t, a, "digest"))
	assert.Len(t, mem.Rows(repository.TableNotifications), 1)
}

func TestCommandTable(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range commands {
		assert.False(t, seen[c.name], "duplicate command %s", c.name)
		seen[c.name] = true
		assert.NotNil(t, c.run, c.name)
	}
	_, ok := findCommand("nope")
	assert.False(t, ok)

	var buf bytes.Buffer
	usage(&buf)
	assert.Contains(t, buf.String(), "review-reimbursement")
	assert.Len(t, completionCommands(), len(commands)+1)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(flag.ErrHelp))
	assert.Equal(t, 3, exitCode(domain.ErrForbidden))
	assert.Equal(t, 1, exitCode(errors.New("boom")))
}
