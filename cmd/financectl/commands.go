package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/sas-finance/service_layer/internal/cli"
	"github.com/sas-finance/service_layer/internal/domain"
	"github.com/sas-finance/service_layer/internal/finance"
	"github.com/sas-finance/service_layer/internal/reports"
)

type command struct {
	name  string
	usage string
	flags []string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{name: "signup", usage: "create an account", flags: []string{"-email", "-password", "-first-name", "-last-name"}, run: runSignUp},
	{name: "login", usage: "sign in", flags: []string{"-email", "-password"}, run: runLogin},
	{name: "logout", usage: "sign out", run: runLogout},
	{name: "whoami", usage: "show the signed-in member", run: runWhoAmI},
	{name: "transactions", usage: "list transactions", flags: []string{"-mine"}, run: runTransactions},
	{name: "add", usage: "record a transaction", flags: []string{"-type", "-amount", "-category", "-label", "-description", "-date", "-receipt"}, run: runAdd},
	{name: "review", usage: "approve or reject a transaction", flags: []string{"-id", "-status"}, run: runReview},
	{name: "delete", usage: "delete a transaction", flags: []string{"-id"}, run: runDelete},
	{name: "reimbursements", usage: "list reimbursement requests", flags: []string{"-mine"}, run: runReimbursements},
	{name: "reimburse", usage: "request a reimbursement", flags: []string{"-amount", "-reason", "-date", "-receipt"}, run: runReimburse},
	{name: "review-reimbursement", usage: "move a reimbursement request along", flags: []string{"-id", "-status"}, run: runReviewReimbursement},
	{name: "messages", usage: "show the message board", run: runMessages},
	{name: "post", usage: "post a message", flags: []string{"-message", "-attachment"}, run: runPost},
	{name: "notifications", usage: "show notifications", flags: []string{"-read"}, run: runNotifications},
	{name: "members", usage: "list members", run: runMembers},
	{name: "set-role", usage: "change a member's role", flags: []string{"-id", "-role"}, run: runSetRole},
	{name: "settings", usage: "show or change branding", flags: []string{"-name", "-color", "-logo"}, run: runSettings},
	{name: "summary", usage: "show balances per category and month", run: runSummary},
	{name: "export", usage: "export the ledger as XLSX", flags: []string{"-o"}, run: runExport},
	{name: "digest", usage: "post last month's digest now", run: runDigest},
	{name: "schedule", usage: "post the monthly digest on schedule", flags: []string{"-metrics-addr"}, run: runSchedule},
}

func findCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func completionCommands() []cli.Command {
	out := make([]cli.Command, 0, len(commands)+1)
	for _, c := range commands {
		out = append(out, cli.Command{Name: c.name, Flags: c.flags})
	}
	return append(out, cli.Command{Name: "completion"})
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: financectl [-config file] [-env file] <command> [flags]")
	fmt.Fprintln(w, "\ncommands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-22s %s\n", c.name, c.usage)
	}
	fmt.Fprintf(w, "  %-22s %s\n", "completion", "print a bash or zsh completion script")
}

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(raw), ",", "."))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}

// uploadReceipt stores the file at path and returns its public URL.
func uploadReceipt(ctx context.Context, a *app, path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("read receipt: %w", err)
	}
	return a.files.Upload(ctx, filepath.Base(path), data, "")
}

// =============================================================================
// Session
// =============================================================================

func runSignUp(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("signup")
	email := fs.String("email", "", "email address")
	password := fs.String("password", os.Getenv("SAS_PASSWORD"), "password")
	first := fs.String("first-name", "", "first name")
	last := fs.String("last-name", "", "last name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	m, err := a.identity.SignUp(ctx, *email, *password, *first, *last)
	if err != nil {
		return err
	}
	a.out.Success(fmt.Sprintf("Compte créé pour %s, connectez-vous avec « financectl login ».", m.Email))
	return nil
}

func runLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("login")
	email := fs.String("email", "", "email address")
	password := fs.String("password", os.Getenv("SAS_PASSWORD"), "password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	m, err := a.identity.SignIn(ctx, *email, *password)
	if err != nil {
		return err
	}
	a.out.Success(fmt.Sprintf("Connecté en tant que %s (%s)", m.FullName(), m.Role))
	return nil
}

func runLogout(ctx context.Context, a *app, _ []string) error {
	a.identity.SignOut(ctx)
	a.out.Success("Déconnecté")
	return nil
}

func runWhoAmI(ctx context.Context, a *app, _ []string) error {
	m, err := a.identity.Refresh(ctx)
	if err != nil {
		return err
	}
	a.out.Table([]string{"Nom", "Email", "Rôle", "Statut"}, [][]string{
		{m.FullName(), m.Email, string(m.Role), string(m.Status)},
	})
	return nil
}

// =============================================================================
// Transactions
// =============================================================================

func transactionRows(txs []domain.Transaction) [][]string {
	rows := make([][]string, 0, len(txs))
	for _, tx := range txs {
		sign := "+"
		if tx.Direction == domain.Outflow {
			sign = "-"
		}
		rows = append(rows, []string{tx.ID, tx.Date, tx.Label, tx.Category, sign + tx.Amount.StringFixed(2), string(tx.Status), tx.MemberName})
	}
	return rows
}

func runTransactions(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("transactions")
	mine := fs.Bool("mine", false, "only my transactions")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		txs []domain.Transaction
		err error
	)
	if *mine {
		txs, err = a.finance.MyTransactions(ctx)
	} else {
		txs, err = a.repos.Transactions.List(ctx)
	}
	if err != nil {
		return err
	}
	a.out.Table([]string{"ID", "Date", "Libellé", "Catégorie", "Montant", "Statut", "Membre"}, transactionRows(txs))
	return nil
}

func runAdd(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("add")
	kind := fs.String("type", string(domain.Outflow), "entree or sortie")
	rawAmount := fs.String("amount", "", "amount in euros")
	category := fs.String("category", "", "category")
	label := fs.String("label", "", "label")
	description := fs.String("description", "", "description")
	date := fs.String("date", "", "date (YYYY-MM-DD, default today)")
	receipt := fs.String("receipt", "", "receipt file to upload")
	if err := fs.Parse(args); err != nil {
		return err
	}

	amount, err := parseAmount(*rawAmount)
	if err != nil {
		return err
	}
	receiptURL, err := uploadReceipt(ctx, a, *receipt)
	if err != nil {
		return err
	}

	tx, err := a.finance.RecordTransaction(ctx, finance.TransactionInput{
		Direction:   domain.Direction(*kind),
		Amount:      amount,
		Category:    *category,
		Label:       *label,
		Description: *description,
		Date:        *date,
		ReceiptURL:  receiptURL,
	})
	if err != nil {
		return err
	}
	a.out.Success(fmt.Sprintf("Transaction %s enregistrée (%s)", tx.ID, tx.Status))
	return nil
}

func runReview(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("review")
	id := fs.String("id", "", "transaction id")
	status := fs.String("status", string(domain.TransactionApproved), "approved or rejected")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.finance.ReviewTransaction(ctx, *id, domain.TransactionStatus(*status)); err != nil {
		return err
	}
	a.out.Success(fmt.Sprintf("Transaction %s : %s", *id, *status))
	return nil
}

func runDelete(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("delete")
	id := fs.String("id", "", "transaction id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.finance.DeleteTransaction(ctx, *id); err != nil {
		return err
	}
	a.out.Success(fmt.Sprintf("Transaction %s supprimée", *id))
	return nil
}

// =============================================================================
// Reimbursements
// =============================================================================

func runReimbursements(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("reimbursements")
	mine := fs.Bool("mine", false, "only my requests")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		reqs []domain.ReimbursementRequest
		err  error
	)
	if *mine {
		reqs, err = a.finance.MyReimbursements(ctx)
	} else {
		reqs, err = a.repos.Reimbursements.List(ctx)
	}
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(reqs))
	for _, r := range reqs {
		rows = append(rows, []string{r.ID, r.Date, r.MemberName, r.Reason, r.Amount.StringFixed(2), string(r.Status)})
	}
	a.out.Table([]string{"ID", "Date", "Membre", "Motif", "Montant", "Statut"}, rows)
	return nil
}

func runReimburse(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("reimburse")
	rawAmount := fs.String("amount", "", "amount in euros")
	reason := fs.String("reason", "", "what the money was spent on")
	date := fs.String("date", "", "date (YYYY-MM-DD, default today)")
	receipt := fs.String("receipt", "", "receipt file to upload")
	if err := fs.Parse(args); err != nil {
		return err
	}

	amount, err := parseAmount(*rawAmount)
	if err != nil {
		return err
	}
	receiptURL, err := uploadReceipt(ctx, a, *receipt)
	if err != nil {
		return err
	}

	req, err := a.finance.SubmitReimbursement(ctx, finance.ReimbursementInput{
		Amount:     amount,
		Reason:     *reason,
		Date:       *date,
		ReceiptURL: receiptURL,
	})
	if err != nil {
		return err
	}
	a.out.Success(fmt.Sprintf("Demande %s envoyée", req.ID))
	return nil
}

func runReviewReimbursement(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("review-reimbursement")
	id := fs.String("id", "", "request id")
	status := fs.String("status", "", "approved, rejected or paid")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.finance.ReviewReimbursement(ctx, *id, domain.ReimbursementStatus(*status)); err != nil {
		return err
	}
	a.out.Success(fmt.Sprintf("Demande %s : %s", *id, *status))
	return nil
}

// =============================================================================
// Community and notifications
// =============================================================================

func runMessages(ctx context.Context, a *app, _ []string) error {
	msgs, err := a.repos.Messages.List(ctx)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(msgs))
	for _, m := range msgs {
		rows = append(rows, []string{m.Date, m.AuthorName, m.Content, m.AttachmentURL})
	}
	a.out.Table([]string{"Date", "Auteur", "Message", "Pièce jointe"}, rows)
	return nil
}

func runPost(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("post")
	message := fs.String("message", "", "message text")
	attachment := fs.String("attachment", "", "file to attach")
	if err := fs.Parse(args); err != nil {
		return err
	}
	url, err := uploadReceipt(ctx, a, *attachment)
	if err != nil {
		return err
	}
	if _, err := a.finance.PostMessage(ctx, *message, url); err != nil {
		return err
	}
	a.out.Success("Message publié")
	return nil
}

func runNotifications(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("notifications")
	read := fs.String("read", "", "mark this notification as read")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *read != "" {
		if res := a.repos.Notifications.MarkRead(ctx, *read); !res.Delivered {
			a.out.Warning("Notification non mise à jour")
			return nil
		}
		a.out.Success("Notification lue")
		return nil
	}

	res := a.repos.Notifications.Lookup(ctx)
	if res.Degraded {
		a.out.Warning("Notifications indisponibles")
	}
	rows := make([][]string, 0, len(res.Items))
	for _, n := range res.Items {
		state := "non lue"
		if n.Read {
			state = "lue"
		}
		rows = append(rows, []string{n.ID, n.Date, string(n.Severity), n.Title, n.Message, state})
	}
	a.out.Table([]string{"ID", "Date", "Type", "Titre", "Message", "État"}, rows)
	return nil
}

// =============================================================================
// Administration
// =============================================================================

func runMembers(ctx context.Context, a *app, _ []string) error {
	members, err := a.repos.Members.List(ctx)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(members))
	for _, m := range members {
		rows = append(rows, []string{m.ID, m.FullName(), m.Email, string(m.Role), string(m.Status)})
	}
	a.out.Table([]string{"ID", "Nom", "Email", "Rôle", "Statut"}, rows)
	return nil
}

func runSetRole(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("set-role")
	id := fs.String("id", "", "member id")
	role := fs.String("role", "", "new role")
	if err := fs.Parse(args); err != nil {
		return err
	}
	m, err := a.finance.ChangeMemberRole(ctx, *id, domain.Role(*role))
	if err != nil {
		return err
	}
	a.out.Success(fmt.Sprintf("%s est maintenant %s", m.FullName(), m.Role))
	return nil
}

func runSettings(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("settings")
	name := fs.String("name", "", "application name")
	color := fs.String("color", "", "primary color")
	logo := fs.String("logo", "", "logo URL")
	if err := fs.Parse(args); err != nil {
		return err
	}

	patch := domain.SettingsPatch{AppName: *name, PrimaryColor: *color, LogoURL: *logo}
	settings := a.repos.Settings.Get(ctx)
	if !patch.Empty() {
		var err error
		if settings, err = a.finance.UpdateSettings(ctx, patch); err != nil {
			return err
		}
		a.out.Success("Paramètres enregistrés")
	}
	a.out.Table([]string{"Nom", "Couleur", "Logo"}, [][]string{{settings.AppName, settings.PrimaryColor, settings.LogoURL}})
	return nil
}

// =============================================================================
// Reports
// =============================================================================

func runSummary(ctx context.Context, a *app, _ []string) error {
	txs, err := a.repos.Transactions.List(ctx)
	if err != nil {
		return err
	}
	reqs, err := a.repos.Reimbursements.List(ctx)
	if err != nil {
		return err
	}

	s := reports.Summarize(txs, reqs)
	a.out.Table([]string{"Entrées", "Sorties", "Solde", "En attente"}, [][]string{{
		s.Income.StringFixed(2), s.Expense.StringFixed(2), s.Balance.StringFixed(2), fmt.Sprint(s.PendingReimbursements),
	}})

	var rows [][]string
	for _, c := range reports.ByCategory(txs) {
		rows = append(rows, []string{c.Category, c.Total.StringFixed(2)})
	}
	fmt.Fprintln(a.out.Writer())
	a.out.Table([]string{"Catégorie", "Total"}, rows)

	rows = rows[:0]
	for _, m := range reports.Monthly(txs) {
		rows = append(rows, []string{m.Month, m.Income.StringFixed(2), m.Expense.StringFixed(2)})
	}
	fmt.Fprintln(a.out.Writer())
	a.out.Table([]string{"Mois", "Entrées", "Sorties"}, rows)
	return nil
}

func runExport(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("export")
	path := fs.String("o", "grand-livre.xlsx", "output file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	txs, err := a.repos.Transactions.List(ctx)
	if err != nil {
		return err
	}
	settings := a.repos.Settings.Get(ctx)

	f, err := os.Create(filepath.Clean(*path))
	if err != nil {
		return fmt.Errorf("create export: %w", err)
	}
	if err := reports.ExportXLSX(f, settings.AppName, txs); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close export: %w", err)
	}
	a.out.Success(fmt.Sprintf("%d transactions exportées vers %s", len(txs), *path))
	return nil
}

func newScheduler(a *app) (*reports.Scheduler, error) {
	return reports.NewScheduler(a.cfg.Reports.Cron,
		a.repos.Transactions, a.repos.Reimbursements, a.repos.Notifications,
		reports.WithSchedulerLogger(a.log.Named("reports")))
}

func runDigest(ctx context.Context, a *app, _ []string) error {
	s, err := newScheduler(a)
	if err != nil {
		return err
	}
	summary, err := s.RunOnce(ctx)
	if err != nil {
		return err
	}
	a.out.Success(fmt.Sprintf("Rapport publié, solde du mois : %s€", summary.Balance.StringFixed(2)))
	return nil
}

func runSchedule(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("schedule")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := newScheduler(a)
	if err != nil {
		return err
	}

	var srv *http.Server
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
		srv = &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.WithError(err).Error("metrics server stopped")
			}
		}()
	}

	s.Start()
	a.out.Info(fmt.Sprintf("Rapport mensuel programmé (%s)", a.cfg.Reports.Cron))
	<-ctx.Done()
	<-s.Stop().Done()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
	return nil
}
