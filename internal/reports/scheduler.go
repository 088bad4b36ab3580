package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sas-finance/service_layer/internal/domain"
	"github.com/sas-finance/service_layer/internal/repository"
	"github.com/sas-finance/service_layer/pkg/logger"
)

// DefaultDigestSpec runs the monthly digest at 08:00 on the first of the month.
const DefaultDigestSpec = "0 8 1 * *"

type TransactionLister interface {
	List(ctx context.Context) ([]domain.Transaction, error)
}

type ReimbursementLister interface {
	List(ctx context.Context) ([]domain.ReimbursementRequest, error)
}

type Notifier interface {
	Create(ctx context.Context, n domain.NewNotification) repository.DeliveryResult
}

// Scheduler posts the previous month's summary to the notification feed on a
// cron schedule.
type Scheduler struct {
	spec           string
	cron           *cron.Cron
	transactions   TransactionLister
	reimbursements ReimbursementLister
	notifier       Notifier
	log            *logger.Logger
	now            func() time.Time
	timeout        time.Duration
}

type SchedulerOption func(*Scheduler)

func WithSchedulerLogger(log *logger.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler validates spec (standard 5-field cron, or DefaultDigestSpec
// when empty) and prepares the job. Call Start to run it.
func NewScheduler(spec string, txs TransactionLister, reqs ReimbursementLister, notifier Notifier, opts ...SchedulerOption) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultDigestSpec
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("parse digest schedule %q: %w", spec, err)
	}

	s := &Scheduler{
		spec:           spec,
		transactions:   txs,
		reimbursements: reqs,
		notifier:       notifier,
		log:            logger.NewDefault("reports"),
		now:            time.Now,
		timeout:        time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}

	cronLog := cron.PrintfLogger(s.log)
	s.cron = cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)))
	if _, err := s.cron.AddJob(spec, s.job()); err != nil {
		return nil, fmt.Errorf("schedule digest: %w", err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.log.WithField("spec", s.spec).Info("report scheduler started")
	s.cron.Start()
}

// Stop halts scheduling and returns a context done when a running job ends.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) job() cron.Job {
	return cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if _, err := s.RunOnce(ctx); err != nil {
			s.log.WithError(err).Warn("monthly digest failed")
		}
	})
}

// RunOnce posts the digest for the month before now and returns its figures.
func (s *Scheduler) RunOnce(ctx context.Context) (Summary, error) {
	now := s.now()
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -1, 0).Format("2006-01")

	txs, err := s.transactions.List(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list transactions: %w", err)
	}
	reqs, err := s.reimbursements.List(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list reimbursements: %w", err)
	}

	summary := Summarize(InMonth(txs, month), reqs)
	result := s.notifier.Create(ctx, domain.NewNotification{
		Title: "Rapport mensuel " + month,
		Message: fmt.Sprintf("Entrées : %s€, Sorties : %s€, Solde : %s€, %d remboursement(s) en attente",
			summary.Income.StringFixed(2), summary.Expense.StringFixed(2), summary.Balance.StringFixed(2),
			summary.PendingReimbursements),
		Severity: domain.SeveritySuccess,
	})
	if !result.Delivered {
		return summary, fmt.Errorf("post digest: %w", result.Cause)
	}

	s.log.WithField("month", month).WithField("balance", summary.Balance.StringFixed(2)).Info("monthly digest posted")
	return summary, nil
}
