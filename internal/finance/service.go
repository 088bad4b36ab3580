// Package finance implements the association's role-gated actions on top of
// the identity service and the repositories.
package finance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sas-finance/service_layer/internal/domain"
	"github.com/sas-finance/service_layer/internal/repository"
	"github.com/sas-finance/service_layer/pkg/logger"
)

// Identity answers who is signed in.
type Identity interface {
	CurrentIdentity() (*domain.Member, bool)
}

// Repositories groups the collections the service writes to.
type Repositories struct {
	Members        *repository.Members
	Transactions   *repository.Transactions
	Reimbursements *repository.Reimbursements
	Messages       *repository.Messages
	Settings       *repository.Settings
	Notifications  *repository.Notifications
}

// Service is the finance application service.
type Service struct {
	identity Identity
	repos    Repositories
	log      *logger.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithLogger(log *logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(identity Identity, repos Repositories, opts ...Option) *Service {
	s := &Service{
		identity: identity,
		repos:    repos,
		log:      logger.NewDefault("finance"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// Access checks
// =============================================================================

func (s *Service) current() (*domain.Member, error) {
	m, ok := s.identity.CurrentIdentity()
	if !ok {
		return nil, domain.ErrNotAuthenticated
	}
	return m, nil
}

func (s *Service) admin() (*domain.Member, error) {
	m, err := s.current()
	if err != nil {
		return nil, err
	}
	if !m.IsAdmin() {
		return nil, fmt.Errorf("%w: %s is not an administrator", domain.ErrForbidden, m.Role)
	}
	return m, nil
}

func (s *Service) today() string {
	return s.now().Format(time.DateOnly)
}

// =============================================================================
// Transactions
// =============================================================================

// TransactionInput is what a member fills in to record a transaction.
type TransactionInput struct {
	Direction   domain.Direction
	Amount      decimal.Decimal
	Category    string
	Label       string
	Description string
	Date        string
	ReceiptURL  string
}

// RecordTransaction records a transaction owned by the signed-in member.
// Administrators' entries are approved at once; everyone else's start pending.
// A notification announces the entry on a best-effort basis.
func (s *Service) RecordTransaction(ctx context.Context, in TransactionInput) (*domain.Transaction, error) {
	me, err := s.current()
	if err != nil {
		return nil, err
	}

	status := domain.TransactionPending
	if me.IsAdmin() {
		status = domain.TransactionApproved
	}
	date := in.Date
	if date == "" {
		date = s.today()
	}

	tx, err := s.repos.Transactions.Create(ctx, domain.NewTransaction{
		Direction:   in.Direction,
		Amount:      in.Amount,
		Category:    in.Category,
		Label:       in.Label,
		Description: in.Description,
		Date:        date,
		MemberID:    me.ID,
		Status:      status,
		ReceiptURL:  in.ReceiptURL,
	})
	if err != nil {
		return nil, err
	}

	title := "Nouvelle dépense"
	if in.Direction == domain.Inflow {
		title = "Nouvelle entrée"
	}
	s.repos.Notifications.Create(ctx, domain.NewNotification{
		Title:    title,
		Message:  fmt.Sprintf("%s : %s€ ajouté par %s", in.Label, in.Amount.StringFixed(2), me.FirstName),
		Severity: domain.SeverityInfo,
	})
	return tx, nil
}

// ReviewTransaction approves or rejects a pending transaction. Administrators only.
func (s *Service) ReviewTransaction(ctx context.Context, id string, status domain.TransactionStatus) error {
	if _, err := s.admin(); err != nil {
		return err
	}
	return s.repos.Transactions.Review(ctx, id, status)
}

// DeleteTransaction removes a transaction. Administrators only.
func (s *Service) DeleteTransaction(ctx context.Context, id string) error {
	if _, err := s.admin(); err != nil {
		return err
	}
	return s.repos.Transactions.Delete(ctx, id)
}

// MyTransactions lists the signed-in member's transactions.
func (s *Service) MyTransactions(ctx context.Context) ([]domain.Transaction, error) {
	me, err := s.current()
	if err != nil {
		return nil, err
	}
	return s.repos.Transactions.ListByMember(ctx, me.ID)
}

// =============================================================================
// Reimbursements
// =============================================================================

type ReimbursementInput struct {
	Amount     decimal.Decimal
	Reason     string
	Date       string
	ReceiptURL string
}

// SubmitReimbursement files a pending request for the signed-in member.
func (s *Service) SubmitReimbursement(ctx context.Context, in ReimbursementInput) (*domain.ReimbursementRequest, error) {
	me, err := s.current()
	if err != nil {
		return nil, err
	}
	date := in.Date
	if date == "" {
		date = s.today()
	}
	return s.repos.Reimbursements.Create(ctx, domain.NewReimbursement{
		MemberID:   me.ID,
		Amount:     in.Amount,
		Reason:     in.Reason,
		Date:       date,
		ReceiptURL: in.ReceiptURL,
	})
}

// ReviewReimbursement moves a request along its lifecycle. Administrators only.
func (s *Service) ReviewReimbursement(ctx context.Context, id string, status domain.ReimbursementStatus) error {
	reviewer, err := s.admin()
	if err != nil {
		return err
	}
	if err := s.repos.Reimbursements.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	s.log.WithField("reimbursement_id", id).WithField("reviewer_id", reviewer.ID).Info("reimbursement reviewed")
	return nil
}

func (s *Service) MyReimbursements(ctx context.Context) ([]domain.ReimbursementRequest, error) {
	me, err := s.current()
	if err != nil {
		return nil, err
	}
	return s.repos.Reimbursements.ListByMember(ctx, me.ID)
}

// =============================================================================
// Community
// =============================================================================

// PostMessage posts to the board as the signed-in member.
func (s *Service) PostMessage(ctx context.Context, content, attachmentURL string) (*domain.CommunityMessage, error) {
	me, err := s.current()
	if err != nil {
		return nil, err
	}
	return s.repos.Messages.Create(ctx, domain.NewMessage{
		AuthorID:      me.ID,
		Content:       strings.TrimSpace(content),
		Date:          s.now().UTC().Format("2006-01-02T15:04:05.000Z"),
		AttachmentURL: attachmentURL,
	})
}

// =============================================================================
// Members & settings
// =============================================================================

// ChangeMemberRole assigns role to member id. Only the Admin-Primary may do this.
func (s *Service) ChangeMemberRole(ctx context.Context, id string, role domain.Role) (*domain.Member, error) {
	me, err := s.current()
	if err != nil {
		return nil, err
	}
	if !me.Role.CanManageRoles() {
		return nil, fmt.Errorf("%w: only %s can change roles", domain.ErrForbidden, domain.RoleAdminPrimary)
	}
	if !role.Valid() {
		return nil, &domain.ValidationError{Field: "role", Reason: "unknown role"}
	}
	return s.repos.Members.Update(ctx, id, domain.MemberPatch{Role: role})
}

// UpdateProfile edits the signed-in member's own record. Role and status
// cannot be changed this way.
func (s *Service) UpdateProfile(ctx context.Context, patch domain.MemberPatch) (*domain.Member, error) {
	me, err := s.current()
	if err != nil {
		return nil, err
	}
	if patch.Role != "" || patch.Status != "" {
		return nil, fmt.Errorf("%w: role and status are managed by administrators", domain.ErrForbidden)
	}
	return s.repos.Members.Update(ctx, me.ID, patch)
}

// UpdateSettings changes the association's branding. Administrators only.
func (s *Service) UpdateSettings(ctx context.Context, patch domain.SettingsPatch) (domain.AppSettings, error) {
	if _, err := s.admin(); err != nil {
		return domain.AppSettings{}, err
	}
	return s.repos.Settings.Update(ctx, patch)
}
