package mapping

import (
	"strings"
	"time"

	"github.com/sas-finance/service_layer/internal/domain"
)

// isoMillis matches the timestamps the web client writes (Date.toISOString).
const isoMillis = "2006-01-02T15:04:05.000Z"

// MemberName renders a joined member, or UnknownMemberName when the join is empty.
func MemberName(ref *MemberRef) string {
	if ref == nil {
		return UnknownMemberName
	}
	name := strings.TrimSpace(ref.FirstName + " " + ref.LastName)
	if name == "" {
		return UnknownMemberName
	}
	return name
}

// =============================================================================
// Reads
// =============================================================================

// MemberToDomain maps a members row. Missing role and status default to Regular and active.
func MemberToDomain(row MemberRow) domain.Member {
	role := domain.Role(row.Role)
	if role == "" {
		role = domain.RoleRegular
	}
	status := domain.MemberStatus(row.Status)
	if status == "" {
		status = domain.MemberActive
	}
	return domain.Member{
		ID:         row.ID,
		Email:      row.Email,
		FirstName:  row.FirstName,
		LastName:   row.LastName,
		Role:       role,
		Status:     status,
		Phone:      row.Phone,
		Identifier: row.Identifier,
		Program:    row.Filiere,
		Level:      row.Niveau,
		AvatarURL:  row.AvatarURL,
	}
}

func TransactionToDomain(row TransactionRow) domain.Transaction {
	return domain.Transaction{
		ID:          row.ID,
		Direction:   domain.Direction(row.Type),
		Amount:      row.Amount,
		Category:    row.Category,
		Label:       row.Label,
		Description: row.Description,
		Date:        row.Date,
		MemberID:    row.MemberID,
		MemberName:  MemberName(row.Members),
		Status:      domain.TransactionStatus(row.Status),
		ReceiptURL:  row.ReceiptURL,
	}
}

// ReimbursementToDomain maps a request; its date is requested_date, else created_at.
func ReimbursementToDomain(row ReimbursementRow) domain.ReimbursementRequest {
	date := row.RequestedDate
	if date == "" {
		date = row.CreatedAt
	}
	return domain.ReimbursementRequest{
		ID:         row.ID,
		MemberID:   row.MemberID,
		MemberName: MemberName(row.Members),
		Amount:     row.Amount,
		Reason:     row.Reason,
		Status:     domain.ReimbursementStatus(row.Status),
		Date:       date,
		ReceiptURL: row.ReceiptURL,
	}
}

func MessageToDomain(row MessageRow) domain.CommunityMessage {
	return domain.CommunityMessage{
		ID:            row.ID,
		AuthorID:      row.AuthorID,
		AuthorName:    MemberName(row.Members),
		Content:       row.Content,
		Date:          row.CreatedAt,
		AttachmentURL: row.AttachmentURL,
	}
}

// SettingsToDomain maps the settings row. Blank name or color fall back to the defaults.
func SettingsToDomain(row SettingsRow) domain.AppSettings {
	out := domain.AppSettings{
		AppName:      row.AppName,
		PrimaryColor: row.PrimaryColor,
		LogoURL:      row.LogoURL,
	}
	if out.AppName == "" {
		out.AppName = domain.DefaultAppName
	}
	if out.PrimaryColor == "" {
		out.PrimaryColor = domain.DefaultPrimaryColor
	}
	return out
}

func NotificationToDomain(row NotificationRow) domain.Notification {
	return domain.Notification{
		ID:       row.ID,
		Title:    row.Title,
		Message:  row.Message,
		Date:     row.Date,
		Read:     row.Read,
		Severity: domain.Severity(row.Type),
	}
}

// =============================================================================
// Writes
// =============================================================================

func MemberInsert(m domain.Member) MemberInsertRow {
	role := m.Role
	if role == "" {
		role = domain.RoleRegular
	}
	status := m.Status
	if status == "" {
		status = domain.MemberActive
	}
	return MemberInsertRow{
		Email:      m.Email,
		FirstName:  m.FirstName,
		LastName:   m.LastName,
		Role:       string(role),
		Status:     string(status),
		Phone:      m.Phone,
		Identifier: m.Identifier,
		Filiere:    m.Program,
		Niveau:     m.Level,
		AvatarURL:  m.AvatarURL,
	}
}

// MemberPatch returns only the columns p sets.
func MemberPatch(p domain.MemberPatch) map[string]any {
	out := make(map[string]any)
	setIf(out, "first_name", p.FirstName)
	setIf(out, "last_name", p.LastName)
	setIf(out, "role", string(p.Role))
	setIf(out, "status", string(p.Status))
	setIf(out, "phone", p.Phone)
	setIf(out, "identifier", p.Identifier)
	setIf(out, "filiere", p.Program)
	setIf(out, "niveau", p.Level)
	setIf(out, "avatar_url", p.AvatarURL)
	return out
}

func TransactionInsert(n domain.NewTransaction) TransactionInsertRow {
	return TransactionInsertRow{
		Type:        string(n.Direction),
		Amount:      n.Amount,
		Category:    n.Category,
		Label:       n.Label,
		Description: n.Description,
		Date:        n.Date,
		MemberID:    n.MemberID,
		Status:      string(n.Status),
		ReceiptURL:  n.ReceiptURL,
	}
}

// ReimbursementInsert always writes a pending request.
func ReimbursementInsert(n domain.NewReimbursement) ReimbursementInsertRow {
	return ReimbursementInsertRow{
		MemberID:      n.MemberID,
		Amount:        n.Amount,
		Reason:        n.Reason,
		RequestedDate: n.Date,
		Status:        string(domain.ReimbursementPending),
		ReceiptURL:    n.ReceiptURL,
	}
}

func MessageInsert(n domain.NewMessage) MessageInsertRow {
	return MessageInsertRow{
		AuthorID:      n.AuthorID,
		Content:       n.Content,
		CreatedAt:     n.Date,
		AttachmentURL: n.AttachmentURL,
	}
}

// SettingsPatch returns only the columns p sets.
func SettingsPatch(p domain.SettingsPatch) map[string]any {
	out := make(map[string]any)
	setIf(out, "app_name", p.AppName)
	setIf(out, "primary_color", p.PrimaryColor)
	setIf(out, "logo_url", p.LogoURL)
	return out
}

// NotificationInsert writes an unread notification stamped at now.
func NotificationInsert(n domain.NewNotification, now time.Time) NotificationInsertRow {
	severity := n.Severity
	if severity == "" {
		severity = domain.SeverityInfo
	}
	return NotificationInsertRow{
		Title:   n.Title,
		Message: n.Message,
		Type:    string(severity),
		Read:    false,
		Date:    now.UTC().Format(isoMillis),
	}
}

func setIf(row map[string]any, column, value string) {
	if value != "" {
		row[column] = value
	}
}
