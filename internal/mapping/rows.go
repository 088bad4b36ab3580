// Package mapping converts between remote rows (snake_case columns, embedded
// member joins) and domain entities.
package mapping

import "github.com/shopspring/decimal"

// UnknownMemberName stands in for a member the join could not resolve.
const UnknownMemberName = "Inconnu"

// MemberRef is the embedded "members(first_name,last_name)" relation.
type MemberRef struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// MemberRow is a row of the members table.
type MemberRow struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id,omitempty"`
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Role       string `json:"role"`
	Status     string `json:"status"`
	Phone      string `json:"phone"`
	Identifier string `json:"identifier"`
	Filiere    string `json:"filiere"`
	Niveau     string `json:"niveau"`
	AvatarURL  string `json:"avatar_url"`
}

// TransactionRow is a row of the transactions table.
type TransactionRow struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Label       string          `json:"label"`
	Description string          `json:"description"`
	Date        string          `json:"date"`
	MemberID    string          `json:"member_id"`
	Status      string          `json:"status"`
	ReceiptURL  string          `json:"receipt_url"`
	Members     *MemberRef      `json:"members,omitempty"`
}

// ReimbursementRow is a row of the reimbursement_requests table.
type ReimbursementRow struct {
	ID            string          `json:"id"`
	MemberID      string          `json:"member_id"`
	Amount        decimal.Decimal `json:"amount"`
	Reason        string          `json:"reason"`
	Status        string          `json:"status"`
	RequestedDate string          `json:"requested_date"`
	CreatedAt     string          `json:"created_at"`
	ReceiptURL    string          `json:"receipt_url"`
	Members       *MemberRef      `json:"members,omitempty"`
}

// MessageRow is a row of the community_messages table.
type MessageRow struct {
	ID            string     `json:"id"`
	AuthorID      string     `json:"author_id"`
	Content       string     `json:"content"`
	CreatedAt     string     `json:"created_at"`
	AttachmentURL string     `json:"attachment_url"`
	Members       *MemberRef `json:"members,omitempty"`
}

// SettingsRow is the single row of the app_settings table.
type SettingsRow struct {
	ID           string `json:"id"`
	AppName      string `json:"app_name"`
	PrimaryColor string `json:"primary_color"`
	LogoURL      string `json:"logo_url"`
}

// NotificationRow is a row of the notifications table.
type NotificationRow struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Date    string `json:"date"`
	Read    bool   `json:"read"`
	Type    string `json:"type"`
}

// =============================================================================
// Write rows
// =============================================================================

// MemberInsertRow is the body of an administrative member creation.
type MemberInsertRow struct {
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Role       string `json:"role"`
	Status     string `json:"status"`
	Phone      string `json:"phone,omitempty"`
	Identifier string `json:"identifier,omitempty"`
	Filiere    string `json:"filiere,omitempty"`
	Niveau     string `json:"niveau,omitempty"`
	AvatarURL  string `json:"avatar_url,omitempty"`
}

// TransactionInsertRow is the body of a transaction insert.
type TransactionInsertRow struct {
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Label       string          `json:"label"`
	Description string          `json:"description,omitempty"`
	Date        string          `json:"date"`
	MemberID    string          `json:"member_id"`
	Status      string          `json:"status"`
	ReceiptURL  string          `json:"receipt_url,omitempty"`
}

// ReimbursementInsertRow is the body of a reimbursement request insert.
type ReimbursementInsertRow struct {
	MemberID      string          `json:"member_id"`
	Amount        decimal.Decimal `json:"amount"`
	Reason        string          `json:"reason"`
	RequestedDate string          `json:"requested_date"`
	Status        string          `json:"status"`
	ReceiptURL    string          `json:"receipt_url,omitempty"`
}

// MessageInsertRow is the body of a message insert.
type MessageInsertRow struct {
	AuthorID      string `json:"author_id"`
	Content       string `json:"content"`
	CreatedAt     string `json:"created_at,omitempty"`
	AttachmentURL string `json:"attachment_url,omitempty"`
}

// NotificationInsertRow is the body of a notification insert.
type NotificationInsertRow struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Type    string `json:"type"`
	Read    bool   `json:"read"`
	Date    string `json:"date"`
}
