package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRolePredicates(t *testing.T) {
	tests := []struct {
		role        Role
		admin       bool
		manageRoles bool
	}{
		{RoleAdminPrimary, true, true},
		{RoleAdminSecondary, true, false},
		{RoleRegular, false, false},
		{Role("Invité"), false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.admin, tt.role.IsAdmin())
			assert.Equal(t, tt.manageRoles, tt.role.CanManageRoles())
		})
	}
}

func TestReimbursementTransitions(t *testing.T) {
	all := []ReimbursementStatus{ReimbursementPending, ReimbursementApproved, ReimbursementRejected, ReimbursementPaid}
	allowed := map[[2]ReimbursementStatus]bool{
		{ReimbursementPending, ReimbursementApproved}: true,
		{ReimbursementPending, ReimbursementRejected}: true,
		{ReimbursementApproved, ReimbursementPaid}:    true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]ReimbursementStatus{from, to}]
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestCheckTransition_PaidToApproved(t *testing.T) {
	err := ReimbursementPaid.CheckTransition(ReimbursementApproved)

	var te *TransitionError
	assert.True(t, errors.As(err, &te))
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Equal(t, "paid", te.From)
	assert.True(t, ReimbursementPaid.Terminal())
	assert.True(t, ReimbursementRejected.Terminal())
	assert.False(t, ReimbursementApproved.Terminal())
}

func TestErrorTaxonomy(t *testing.T) {
	cause := errors.New("connection refused")

	repoErr := error(&RepositoryError{Op: "list", Table: "transactions", Err: cause})
	assert.ErrorIs(t, repoErr, ErrRepository)
	assert.ErrorIs(t, repoErr, cause)
	assert.Equal(t, "list transactions: connection refused", repoErr.Error())

	authErr := error(&AuthError{Reason: "Invalid login credentials"})
	assert.ErrorIs(t, authErr, ErrAuth)
	assert.Equal(t, "Invalid login credentials", authErr.Error())

	storageErr := error(&StorageError{Bucket: "files", Name: "a.png", Err: cause})
	assert.ErrorIs(t, storageErr, ErrStorage)
	assert.ErrorIs(t, storageErr, cause)
}

func TestNewTransactionValidate(t *testing.T) {
	valid := NewTransaction{
		Direction: Outflow,
		Amount:    decimal.RequireFromString("42.50"),
		Category:  "Matériel",
		Label:     "Cables",
		MemberID:  "m-1",
	}
	assert.NoError(t, valid.Validate())

	negative := valid
	negative.Amount = decimal.NewFromInt(-1)
	assert.ErrorIs(t, negative.Validate(), ErrInvalidAmount)

	badDirection := valid
	badDirection.Direction = "transfer"
	assert.ErrorIs(t, badDirection.Validate(), ErrValidation)

	noOwner := valid
	noOwner.MemberID = ""
	assert.ErrorIs(t, noOwner.Validate(), ErrValidation)
}

func TestSignedAmount(t *testing.T) {
	out := Transaction{Direction: Outflow, Amount: decimal.RequireFromString("10.25")}
	in := Transaction{Direction: Inflow, Amount: decimal.RequireFromString("10.25")}

	assert.Equal(t, "-10.25", out.SignedAmount().String())
	assert.Equal(t, "10.25", in.SignedAmount().String())
}

func TestMemberFullName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", Member{FirstName: "Ada", LastName: "Lovelace"}.FullName())
	assert.Equal(t, "Utilisateur", Member{FirstName: "Utilisateur"}.FullName())
}

func TestDefaultSettings(t *testing.T) {
	assert.Equal(t, AppSettings{AppName: "SAS Finance", PrimaryColor: "#2563eb", LogoURL: ""}, DefaultSettings())
}
