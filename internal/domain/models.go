// Package domain contains the core entities of the family ledger:
// profiles, transactions, categories, money requests, recurring rules
// and savings goals. All monetary amounts are integers in the currency's
// minor unit (whole dong for VND, cents for USD).
package domain

import "time"

// ============================================================
// Roles & shared constants
// ============================================================

// Profile roles. Owner and Partner are administrative: they can approve
// money requests and see the family-wide dashboard. Members (children)
// can only spend and request.
const (
	RoleOwner   = "owner"
	RolePartner = "partner"
	RoleMember  = "member"
)

// Transaction types.
const (
	TxIncome   = "income"
	TxExpense  = "expense"
	TxTransfer = "transfer"
)

// Transfer directions on a transaction. Set at creation time by the
// settlement engine so the aggregator does not have to guess from notes.
const (
	DirectionGiven    = "given"
	DirectionReceived = "received"
	DirectionNone     = "none"
)

// Money request statuses. PENDING is the only non-terminal state.
const (
	RequestPending  = "PENDING"
	RequestApproved = "APPROVED"
	RequestRejected = "REJECTED"
)

// Recurring rule frequencies.
const (
	FreqMonthly = "MONTHLY"
	FreqYearly  = "YEARLY"
)

// IsAdminRole reports whether the role may approve/reject requests and
// view family-wide aggregates.
func IsAdminRole(role string) bool {
	return role == RoleOwner || role == RolePartner
}

// ============================================================
// Profiles
// ============================================================

// Profile is one family member's identity and budget record.
// Spent is a running counter of the current month's non-transfer expenses;
// it is maintained best-effort via atomic increments and re-aggregated from
// transactions wherever correctness matters.
type Profile struct {
	ID        string    `json:"id"`
	FamilyID  string    `json:"family_id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Limit     int64     `json:"limit"`
	Spent     int64     `json:"spent"`
	PinHash   string    `json:"pin_hash,omitempty"`
	AvatarID  string    `json:"avatar_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// HasPin reports whether the profile is PIN-protected.
func (p *Profile) HasPin() bool { return p.PinHash != "" }

// CreateProfileRequest is the payload for creating a profile.
type CreateProfileRequest struct {
	Name     string `json:"name"`
	Role     string `json:"role"`
	Limit    int64  `json:"limit"`
	Pin      string `json:"pin,omitempty"`
	AvatarID string `json:"avatar_id,omitempty"`
}

// UpdateProfileRequest carries partial profile updates. Nil fields are
// left untouched.
type UpdateProfileRequest struct {
	Name     *string `json:"name,omitempty"`
	Role     *string `json:"role,omitempty"`
	Limit    *int64  `json:"limit,omitempty"`
	Pin      *string `json:"pin,omitempty"`
	AvatarID *string `json:"avatar_id,omitempty"`
}

// ============================================================
// Transactions
// ============================================================

// Transaction is a single ledger entry. Amount is always positive; the
// Type field decides which side of the ledger it lands on. Date is the
// user-facing booking date (YYYY-MM-DD), CreatedAt the write timestamp.
//
// TransferID links the two legs of a settled transfer, RequestID the
// money request a settlement originated from. RecurringRuleID/PeriodKey
// identify a materialized recurring charge and make re-processing
// idempotent. GoalID tags goal contributions and withdrawals.
type Transaction struct {
	ID              string    `json:"id"`
	FamilyID        string    `json:"family_id"`
	ProfileID       string    `json:"profile_id"`
	Amount          int64     `json:"amount"`
	Type            string    `json:"type"`
	Category        string    `json:"category"`
	CategoryIcon    string    `json:"category_icon,omitempty"`
	Note            string    `json:"note,omitempty"`
	Date            string    `json:"date"`
	Direction       string    `json:"direction,omitempty"`
	TransferID      string    `json:"transfer_id,omitempty"`
	RequestID       string    `json:"request_id,omitempty"`
	GoalID          string    `json:"goal_id,omitempty"`
	RecurringRuleID string    `json:"recurring_rule_id,omitempty"`
	PeriodKey       string    `json:"period_key,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// CreateTransactionRequest is the payload for posting a ledger entry.
type CreateTransactionRequest struct {
	ProfileID    string `json:"profile_id"`
	Amount       int64  `json:"amount"`
	Type         string `json:"type"`
	Category     string `json:"category"`
	CategoryIcon string `json:"category_icon,omitempty"`
	Note         string `json:"note,omitempty"`
	Date         string `json:"date"`
	GoalID       string `json:"goal_id,omitempty"`
	// SaveAnyway acknowledges a WARNING/CRITICAL budget check.
	SaveAnyway bool `json:"save_anyway,omitempty"`
}

// UpdateTransactionRequest carries an edit. Amount/category edits reverse
// the old aggregate effect and apply the new one.
type UpdateTransactionRequest struct {
	Amount       *int64  `json:"amount,omitempty"`
	Category     *string `json:"category,omitempty"`
	CategoryIcon *string `json:"category_icon,omitempty"`
	Note         *string `json:"note,omitempty"`
	Date         *string `json:"date,omitempty"`
}

// ============================================================
// Categories
// ============================================================

// SharedWithAll is the sentinel meaning a category is visible to every
// profile in the family.
const SharedWithAll = "ALL"

// Category is a user-defined spending/income bucket. Visibility is a
// plain set-membership check on SharedWith.
type Category struct {
	ID         string   `json:"id"`
	FamilyID   string   `json:"family_id"`
	Name       string   `json:"name"`
	Icon       string   `json:"icon,omitempty"`
	Type       string   `json:"type"` // expense | income
	OwnerID    string   `json:"owner_id,omitempty"`
	SharedWith []string `json:"shared_with"`
}

// VisibleTo reports whether the category is visible to the given profile.
func (c *Category) VisibleTo(profileID string) bool {
	if c.OwnerID == profileID {
		return true
	}
	for _, id := range c.SharedWith {
		if id == SharedWithAll || id == profileID {
			return true
		}
	}
	return false
}

// ============================================================
// Money requests
// ============================================================

// MoneyRequest is a member asking an admin for money. Terminal states
// are APPROVED (settlement executed) and REJECTED.
type MoneyRequest struct {
	ID           string    `json:"id"`
	FamilyID     string    `json:"family_id"`
	CreatedBy    string    `json:"created_by"`
	Amount       int64     `json:"amount"`
	Reason       string    `json:"reason,omitempty"`
	Category     string    `json:"category,omitempty"`
	Status       string    `json:"status"`
	RejectReason string    `json:"reject_reason,omitempty"`
	DecidedBy    string    `json:"decided_by,omitempty"`
	DecidedAt    string    `json:"decided_at,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateRequestRequest is the payload for opening a money request.
type CreateRequestRequest struct {
	ProfileID string `json:"profile_id"`
	Amount    int64  `json:"amount"`
	Reason    string `json:"reason,omitempty"`
	Category  string `json:"category,omitempty"`
}

// DecideRequestRequest identifies the acting profile for approve/reject.
type DecideRequestRequest struct {
	ProfileID string `json:"profile_id"`
	Reason    string `json:"reason,omitempty"` // reject only
}

// ============================================================
// Recurring rules
// ============================================================

// RecurringRule is a subscription-like template that materializes one
// transaction per period. EndDate empty means the rule runs forever.
type RecurringRule struct {
	ID           string    `json:"id"`
	FamilyID     string    `json:"family_id"`
	ProfileID    string    `json:"profile_id"`
	Name         string    `json:"name"`
	Amount       int64     `json:"amount"`
	Type         string    `json:"type"`
	Frequency    string    `json:"frequency"`
	StartDate    string    `json:"start_date"`
	EndDate      string    `json:"end_date,omitempty"`
	Category     string    `json:"category,omitempty"`
	CategoryIcon string    `json:"category_icon,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateRecurringRequest is the payload for creating a recurring rule.
type CreateRecurringRequest struct {
	ProfileID    string `json:"profile_id"`
	Name         string `json:"name"`
	Amount       int64  `json:"amount"`
	Type         string `json:"type"`
	Frequency    string `json:"frequency"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date,omitempty"`
	Category     string `json:"category,omitempty"`
	CategoryIcon string `json:"category_icon,omitempty"`
}

// ============================================================
// Goals
// ============================================================

// Goal is an earmarked sub-balance with a target. CurrentAmount moves
// only through contribute/withdraw (and ledger edits of goal-tagged
// transactions).
type Goal struct {
	ID            string    `json:"id"`
	FamilyID      string    `json:"family_id"`
	OwnerID       string    `json:"owner_id"`
	Name          string    `json:"name"`
	Icon          string    `json:"icon,omitempty"`
	TargetAmount  int64     `json:"target_amount"`
	CurrentAmount int64     `json:"current_amount"`
	SharedWith    []string  `json:"shared_with"`
	CreatedAt     time.Time `json:"created_at"`
}

// CreateGoalRequest is the payload for creating a goal.
type CreateGoalRequest struct {
	OwnerID      string   `json:"owner_id"`
	Name         string   `json:"name"`
	Icon         string   `json:"icon,omitempty"`
	TargetAmount int64    `json:"target_amount"`
	SharedWith   []string `json:"shared_with,omitempty"`
}

// GoalMovementRequest is the payload for contribute/withdraw.
type GoalMovementRequest struct {
	ProfileID string `json:"profile_id"`
	Amount    int64  `json:"amount"`
	Note      string `json:"note,omitempty"`
}

// ============================================================
// Transfers
// ============================================================

// TransferRequest is the payload for a direct profile-to-profile transfer.
type TransferRequest struct {
	FromProfileID string `json:"from_profile_id"`
	ToProfileID   string `json:"to_profile_id"`
	Amount        int64  `json:"amount"`
	Category      string `json:"category,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// TransferResult reports the two legs of a settled transfer.
type TransferResult struct {
	TransferID string       `json:"transfer_id"`
	Debit      *Transaction `json:"debit"`
	Credit     *Transaction `json:"credit"`
}

// ============================================================
// Family account, settings & auth
// ============================================================

// FamilyAccount is the top-level tenant: one login shared by the family.
type FamilyAccount struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"password_hash,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// FamilySettings holds display preferences shared across devices.
type FamilySettings struct {
	FamilyID string `json:"family_id"`
	Currency string `json:"currency"` // VND | USD
	Language string `json:"language"` // en | vi
	// HiddenProfiles lists profile IDs with the "hide sensitive
	// amounts" toggle enabled.
	HiddenProfiles []string `json:"hidden_profiles,omitempty"`
}

// AuthRefreshToken is a stored (hashed) refresh token.
type AuthRefreshToken struct {
	ID        string    `json:"id"`
	FamilyID  string    `json:"family_id"`
	TokenHash string    `json:"token_hash"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
}

// RegisterRequest creates a family account plus its owner profile.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Name      string `json:"name"`
	OwnerName string `json:"owner_name"`
}

// LoginRequest authenticates a family account.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the session tokens.
type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	FamilyID     string `json:"family_id"`
	FamilyName   string `json:"family_name,omitempty"`
}

// RefreshRequest rotates a refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// VerifyPinRequest checks a profile's PIN.
type VerifyPinRequest struct {
	Pin string `json:"pin"`
}
