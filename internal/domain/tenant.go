package domain

import (
	"regexp"
	"strings"
	"time"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// ValidSlug reports whether s is a lowercase URL slug
func ValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// FinanceMode selects how a tenant computes tax and numbers invoices
type FinanceMode string

const (
	// FinanceModeLegacy uses a flat tax rate and the global invoice sequence
	FinanceModeLegacy FinanceMode = "legacy"
	// FinanceModeTenant uses tenant tax structures and per-tenant numbering
	FinanceModeTenant FinanceMode = "tenant"
)

// IsValid reports whether m is a known mode
func (m FinanceMode) IsValid() bool {
	return m == FinanceModeLegacy || m == FinanceModeTenant
}

// ParseFinanceMode parses a mode name
func ParseFinanceMode(s string) (FinanceMode, error) {
	m := FinanceMode(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", ErrInvalidFinanceMode
	}
	return m, nil
}

// Tenant represents an event-management company in the multi-tenant system
type Tenant struct {
	ID                   string                 `json:"id"`
	Name                 string                 `json:"name"`
	Slug                 string                 `json:"slug"`
	Domain               string                 `json:"domain,omitempty"`
	LogoURL              string                 `json:"logo_url,omitempty"`
	Settings             map[string]interface{} `json:"settings,omitempty"`
	IsActive             bool                   `json:"is_active"`
	FinanceMode          FinanceMode            `json:"finance_mode"`
	FinanceModeChangedAt *time.Time             `json:"finance_mode_changed_at,omitempty"`
	DefaultCurrency      string                 `json:"default_currency"`
	InvoicePrefix        string                 `json:"invoice_prefix"`
	LegacyTaxRateBps     int64                  `json:"legacy_tax_rate_bps"`
	Locale               string                 `json:"locale,omitempty"`
	CreatedAt            time.Time              `json:"created_at"`
	UpdatedAt            time.Time              `json:"updated_at"`
	DeletedAt            *time.Time             `json:"deleted_at,omitempty"`
}

// DefaultInvoicePrefix derives an invoice prefix from a slug: "acme-events" -> "ACME"
func DefaultInvoicePrefix(slug string) string {
	head, _, _ := strings.Cut(slug, "-")
	head = strings.ToUpper(head)
	if len(head) > 8 {
		head = head[:8]
	}
	if head == "" {
		return "INV"
	}
	return head
}

// CanMigrateTo checks the direction of a finance mode change
func (t *Tenant) CanMigrateTo(target FinanceMode) error {
	if !target.IsValid() {
		return ErrInvalidFinanceMode
	}
	if t.FinanceMode == target {
		return ErrFinanceModeUnchanged
	}
	if t.FinanceMode == FinanceModeTenant && target == FinanceModeLegacy {
		return ErrFinanceModeIrreversible
	}
	return nil
}

// MigrateFinanceMode switches the tenant to target, enforcing legacy -> tenant only
func (t *Tenant) MigrateFinanceMode(target FinanceMode, at time.Time) error {
	if err := t.CanMigrateTo(target); err != nil {
		return err
	}
	t.FinanceMode = target
	t.FinanceModeChangedAt = &at
	t.UpdatedAt = at
	return nil
}

// FinanceModeMigration records a completed finance mode change
type FinanceModeMigration struct {
	ID        string      `json:"id"`
	TenantID  string      `json:"tenant_id"`
	FromMode  FinanceMode `json:"from_mode"`
	ToMode    FinanceMode `json:"to_mode"`
	ActorID   string      `json:"actor_id,omitempty"`
	Checks    []string    `json:"checks"`
	CreatedAt time.Time   `json:"created_at"`
}

// Role is a user's permission level
type Role string

const (
	RoleSuperAdmin  Role = "super_admin"
	RoleTenantAdmin Role = "tenant_admin"
	RoleFinance     Role = "finance"
	RoleStaff       Role = "staff"
)

// IsValid reports whether r is a known role
func (r Role) IsValid() bool {
	switch r {
	case RoleSuperAdmin, RoleTenantAdmin, RoleFinance, RoleStaff:
		return true
	}
	return false
}

// User is an operator account. Super admins have no tenant.
type User struct {
	ID           string     `json:"id"`
	TenantID     string     `json:"tenant_id,omitempty"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Name         string     `json:"name"`
	Role         Role       `json:"role"`
	IsActive     bool       `json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NormalizeEmail trims and lower-cases an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
