package dto

import (
	"time"

	"github.com/prohmpiriya/eventdesk/internal/domain"
)

// CreateTenantRequest represents request to create a new tenant (event company)
type CreateTenantRequest struct {
	Name             string                 `json:"name" binding:"required,min=2,max=255"`
	Slug             string                 `json:"slug" binding:"required,min=2,max=100"`
	Domain           string                 `json:"domain" binding:"omitempty,max=255"`
	LogoURL          string                 `json:"logo_url" binding:"omitempty,url"`
	Settings         map[string]interface{} `json:"settings" binding:"omitempty"`
	DefaultCurrency  string                 `json:"default_currency" binding:"omitempty,len=3"`
	InvoicePrefix    string                 `json:"invoice_prefix" binding:"omitempty,max=12,alphanum"`
	LegacyTaxRateBps int64                  `json:"legacy_tax_rate_bps" binding:"omitempty,min=0,max=10000"`
	Locale           string                 `json:"locale" binding:"omitempty,max=20"`
}

// ValidateSlug validates slug format (lowercase alphanumeric and hyphens only)
func (r *CreateTenantRequest) ValidateSlug() (bool, string) {
	if !domain.ValidSlug(r.Slug) {
		return false, "Slug must contain only lowercase letters, numbers, and hyphens"
	}
	return true, ""
}

// UpdateTenantRequest represents request to update tenant information
type UpdateTenantRequest struct {
	Name             *string                 `json:"name" binding:"omitempty,min=2,max=255"`
	Domain           *string                 `json:"domain" binding:"omitempty,max=255"`
	LogoURL          *string                 `json:"logo_url" binding:"omitempty,url"`
	Settings         *map[string]interface{} `json:"settings" binding:"omitempty"`
	IsActive         *bool                   `json:"is_active" binding:"omitempty"`
	InvoicePrefix    *string                 `json:"invoice_prefix" binding:"omitempty,max=12,alphanum"`
	LegacyTaxRateBps *int64                  `json:"legacy_tax_rate_bps" binding:"omitempty,min=0,max=10000"`
	Locale           *string                 `json:"locale" binding:"omitempty,max=20"`
}

// Validate validates that at least one field is provided for update
func (r *UpdateTenantRequest) Validate() (bool, string) {
	if r.Name == nil && r.Domain == nil && r.LogoURL == nil && r.Settings == nil && r.IsActive == nil &&
		r.InvoicePrefix == nil && r.LegacyTaxRateBps == nil && r.Locale == nil {
		return false, "At least one field must be provided for update"
	}
	return true, ""
}

// TenantListFilter is bound from GET /tenants query parameters
type TenantListFilter struct {
	Pagination
	IsActive *bool  `form:"is_active"`
	Search   string `form:"search"`
}

// TenantResponse represents tenant data in response
type TenantResponse struct {
	ID                   string                 `json:"id"`
	Name                 string                 `json:"name"`
	Slug                 string                 `json:"slug"`
	Domain               string                 `json:"domain,omitempty"`
	LogoURL              string                 `json:"logo_url,omitempty"`
	Settings             map[string]interface{} `json:"settings,omitempty"`
	IsActive             bool                   `json:"is_active"`
	FinanceMode          domain.FinanceMode     `json:"finance_mode"`
	FinanceModeChangedAt string                 `json:"finance_mode_changed_at,omitempty"`
	DefaultCurrency      string                 `json:"default_currency"`
	InvoicePrefix        string                 `json:"invoice_prefix"`
	Locale               string                 `json:"locale,omitempty"`
	CreatedAt            string                 `json:"created_at"`
	UpdatedAt            string                 `json:"updated_at"`
}

// FromTenant converts a domain Tenant to TenantResponse
func FromTenant(t *domain.Tenant) *TenantResponse {
	resp := &TenantResponse{
		ID:              t.ID,
		Name:            t.Name,
		Slug:            t.Slug,
		Domain:          t.Domain,
		LogoURL:         t.LogoURL,
		Settings:        t.Settings,
		IsActive:        t.IsActive,
		FinanceMode:     t.FinanceMode,
		DefaultCurrency: t.DefaultCurrency,
		InvoicePrefix:   t.InvoicePrefix,
		Locale:          t.Locale,
		CreatedAt:       t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       t.UpdatedAt.Format(time.RFC3339),
	}
	if t.FinanceModeChangedAt != nil {
		resp.FinanceModeChangedAt = t.FinanceModeChangedAt.Format(time.RFC3339)
	}
	return resp
}

// FromTenants converts a slice of tenants
func FromTenants(tenants []*domain.Tenant) []*TenantResponse {
	out := make([]*TenantResponse, 0, len(tenants))
	for _, t := range tenants {
		out = append(out, FromTenant(t))
	}
	return out
}

// LoginRequest authenticates an operator
type LoginRequest struct {
	Email    string `json:"email" form:"email" binding:"required,email"`
	Password string `json:"password" form:"password" binding:"required,min=8"`
}

// LoginResponse carries the access token
type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        *domain.User `json:"user"`
}

// CreateUserRequest creates an operator in the caller's tenant
type CreateUserRequest struct {
	Email    string      `json:"email" binding:"required,email"`
	Password string      `json:"password" binding:"required,min=8,max=72"`
	Name     string      `json:"name" binding:"required,min=2,max=255"`
	Role     domain.Role `json:"role" binding:"required,oneof=tenant_admin finance staff"`
}

// FinanceModeResponse describes a tenant's current finance mode
type FinanceModeResponse struct {
	TenantID  string             `json:"tenant_id"`
	Mode      domain.FinanceMode `json:"mode"`
	ChangedAt *time.Time         `json:"changed_at,omitempty"`
}

// MigrateFinanceModeRequest requests the legacy -> tenant migration
type MigrateFinanceModeRequest struct {
	DryRun bool `json:"dry_run"`
}

// FinanceModeCheck is one precondition evaluated by the migration gate
type FinanceModeCheck struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

// MigrationReport is the outcome of a finance mode migration or dry run
type MigrationReport struct {
	TenantID  string                       `json:"tenant_id"`
	FromMode  domain.FinanceMode           `json:"from_mode"`
	ToMode    domain.FinanceMode           `json:"to_mode"`
	DryRun    bool                         `json:"dry_run"`
	Migrated  bool                         `json:"migrated"`
	Checks    []FinanceModeCheck           `json:"checks"`
	Migration *domain.FinanceModeMigration `json:"migration,omitempty"`
}

// Passed reports whether every check passed
func (r *MigrationReport) Passed() bool {
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

// FailedChecks returns the names of failed checks
func (r *MigrationReport) FailedChecks() []string {
	var out []string
	for _, c := range r.Checks {
		if !c.Passed {
			out = append(out, c.Name)
		}
	}
	return out
}
