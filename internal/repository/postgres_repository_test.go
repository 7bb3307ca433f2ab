package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"github.com/prohmpiriya/eventdesk/migrations"
	"github.com/prohmpiriya/eventdesk/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func skipIfNoIntegration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run.")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func setupTestDB(t *testing.T) *database.PostgresDB {
	ctx := context.Background()

	cfg := database.DefaultPostgresConfig()
	cfg.Host = getEnv("TEST_POSTGRES_HOST", "localhost")
	cfg.User = getEnv("TEST_POSTGRES_USER", "postgres")
	cfg.Password = getEnv("TEST_POSTGRES_PASSWORD", "postgres")
	cfg.Database = getEnv("TEST_POSTGRES_DATABASE", "eventdesk_test")
	cfg.MaxConns = 5
	cfg.MinConns = 1

	db, err := database.NewPostgres(ctx, cfg)
	require.NoError(t, err, "connect to test database")
	t.Cleanup(db.Close)

	_, err = db.Migrate(ctx, migrations.FS)
	require.NoError(t, err, "apply migrations")
	return db
}

func createTestTenant(t *testing.T, db *database.PostgresDB) *domain.Tenant {
	now := time.Now()
	slug := "test-" + strconv.FormatInt(now.UnixNano(), 36)
	tenant := &domain.Tenant{
		ID:              uuid.New().String(),
		Name:            "Test Tenant",
		Slug:            slug,
		Settings:        map[string]interface{}{},
		IsActive:        true,
		FinanceMode:     domain.FinanceModeLegacy,
		DefaultCurrency: "INR",
		InvoicePrefix:   domain.DefaultInvoicePrefix(slug),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, NewPostgresTenantRepository(db).Create(context.Background(), tenant))
	return tenant
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, isUniqueViolation(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23505"})))
	assert.True(t, isUniqueViolation(gorm.ErrDuplicatedKey))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
	assert.False(t, isUniqueViolation(nil))
}

func TestNullStringOrValue(t *testing.T) {
	assert.Nil(t, nullStringOrValue(""))
	assert.Equal(t, "x", nullStringOrValue("x"))
}

func TestPostgresTenantRepository_FinanceMode_Integration(t *testing.T) {
	skipIfNoIntegration(t)
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewPostgresTenantRepository(db)
	tenant := createTestTenant(t, db)

	require.NoError(t, tenant.MigrateFinanceMode(domain.FinanceModeTenant, time.Now()))
	require.NoError(t, repo.UpdateFinanceMode(ctx, tenant))

	found, err := repo.GetBySlug(ctx, tenant.Slug)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, domain.FinanceModeTenant, found.FinanceMode)
	assert.NotNil(t, found.FinanceModeChangedAt)

	// A second switch must not pass the one-way guard
	err = repo.UpdateFinanceMode(ctx, tenant)
	assert.ErrorIs(t, err, ErrNotUpdated)

	require.NoError(t, repo.CreateFinanceModeMigration(ctx, &domain.FinanceModeMigration{
		ID:        uuid.New().String(),
		TenantID:  tenant.ID,
		FromMode:  domain.FinanceModeLegacy,
		ToMode:    domain.FinanceModeTenant,
		Checks:    []string{"default_tax_structure"},
		CreatedAt: time.Now(),
	}))
	history, err := repo.ListFinanceModeMigrations(ctx, tenant.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, []string{"default_tax_structure"}, history[0].Checks)
}

func TestPostgresPaymentRepository_UpsertByGatewayID_Integration(t *testing.T) {
	skipIfNoIntegration(t)
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewPostgresPaymentRepository(db)
	tenant := createTestTenant(t, db)

	gwID := "pi_test_" + uuid.New().String()
	first, err := domain.NewPaymentRecord(tenant.ID, domain.GatewayStripe, gwID, 5000, "INR")
	require.NoError(t, err)

	var stored *domain.PaymentRecord
	var created bool
	err = db.WithinTx(ctx, func(ctx context.Context) error {
		stored, created, err = repo.UpsertByGatewayID(ctx, first)
		return err
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, first.ID, stored.ID)

	second, err := domain.NewPaymentRecord(tenant.ID, domain.GatewayStripe, gwID, 5000, "INR")
	require.NoError(t, err)
	err = db.WithinTx(ctx, func(ctx context.Context) error {
		stored, created, err = repo.UpsertByGatewayID(ctx, second)
		return err
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, stored.ID, "replay resolves to the original record")

	refund := domain.NewRefund(stored, "re_"+gwID, 1000, "requested")
	ok, err := repo.CreateRefund(ctx, refund)
	require.NoError(t, err)
	assert.True(t, ok)

	refund.ID = uuid.New().String()
	ok, err = repo.CreateRefund(ctx, refund)
	require.NoError(t, err)
	assert.False(t, ok, "gateway refund ids are recorded once")
}

func TestPostgresWebhookLogRepository_Record_Integration(t *testing.T) {
	skipIfNoIntegration(t)
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewPostgresWebhookLogRepository(db)

	eventID := "evt_" + uuid.New().String()
	log1 := domain.NewWebhookLog(domain.GatewayStripe, eventID, "payment_intent.succeeded", []byte(`{"id":"x"}`))
	stored, inserted, err := repo.Record(ctx, log1)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.False(t, stored.Processed)

	stored.MarkFailed(errors.New("tenant lookup failed"))
	require.NoError(t, repo.MarkFailed(ctx, stored))

	log2 := domain.NewWebhookLog(domain.GatewayStripe, eventID, "payment_intent.succeeded", []byte(`{"id":"x"}`))
	again, inserted, err := repo.Record(ctx, log2)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, log1.ID, again.ID)
	assert.Equal(t, 1, again.Attempts)
	assert.Equal(t, "tenant lookup failed", again.LastError)

	again.MarkProcessed("applied", time.Now())
	require.NoError(t, repo.MarkProcessed(ctx, again))

	processed := false
	logs, _, err := repo.List(ctx, &dto.WebhookLogFilter{Gateway: "stripe", Processed: &processed})
	require.NoError(t, err)
	for _, l := range logs {
		assert.NotEqual(t, log1.ID, l.ID)
	}
}

func TestPostgresInvoiceRepository_Sequences_Integration(t *testing.T) {
	skipIfNoIntegration(t)
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewPostgresInvoiceRepository(db)
	tenant := createTestTenant(t, db)

	a, err := repo.NextTenantSequence(ctx, tenant.ID, 2026)
	require.NoError(t, err)
	b, err := repo.NextTenantSequence(ctx, tenant.ID, 2026)
	require.NoError(t, err)
	c, err := repo.NextTenantSequence(ctx, tenant.ID, 2027)
	require.NoError(t, err)
	assert.Equal(t, int64(1), a)
	assert.Equal(t, int64(2), b)
	assert.Equal(t, int64(1), c, "numbering restarts each year")

	l1, err := repo.NextLegacyNumber(ctx)
	require.NoError(t, err)
	l2, err := repo.NextLegacyNumber(ctx)
	require.NoError(t, err)
	assert.Greater(t, l2, l1)
	assert.GreaterOrEqual(t, l1, int64(1000))
}

func TestPostgresInvoiceRepository_RoundTrip_Integration(t *testing.T) {
	skipIfNoIntegration(t)
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewPostgresInvoiceRepository(db)
	tenant := createTestTenant(t, db)

	gst, err := domain.NewTaxStructure(tenant.ID, "GST 18", []domain.TaxComponent{
		{Name: "CGST", RateBps: 900},
		{Name: "SGST", RateBps: 900},
	}, false)
	require.NoError(t, err)

	inv, err := domain.NewInvoice(tenant.ID, domain.FinanceModeTenant, domain.RecipientSponsor, uuid.New().String(), "inr",
		[]domain.LineItem{{Description: "Gold sponsorship", Quantity: 1, UnitPrice: 100000}}, gst)
	require.NoError(t, err)
	inv.BillToName = "Sponsor Co"
	inv.BillToEmail = "billing@sponsor.test"
	inv.TaxStructureID = ""
	require.NoError(t, repo.Create(ctx, inv))

	require.NoError(t, inv.Issue(domain.TenantInvoiceNumber(tenant.InvoicePrefix, 2026, 1), nil))
	require.NoError(t, inv.ApplyPayment(50000))
	require.NoError(t, repo.Update(ctx, inv))

	found, err := repo.GetByID(ctx, tenant.ID, inv.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, domain.InvoiceStatusPartiallyPaid, found.Status)
	assert.Equal(t, int64(118000), found.Total)
	require.NotNil(t, found.TaxBreakdown)
	assert.Len(t, found.TaxBreakdown.Lines, 2)

	summary, err := repo.Summary(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), summary.Collected)
	assert.Equal(t, int64(68000), summary.Outstanding)
	assert.Equal(t, int64(1), summary.CountsByStatus[domain.InvoiceStatusPartiallyPaid])
}
