package config

import (
	"os"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		App:      AppConfig{Name: "test", Environment: "development"},
		Server:   ServerConfig{Port: 8080},
		Database: DatabaseConfig{Host: "localhost", DBName: "eventdesk"},
		JWT:      JWTConfig{Secret: "secret"},
		Finance:  FinanceConfig{DefaultMode: "legacy"},
	}
}

func TestLoad_WithDefaults(t *testing.T) {
	for _, v := range []string{
		"APP_NAME", "APP_ENVIRONMENT", "SERVER_PORT", "DATABASE_HOST", "DATABASE_DBNAME",
		"REDIS_PORT", "JWT_SECRET", "FINANCE_DEFAULT_MODE", "FINANCE_DEFAULT_CURRENCY",
		"KAFKA_BROKERS", "STRIPE_ENABLED", "RAZORPAY_ENABLED",
	} {
		os.Unsetenv(v)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.App.Name != "eventdesk" {
		t.Errorf("App.Name = %q, want %q", cfg.App.Name, "eventdesk")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("Database.Port = %d, want %d", cfg.Database.Port, 5432)
	}
	if cfg.Redis.Port != 6379 {
		t.Errorf("Redis.Port = %d, want %d", cfg.Redis.Port, 6379)
	}
	if cfg.Finance.DefaultMode != "legacy" {
		t.Errorf("Finance.DefaultMode = %q, want legacy", cfg.Finance.DefaultMode)
	}
	if cfg.Finance.DefaultCurrency != "INR" {
		t.Errorf("Finance.DefaultCurrency = %q, want INR", cfg.Finance.DefaultCurrency)
	}
	if cfg.Finance.WebhookLockTTL != 60*time.Second {
		t.Errorf("Finance.WebhookLockTTL = %v, want 60s", cfg.Finance.WebhookLockTTL)
	}
	if cfg.Finance.WebhookMaxBodyBytes != 1<<20 {
		t.Errorf("Finance.WebhookMaxBodyBytes = %d, want %d", cfg.Finance.WebhookMaxBodyBytes, 1<<20)
	}
	if cfg.Finance.PendingRegistrationTTL != 30*time.Minute {
		t.Errorf("Finance.PendingRegistrationTTL = %v, want 30m", cfg.Finance.PendingRegistrationTTL)
	}
	if len(cfg.Kafka.Brokers) != 1 || cfg.Kafka.Brokers[0] != "localhost:9092" {
		t.Errorf("Kafka.Brokers = %v", cfg.Kafka.Brokers)
	}
}

func TestLoad_WithEnvOverride(t *testing.T) {
	t.Setenv("APP_NAME", "eventdesk-test")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("FINANCE_DEFAULT_MODE", "tenant")
	t.Setenv("FINANCE_DEFAULT_CURRENCY", "usd")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.App.Name != "eventdesk-test" {
		t.Errorf("App.Name = %q", cfg.App.Name)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("Kafka.Brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.Finance.DefaultMode != "tenant" {
		t.Errorf("Finance.DefaultMode = %q, want tenant", cfg.Finance.DefaultMode)
	}
	if cfg.Finance.DefaultCurrency != "USD" {
		t.Errorf("Finance.DefaultCurrency = %q, want USD", cfg.Finance.DefaultCurrency)
	}
}

func TestLoad_GatewayWithoutSecrets(t *testing.T) {
	t.Setenv("STRIPE_ENABLED", "true")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail when stripe is enabled without a webhook secret")
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "testuser",
		Password: "testpass",
		DBName:   "testdb",
		SSLMode:  "disable",
	}

	expected := "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable"
	if dsn := cfg.DSN(); dsn != expected {
		t.Errorf("DSN() = %q, want %q", dsn, expected)
	}
}

func TestAddrHelpers(t *testing.T) {
	r := RedisConfig{Host: "redis.example.com", Port: 6380}
	if addr := r.Addr(); addr != "redis.example.com:6380" {
		t.Errorf("RedisConfig.Addr() = %q", addr)
	}

	s := ServerConfig{Host: "0.0.0.0", Port: 8080}
	if addr := s.Addr(); addr != "0.0.0.0:8080" {
		t.Errorf("ServerConfig.Addr() = %q", addr)
	}

	m := SMTPConfig{Host: "smtp.example.com", Port: 587}
	if addr := m.Addr(); addr != "smtp.example.com:587" {
		t.Errorf("SMTPConfig.Addr() = %q", addr)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid config", func(c *Config) {}, false},
		{"missing app name", func(c *Config) { c.App.Name = "" }, true},
		{"invalid port", func(c *Config) { c.Server.Port = -1 }, true},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, true},
		{"missing database host", func(c *Config) { c.Database.Host = "" }, true},
		{"missing database name", func(c *Config) { c.Database.DBName = "" }, true},
		{"missing JWT secret", func(c *Config) { c.JWT.Secret = "" }, true},
		{"unknown finance mode", func(c *Config) { c.Finance.DefaultMode = "advanced" }, true},
		{"tenant finance mode", func(c *Config) { c.Finance.DefaultMode = "tenant" }, false},
		{
			name: "default JWT secret in production",
			mutate: func(c *Config) {
				c.App.Environment = "production"
				c.JWT.Secret = defaultJWTSecret
			},
			wantErr: true,
		},
		{
			name: "razorpay enabled without webhook secret",
			mutate: func(c *Config) {
				c.Razorpay = RazorpayConfig{Enabled: true, KeyID: "rzp_test", KeySecret: "s"}
			},
			wantErr: true,
		},
		{
			name: "razorpay fully configured",
			mutate: func(c *Config) {
				c.Razorpay = RazorpayConfig{Enabled: true, KeyID: "rzp_test", KeySecret: "s", WebhookSecret: "w"}
			},
			wantErr: false,
		},
		{
			name: "docusign enabled without token",
			mutate: func(c *Config) {
				c.DocuSign = DocuSignConfig{Enabled: true, AccountID: "acc"}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Environment(t *testing.T) {
	cfg := &Config{App: AppConfig{Environment: "production"}}
	if !cfg.IsProduction() || cfg.IsDevelopment() {
		t.Error("production environment misreported")
	}

	cfg.App.Environment = "development"
	if cfg.IsProduction() || !cfg.IsDevelopment() {
		t.Error("development environment misreported")
	}
}
