package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prohmpiriya/eventdesk/pkg/logger"
	"go.uber.org/zap"
)

// Expirer cancels stale unpaid registrations. Implemented by service.RegistrationService.
type Expirer interface {
	ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, int64, error)
}

// ExpiryWorkerConfig contains configuration for the expiry worker
type ExpiryWorkerConfig struct {
	// ScanInterval is how often the worker looks for stale registrations
	ScanInterval time.Duration
	// PendingTTL is how long an unpaid registration may stay pending
	PendingTTL time.Duration
	// BatchSize caps the registrations expired per scan
	BatchSize int
}

// DefaultExpiryWorkerConfig returns default configuration
func DefaultExpiryWorkerConfig() *ExpiryWorkerConfig {
	return &ExpiryWorkerConfig{
		ScanInterval: time.Minute,
		PendingTTL:   30 * time.Minute,
		BatchSize:    100,
	}
}

// ExpiryWorker cancels unpaid pending registrations and frees their seats
type ExpiryWorker struct {
	expirer Expirer
	config  *ExpiryWorkerConfig
	now     func() time.Time

	mu               sync.RWMutex
	running          bool
	totalExpired     int64
	totalReleased    int64
	lastScanTime     time.Time
	lastExpiredCount int
}

// ExpiryWorkerStats is a snapshot of the worker's counters
type ExpiryWorkerStats struct {
	IsRunning        bool      `json:"is_running"`
	TotalExpired     int64     `json:"total_expired"`
	TotalReleased    int64     `json:"total_released"`
	LastScanTime     time.Time `json:"last_scan_time"`
	LastExpiredCount int       `json:"last_expired_count"`
}

// NewExpiryWorker creates a new expiry worker. A nil config uses the defaults.
func NewExpiryWorker(expirer Expirer, config *ExpiryWorkerConfig) *ExpiryWorker {
	defaults := DefaultExpiryWorkerConfig()
	if config == nil {
		config = defaults
	}
	if config.ScanInterval <= 0 {
		config.ScanInterval = defaults.ScanInterval
	}
	if config.PendingTTL <= 0 {
		config.PendingTTL = defaults.PendingTTL
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	return &ExpiryWorker{
		expirer: expirer,
		config:  config,
		now:     time.Now,
	}
}

// Run scans until ctx is cancelled. It returns nil on a clean stop.
func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.setRunning(true)
	defer w.setRunning(false)

	logger.Info("expiry worker started",
		zap.Duration("scan_interval", w.config.ScanInterval),
		zap.Duration("pending_ttl", w.config.PendingTTL),
		zap.Int("batch_size", w.config.BatchSize),
	)

	ticker := time.NewTicker(w.config.ScanInterval)
	defer ticker.Stop()

	for {
		w.scan(ctx)
		select {
		case <-ctx.Done():
			logger.Info("expiry worker stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// scan drains stale registrations in batches until a short batch comes back
func (w *ExpiryWorker) scan(ctx context.Context) {
	cutoff := w.now().Add(-w.config.PendingTTL)
	var expired int
	var released int64

	for ctx.Err() == nil {
		n, freed, err := w.expirer.ExpireStale(ctx, cutoff, w.config.BatchSize)
		expired += n
		released += freed
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Error("expiry scan failed", zap.Error(err))
			}
			break
		}
		// A full batch may hide more; rows that could not be expired stop the loop
		if n < w.config.BatchSize {
			break
		}
	}

	w.mu.Lock()
	w.totalExpired += int64(expired)
	w.totalReleased += released
	w.lastScanTime = w.now()
	w.lastExpiredCount = expired
	w.mu.Unlock()

	if expired > 0 {
		logger.Info("expired unpaid registrations",
			zap.Int("count", expired),
			zap.Int64("seats_released", released),
		)
	}
}

func (w *ExpiryWorker) setRunning(v bool) {
	w.mu.Lock()
	w.running = v
	w.mu.Unlock()
}

// GetStats returns the worker's counters
func (w *ExpiryWorker) GetStats() *ExpiryWorkerStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return &ExpiryWorkerStats{
		IsRunning:        w.running,
		TotalExpired:     w.totalExpired,
		TotalReleased:    w.totalReleased,
		LastScanTime:     w.lastScanTime,
		LastExpiredCount: w.lastExpiredCount,
	}
}
