package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/damon-houk/catalog-service/internal/domain/apperrors"
	"github.com/damon-houk/catalog-service/internal/domain/entity"
	"github.com/damon-houk/catalog-service/internal/domain/repository"
	"github.com/damon-houk/catalog-service/internal/domain/service"
	"github.com/damon-houk/catalog-service/internal/infrastructure/logger"
	"golang.org/x/sync/singleflight"
)

// Snapshot is an immutable set of rates against the base currency.
// A new Snapshot is built on every refresh; existing ones are never modified.
type Snapshot struct {
	rates     map[string]float64
	date      string
	fetchedAt time.Time
}

// Rates returns a copy of the rate table.
func (s *Snapshot) Rates() map[string]float64 {
	out := make(map[string]float64, len(s.rates))
	for k, v := range s.rates {
		out[k] = v
	}
	return out
}

// Date is the provider's publication date, if it sent one.
func (s *Snapshot) Date() string { return s.date }

// FetchedAt is when the snapshot was taken from the provider.
func (s *Snapshot) FetchedAt() time.Time { return s.fetchedAt }

// Len is the number of stored rates, excluding the base currency.
func (s *Snapshot) Len() int { return len(s.rates) }

// Status describes the outcome of recent refreshes
type Status struct {
	LastAttempt time.Time `json:"last_attempt,omitempty"`
	LastSuccess time.Time `json:"last_success,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
}

// RateStore holds the current rate snapshot and swaps it atomically on refresh.
// Lookups never block; refreshes are serialized.
type RateStore struct {
	base     string
	provider service.RateProvider
	repo     repository.ExchangeRateRepository
	logger   logger.Logger

	snapshot atomic.Pointer[Snapshot]
	group    singleflight.Group

	statusMu sync.RWMutex
	status   Status

	now func() time.Time
}

// NewRateStore creates an empty store. repo may be nil, in which case snapshots are not persisted.
func NewRateStore(base string, provider service.RateProvider, repo repository.ExchangeRateRepository, log logger.Logger) *RateStore {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	s := &RateStore{
		base:     strings.ToUpper(base),
		provider: provider,
		repo:     repo,
		logger:   log,
		now:      time.Now,
	}
	s.snapshot.Store(&Snapshot{rates: map[string]float64{}})
	return s
}

// BaseCurrency returns the code all rates are expressed against
func (s *RateStore) BaseCurrency() string {
	return s.base
}

// Lookup returns the rate of code against the base currency. The base currency always has rate 1.
func (s *RateStore) Lookup(code string) (float64, bool) {
	code = normalizeCode(code)
	if strings.EqualFold(code, s.base) {
		return 1, true
	}
	rate, ok := s.snapshot.Load().rates[code]
	return rate, ok
}

// IsEmpty reports whether no rate besides the base currency is available
func (s *RateStore) IsEmpty() bool {
	return s.snapshot.Load().Len() == 0
}

// Snapshot returns the current snapshot
func (s *RateStore) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

// Status returns the refresh bookkeeping
func (s *RateStore) Status() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

// Refresh fetches a new table from the provider and replaces the snapshot.
// On failure the current snapshot is kept and false is returned.
// Concurrent callers share a single provider round trip.
func (s *RateStore) Refresh(ctx context.Context) bool {
	v, _, _ := s.group.Do("refresh", func() (interface{}, error) {
		return s.refresh(ctx), nil
	})
	return v.(bool)
}

func (s *RateStore) refresh(ctx context.Context) bool {
	started := s.now()

	table, err := s.provider.FetchRates(ctx)
	if err == nil {
		err = s.validate(table)
	}
	if err != nil {
		s.recordFailure(started, err)
		fields := map[string]interface{}{
			"error":      err.Error(),
			"kept_rates": s.snapshot.Load().Len(),
		}
		if s.IsEmpty() {
			s.logger.Warn("Exchange rate refresh failed, currency conversion cannot be applied", fields)
		} else {
			s.logger.Error("Exchange rate refresh failed, keeping previous snapshot", fields)
		}
		return false
	}

	next := &Snapshot{
		rates:     make(map[string]float64, len(table.Rates)),
		date:      table.Date,
		fetchedAt: started,
	}
	for code, rate := range table.Rates {
		code = normalizeCode(code)
		if code == s.base {
			continue
		}
		next.rates[code] = rate
	}

	s.snapshot.Store(next)
	s.recordSuccess(started)

	s.logger.Info("Exchange rates refreshed", map[string]interface{}{
		"base":          s.base,
		"rates":         next.Len(),
		"provider_date": next.date,
		"took":          s.now().Sub(started).String(),
	})

	s.persist(ctx, next)
	return true
}

// validate rejects tables that would break the snapshot invariants
func (s *RateStore) validate(table *entity.RateTable) error {
	if table == nil || table.Rates == nil {
		return fmt.Errorf("%w: missing rates", apperrors.ErrMalformedProviderResponse)
	}
	if table.Base != "" && !strings.EqualFold(table.Base, s.base) {
		return fmt.Errorf("%w: base %q, expected %q", apperrors.ErrMalformedProviderResponse, table.Base, s.base)
	}
	for code, rate := range table.Rates {
		if normalizeCode(code) == "" {
			return fmt.Errorf("%w: empty currency code", apperrors.ErrMalformedProviderResponse)
		}
		if !(rate > 0) || rate > maxRate {
			return fmt.Errorf("%w: invalid rate %v for %s", apperrors.ErrMalformedProviderResponse, rate, code)
		}
	}
	return nil
}

// maxRate also rejects +Inf
const maxRate = 1e15

// persist stores the snapshot best-effort; the in-memory swap has already happened
func (s *RateStore) persist(ctx context.Context, snap *Snapshot) {
	if s.repo == nil {
		return
	}

	if err := s.repo.ReplaceAll(ctx, toEntity(s.base, snap)); err != nil {
		s.logger.Error("Failed to persist exchange rate snapshot", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// Load warms the store from the persisted snapshot. A missing snapshot is not an error.
func (s *RateStore) Load(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}

	stored, err := s.repo.FindAll(ctx)
	if errors.Is(err, apperrors.ErrNotFound) {
		s.logger.Info("No persisted exchange rate snapshot", nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load exchange rate snapshot: %w", err)
	}

	if !strings.EqualFold(stored.Base, s.base) {
		s.logger.Warn("Ignoring persisted snapshot with a different base currency", map[string]interface{}{
			"stored_base": stored.Base,
			"base":        s.base,
		})
		return nil
	}

	snap := &Snapshot{
		rates:     make(map[string]float64, len(stored.Rates)),
		date:      stored.Date,
		fetchedAt: stored.FetchedAt,
	}
	for _, r := range stored.Rates {
		snap.rates[normalizeCode(r.Currency)] = r.Rate
	}
	s.snapshot.Store(snap)

	s.logger.Info("Loaded persisted exchange rate snapshot", map[string]interface{}{
		"rates":      snap.Len(),
		"fetched_at": snap.fetchedAt.Format(time.RFC3339),
	})
	return nil
}

// Run refreshes the store every interval until ctx is cancelled
func (s *RateStore) Run(ctx context.Context, interval time.Duration, timeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Exchange rate refresh loop stopped", nil)
			return
		case <-ticker.C:
			refreshCtx, cancel := context.WithTimeout(ctx, timeout)
			s.Refresh(refreshCtx)
			cancel()
		}
	}
}

func (s *RateStore) recordFailure(at time.Time, err error) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status.LastAttempt = at
	s.status.LastError = err.Error()
}

func (s *RateStore) recordSuccess(at time.Time) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status.LastAttempt = at
	s.status.LastSuccess = at
	s.status.LastError = ""
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func toEntity(base string, snap *Snapshot) *entity.RateSnapshot {
	codes := make([]string, 0, len(snap.rates))
	for code := range snap.rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	rates := make([]entity.ExchangeRate, 0, len(codes))
	for _, code := range codes {
		rates = append(rates, entity.ExchangeRate{Currency: code, Rate: snap.rates[code]})
	}

	return &entity.RateSnapshot{
		Base:      base,
		Date:      snap.date,
		FetchedAt: snap.fetchedAt,
		Rates:     rates,
	}
}
