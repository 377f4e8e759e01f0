package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/damon-houk/catalog-service/internal/domain/apperrors"
	"github.com/damon-houk/catalog-service/internal/domain/entity"
	"github.com/dgraph-io/badger/v3"
)

const (
	ratePrefix  = "rate:"
	rateMetaKey = "rate-meta"
)

type rateMeta struct {
	Base      string    `json:"base"`
	Date      string    `json:"date,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// BadgerExchangeRateRepository keeps the last rate snapshot, one key per currency
type BadgerExchangeRateRepository struct {
	db *badger.DB
}

// NewBadgerExchangeRateRepository creates a new BadgerDB exchange rate repository
func NewBadgerExchangeRateRepository(db *badger.DB) *BadgerExchangeRateRepository {
	return &BadgerExchangeRateRepository{db: db}
}

// ReplaceAll clears the stored snapshot and stores the given one in a single transaction
func (r *BadgerExchangeRateRepository) ReplaceAll(ctx context.Context, snapshot *entity.RateSnapshot) error {
	meta, err := json.Marshal(rateMeta{
		Base:      snapshot.Base,
		Date:      snapshot.Date,
		FetchedAt: snapshot.FetchedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		var stale [][]byte
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		prefix := []byte(ratePrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}

		for _, rate := range snapshot.Rates {
			data, err := json.Marshal(rate)
			if err != nil {
				return err
			}
			if err := txn.Set([]byte(ratePrefix+rate.Currency), data); err != nil {
				return err
			}
		}
		return txn.Set([]byte(rateMetaKey), meta)
	})
	if err != nil {
		return fmt.Errorf("failed to store exchange rates: %w", err)
	}
	return nil
}

// FindAll returns the stored snapshot, or apperrors.ErrNotFound when none was stored
func (r *BadgerExchangeRateRepository) FindAll(ctx context.Context) (*entity.RateSnapshot, error) {
	var meta rateMeta
	rates := []entity.ExchangeRate{}

	err := r.db.View(func(txn *badger.Txn) error {
		if err := getJSON(txn, []byte(rateMetaKey), &meta); err != nil {
			return err
		}
		return scan(txn, []byte(ratePrefix), func(decode func(interface{}) error) error {
			var rate entity.ExchangeRate
			if err := decode(&rate); err != nil {
				return err
			}
			rates = append(rates, rate)
			return nil
		})
	})
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("%w: no exchange rate snapshot", apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve exchange rates: %w", err)
	}

	return &entity.RateSnapshot{
		Base:      meta.Base,
		Date:      meta.Date,
		FetchedAt: meta.FetchedAt,
		Rates:     rates,
	}, nil
}
