// Package state decides whether an alert candidate should trigger a
// notification, based on a persisted history of previously fired alerts.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fare-alerts/internal/fetcher"
)

// Records older than this are purged at the next Save; a stale alert is no
// longer worth suppressing.
const retention = 7 * 24 * time.Hour

// AlertRecord is the persisted memory of the last alert fired for one
// route-date key.
type AlertRecord struct {
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	AlertedAt string          `json:"alerted_at"` // RFC 3339 UTC
}

// Store holds the alert history for one run. It is the sole mutator and
// persistence authority for alert records. Not safe for concurrent
// mutation: the engine drives it from a single goroutine after all fetches
// have joined.
type Store struct {
	path     string
	cooldown time.Duration
	records  map[string]AlertRecord
	logger   zerolog.Logger
	now      func() time.Time
}

// Open loads the persisted snapshot at path. A missing, corrupt, or
// structurally invalid file degrades to an empty history: losing state only
// risks a duplicate notification, never a failed run.
func Open(path string, cooldown time.Duration, logger zerolog.Logger) *Store {
	s := &Store{
		path:     path,
		cooldown: cooldown,
		records:  make(map[string]AlertRecord),
		logger:   logger.With().Str("component", "alert_state").Logger(),
		now:      time.Now,
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info().Str("path", path).Msg("no prior alert state, starting empty")
		} else {
			s.logger.Warn().Err(err).Str("path", path).Msg("failed to read alert state, starting empty")
		}
		return s
	}

	if err := json.Unmarshal(raw, &s.records); err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("corrupt alert state, starting empty")
		s.records = make(map[string]AlertRecord)
		return s
	}

	s.logger.Info().Int("records", len(s.records)).Msg("alert state loaded")
	return s
}

// ShouldAlert decides whether a candidate should fire:
//  1. never alerted this route-date key → alert;
//  2. price strictly below the stored price, same currency → alert
//     (a differing currency cannot be compared and falls through);
//  3. otherwise, alert iff the cooldown window has elapsed since the stored
//     alert (an unparsable stored timestamp alerts, as the safe default).
func (s *Store) ShouldAlert(rec fetcher.PriceRecord) bool {
	existing, ok := s.records[rec.RouteKey()]
	if !ok {
		return true
	}

	if s.isDrop(rec, existing) {
		s.logger.Info().
			Str("key", rec.RouteKey()).
			Str("previous", existing.Currency+" "+existing.Price.String()).
			Str("current", rec.Currency+" "+rec.Price.String()).
			Msg("price dropped since last alert")
		return true
	}

	lastAlert, err := time.Parse(time.RFC3339, existing.AlertedAt)
	if err != nil {
		return true
	}

	return s.now().Sub(lastAlert) > s.cooldown
}

// IsPriceDrop reports whether the candidate is strictly cheaper than the
// stored alert for its key. Used for message framing only; it never affects
// the ShouldAlert decision.
func (s *Store) IsPriceDrop(rec fetcher.PriceRecord) bool {
	existing, ok := s.records[rec.RouteKey()]
	if !ok {
		return false
	}
	return s.isDrop(rec, existing)
}

func (s *Store) isDrop(rec fetcher.PriceRecord, existing AlertRecord) bool {
	return rec.Currency == existing.Currency && rec.Price.LessThan(existing.Price)
}

// RecordAlert overwrites the stored record for the candidate's key with its
// price, currency, and the current time. In-memory only until Save.
func (s *Store) RecordAlert(rec fetcher.PriceRecord) {
	s.records[rec.RouteKey()] = AlertRecord{
		Price:     rec.Price,
		Currency:  rec.Currency,
		AlertedAt: s.now().UTC().Format(time.RFC3339),
	}
}

// Save purges expired records, then atomically persists the remaining map as
// a full snapshot. The only durability boundary: everything before Save is
// volatile.
func (s *Store) Save() error {
	purged := s.purgeExpired()
	if purged > 0 {
		s.logger.Info().Int("purged", purged).Msg("expired alert records removed")
	}

	dir := filepath.Dir(s.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal alert state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".alert_state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write alert state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace alert state: %w", err)
	}

	s.logger.Info().Int("records", len(s.records)).Msg("alert state saved")
	return nil
}

// purgeExpired drops records older than the retention window. Records whose
// timestamp fails to parse are dropped too.
func (s *Store) purgeExpired() int {
	cutoff := s.now().Add(-retention)

	purged := 0
	for key, rec := range s.records {
		alertedAt, err := time.Parse(time.RFC3339, rec.AlertedAt)
		if err != nil || alertedAt.Before(cutoff) {
			delete(s.records, key)
			purged++
		}
	}
	return purged
}

// Len reports the number of stored alert records.
func (s *Store) Len() int {
	return len(s.records)
}

// Keys returns the stored route-date keys in sorted order.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.records))
	for key := range s.records {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the stored record for a key, if any.
func (s *Store) Get(key string) (AlertRecord, bool) {
	rec, ok := s.records[key]
	return rec, ok
}
