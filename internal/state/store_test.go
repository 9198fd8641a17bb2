package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fare-alerts/internal/fetcher"
)

func testRecord(price float64, currency string) fetcher.PriceRecord {
	return fetcher.PriceRecord{
		Source:      "test",
		Origin:      "EZE",
		Destination: "BCN",
		Date:        "2026-06-01",
		Price:       decimal.NewFromFloat(price),
		Currency:    currency,
	}
}

func openTestStore(t *testing.T, cooldown time.Duration) *Store {
	t.Helper()
	return Open(filepath.Join(t.TempDir(), "alert_state.json"), cooldown, zerolog.Nop())
}

func TestShouldAlertFirstSighting(t *testing.T) {
	s := openTestStore(t, 48*time.Hour)
	assert.True(t, s.ShouldAlert(testRecord(500, "USD")))
}

func TestShouldAlertPriceDropBypassesCooldown(t *testing.T) {
	s := openTestStore(t, 48*time.Hour)
	s.RecordAlert(testRecord(500, "USD"))

	assert.True(t, s.ShouldAlert(testRecord(499, "USD")))
	assert.True(t, s.IsPriceDrop(testRecord(499, "USD")))
}

func TestShouldAlertEqualPriceWithinCooldown(t *testing.T) {
	s := openTestStore(t, 48*time.Hour)
	s.RecordAlert(testRecord(500, "USD"))

	assert.False(t, s.ShouldAlert(testRecord(500, "USD")))
	assert.False(t, s.ShouldAlert(testRecord(501, "USD")))
}

func TestShouldAlertCooldownElapsed(t *testing.T) {
	s := openTestStore(t, 48*time.Hour)
	s.RecordAlert(testRecord(500, "USD"))

	s.now = func() time.Time { return time.Now().Add(72 * time.Hour) }
	assert.True(t, s.ShouldAlert(testRecord(500, "USD")))

	s.now = func() time.Time { return time.Now().Add(time.Hour) }
	assert.False(t, s.ShouldAlert(testRecord(500, "USD")))
}

func TestShouldAlertCurrencyMismatchIsNotDrop(t *testing.T) {
	s := openTestStore(t, 48*time.Hour)
	s.RecordAlert(testRecord(500000, "ARS"))

	// 400 USD is numerically lower but the currencies differ; without a
	// drop, the decision falls back to the (unexpired) cooldown.
	assert.False(t, s.ShouldAlert(testRecord(400, "USD")))
	assert.False(t, s.IsPriceDrop(testRecord(400, "USD")))
}

func TestShouldAlertUnparsableTimestamp(t *testing.T) {
	s := openTestStore(t, 48*time.Hour)
	s.records["EZE-BCN-2026-06-01"] = AlertRecord{
		Price:     decimal.NewFromInt(500),
		Currency:  "USD",
		AlertedAt: "not-a-timestamp",
	}

	assert.True(t, s.ShouldAlert(testRecord(500, "USD")))
}

func TestRecordAlertOverwrites(t *testing.T) {
	s := openTestStore(t, 48*time.Hour)
	s.RecordAlert(testRecord(500, "USD"))
	s.RecordAlert(testRecord(450, "USD"))

	rec, ok := s.Get("EZE-BCN-2026-06-01")
	require.True(t, ok)
	assert.True(t, rec.Price.Equal(decimal.NewFromInt(450)))
	assert.Equal(t, 1, s.Len())
}

func TestSavePurgesExpiredRecords(t *testing.T) {
	s := openTestStore(t, 48*time.Hour)

	now := time.Now().UTC()
	s.records["EZE-BCN-2026-06-01"] = AlertRecord{
		Price:     decimal.NewFromInt(500),
		Currency:  "USD",
		AlertedAt: now.Add(-time.Hour).Format(time.RFC3339),
	}
	s.records["EZE-SSA-2026-06-02"] = AlertRecord{
		Price:     decimal.NewFromInt(400),
		Currency:  "USD",
		AlertedAt: now.Add(-8 * 24 * time.Hour).Format(time.RFC3339),
	}
	s.records["EZE-MAD-2026-06-03"] = AlertRecord{
		Price:     decimal.NewFromInt(300),
		Currency:  "USD",
		AlertedAt: "garbage",
	}

	require.NoError(t, s.Save())

	assert.Equal(t, []string{"EZE-BCN-2026-06-01"}, s.Keys())
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "alert_state.json")

	s := Open(path, 48*time.Hour, zerolog.Nop())
	s.RecordAlert(testRecord(500, "USD"))
	require.NoError(t, s.Save())

	reloaded := Open(path, 48*time.Hour, zerolog.Nop())
	require.Equal(t, 1, reloaded.Len())

	rec, ok := reloaded.Get("EZE-BCN-2026-06-01")
	require.True(t, ok)
	assert.True(t, rec.Price.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, "USD", rec.Currency)

	// The reloaded record still suppresses the same price.
	assert.False(t, reloaded.ShouldAlert(testRecord(500, "USD")))
}

func TestOpenCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alert_state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := Open(path, 48*time.Hour, zerolog.Nop())
	assert.Equal(t, 0, s.Len())
	assert.True(t, s.ShouldAlert(testRecord(500, "USD")))
}
