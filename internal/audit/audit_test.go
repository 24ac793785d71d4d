package audit

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/velora-health/privacy-engine/internal/models"
)

func chainOf(t *testing.T, actions ...string) []models.AuditLogEntry {
	t.Helper()
	prev := GenesisHash
	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	entries := make([]models.AuditLogEntry, 0, len(actions))
	for i, action := range actions {
		created := ts.Add(time.Duration(i) * time.Minute)
		details := fmt.Sprintf(`{"run":%d}`, i)
		entry := models.AuditLogEntry{
			Seq:           uint64(i + 1),
			ID:            uuid.New(),
			Action:        action,
			Tier:          "tier2",
			ActorType:     "system",
			Details:       details,
			PrevHash:      prev,
			IntegrityHash: ComputeIntegrityHash(prev, action, "tier2", "", created, details),
			CreatedAt:     created,
		}
		prev = entry.IntegrityHash
		entries = append(entries, entry)
	}
	return entries
}

func TestVerifyEntriesEmptyChain(t *testing.T) {
	result := VerifyEntries(nil)
	assert.True(t, result.Valid)
	assert.Zero(t, result.TotalChecked)
}

func TestVerifyEntriesValidChain(t *testing.T) {
	entries := chainOf(t, ActionTier2Extraction, ActionRetentionSweep, ActionTier3Aggregation)
	result := VerifyEntries(entries)
	assert.True(t, result.Valid)
	assert.Equal(t, 3, result.TotalChecked)
	assert.Nil(t, result.BrokenAt)
}

func TestVerifyEntriesDetectsTamperedDetails(t *testing.T) {
	entries := chainOf(t, ActionTier2Extraction, ActionRetentionSweep, ActionTier3Aggregation)
	entries[1].Details = `{"run":999}`

	result := VerifyEntries(entries)
	require.False(t, result.Valid)
	require.NotNil(t, result.BrokenAt)
	assert.Equal(t, uint64(2), *result.BrokenAt)
	assert.Equal(t, entries[1].ID, *result.EntryID)
	assert.Equal(t, 2, result.TotalChecked)
}

func TestVerifyEntriesDetectsDeletedEntry(t *testing.T) {
	entries := chainOf(t, ActionTier2Extraction, ActionRetentionSweep, ActionTier3Aggregation)
	truncated := append([]models.AuditLogEntry{entries[0]}, entries[2])

	result := VerifyEntries(truncated)
	require.False(t, result.Valid)
	assert.Equal(t, uint64(3), *result.BrokenAt)
}

func TestVerifyEntriesDetectsReorderedEntries(t *testing.T) {
	entries := chainOf(t, ActionTier2Extraction, ActionRetentionSweep, ActionTier3Aggregation)
	entries[1], entries[2] = entries[2], entries[1]

	result := VerifyEntries(entries)
	assert.False(t, result.Valid)
}

func TestVerifyEntriesDetectsTamperedTimestamp(t *testing.T) {
	entries := chainOf(t, ActionTier2Extraction, ActionRetentionSweep)
	entries[0].CreatedAt = entries[0].CreatedAt.Add(time.Second)

	result := VerifyEntries(entries)
	require.False(t, result.Valid)
	assert.Equal(t, uint64(1), *result.BrokenAt)
}

func TestComputeIntegrityHashDeterministic(t *testing.T) {
	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	a := ComputeIntegrityHash(GenesisHash, ActionConsentGranted, "tier1", "user-1", ts, "{}")
	b := ComputeIntegrityHash(GenesisHash, ActionConsentGranted, "tier1", "user-1", ts, "{}")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	c := ComputeIntegrityHash(GenesisHash, ActionConsentWithdrawn, "tier1", "user-1", ts, "{}")
	assert.NotEqual(t, a, c)
}

func TestComputeIntegrityHashSensitiveToEveryField(t *testing.T) {
	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	base := ComputeIntegrityHash(GenesisHash, ActionDataAccessed, "tier1", "actor", ts, "{}")

	assert.NotEqual(t, base, ComputeIntegrityHash("1"+GenesisHash[1:], ActionDataAccessed, "tier1", "actor", ts, "{}"))
	assert.NotEqual(t, base, ComputeIntegrityHash(GenesisHash, ActionDataAccessed, "tier2", "actor", ts, "{}"))
	assert.NotEqual(t, base, ComputeIntegrityHash(GenesisHash, ActionDataAccessed, "tier1", "other", ts, "{}"))
	assert.NotEqual(t, base, ComputeIntegrityHash(GenesisHash, ActionDataAccessed, "tier1", "actor", ts.Add(time.Microsecond), "{}"))
	assert.NotEqual(t, base, ComputeIntegrityHash(GenesisHash, ActionDataAccessed, "tier1", "actor", ts, `{"x":1}`))
}
