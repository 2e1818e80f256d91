package readmodel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ ArchivableDays = (*MemoryArchivableDays)(nil)
	_ ArchivableDays = (*MongoArchivableDays)(nil)
	_ AvailableSlots = (*MemoryAvailableSlots)(nil)
	_ AvailableSlots = (*MongoAvailableSlots)(nil)
	_ BookedSlots    = (*MemoryBookedSlots)(nil)
	_ BookedSlots    = (*MongoBookedSlots)(nil)
)

func TestMemoryAvailableSlots_PositionGuard(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewMemoryAvailableSlots()

	require.NoError(t, r.Add(ctx, AvailableSlot{ID: "s1", Date: "2023-06-01", Position: 2}))
	require.NoError(t, r.Add(ctx, AvailableSlot{ID: "s1", Date: "2023-06-02", Position: 9}))
	row, _ := r.Get("s1")
	assert.Equal(t, "2023-06-01", row.Date)

	require.NoError(t, r.SetBooked(ctx, "s1", true, 5))
	require.NoError(t, r.SetBooked(ctx, "s1", false, 4))
	row, _ = r.Get("s1")
	assert.True(t, row.IsBooked)
	assert.Equal(t, uint64(5), row.Position)

	require.NoError(t, r.Delete(ctx, "s1", 5))
	_, ok := r.Get("s1")
	assert.True(t, ok)
	require.NoError(t, r.Delete(ctx, "s1", 6))
	_, ok = r.Get("s1")
	assert.False(t, ok)
}

func TestMemoryAvailableSlots_AvailableOn(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewMemoryAvailableSlots()
	nine := time.Date(2023, 6, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, r.Add(ctx, AvailableSlot{ID: "b", Date: "2023-06-01", StartTime: nine.Add(10 * time.Minute), Position: 2}))
	require.NoError(t, r.Add(ctx, AvailableSlot{ID: "a", Date: "2023-06-01", StartTime: nine, Position: 1}))
	require.NoError(t, r.Add(ctx, AvailableSlot{ID: "c", Date: "2023-06-01", StartTime: nine.Add(20 * time.Minute), IsBooked: true, Position: 3}))
	require.NoError(t, r.Add(ctx, AvailableSlot{ID: "d", Date: "2023-06-02", StartTime: nine.AddDate(0, 0, 1), Position: 4}))

	got, err := r.AvailableOn(ctx, "2023-06-01")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestMemoryBookedSlots_CountBooked(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewMemoryBookedSlots()

	for i, row := range []BookedSlot{
		{ID: "1", Year: 2023, Month: 6},
		{ID: "2", Year: 2023, Month: 6},
		{ID: "3", Year: 2023, Month: 7},
		{ID: "4", Year: 2024, Month: 6},
	} {
		row.Position = uint64(i + 1)
		require.NoError(t, r.Add(ctx, row))
		require.NoError(t, r.MarkBooked(ctx, row.ID, "jdoe", uint64(i+10)))
	}

	n, err := r.CountBooked(ctx, "jdoe", 2023, 6)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, r.MarkAvailable(ctx, "1", 20))
	require.NoError(t, r.MarkBooked(ctx, "1", "jdoe", 15))
	n, _ = r.CountBooked(ctx, "jdoe", 2023, 6)
	assert.Equal(t, 1, n)

	n, _ = r.CountBooked(ctx, "other", 2023, 6)
	assert.Zero(t, n)
}

func TestMemoryArchivableDays(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewMemoryArchivableDays()
	june := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, r.Add(ctx, ArchivableDay{ID: "doc_2023-06-01", Date: june}))
	require.NoError(t, r.Add(ctx, ArchivableDay{ID: "doc_2023-06-01", Date: june.AddDate(1, 0, 0)}))
	require.NoError(t, r.Add(ctx, ArchivableDay{ID: "doc_2023-06-02", Date: june.AddDate(0, 0, 1)}))

	got, err := r.ScheduledOnOrBefore(ctx, june)
	require.NoError(t, err)
	assert.Equal(t, []ArchivableDay{{ID: "doc_2023-06-01", Date: june}}, got)
}
