package coldstorage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/doctor-day-scheduling/internal/eventlog"
)

var (
	_ Storage = (*MemoryStorage)(nil)
	_ Storage = (*GridFSStorage)(nil)
	_ Reader  = (*MemoryStorage)(nil)
	_ Reader  = (*GridFSStorage)(nil)
)

func TestMemoryStorage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStorage()

	_, err := s.ReadArchive(ctx, "Day-x")
	require.ErrorIs(t, err, ErrNotFound)

	events := []eventlog.RecordedEvent{{
		ID:       uuid.New(),
		Type:     "DayScheduled_V1",
		Data:     json.RawMessage(`{"dayId":"x"}`),
		Metadata: eventlog.Metadata{CorrelationID: "c"},
		Stream:   "Day-x",
		Version:  0,
		Position: 12,
		Created:  time.Date(2023, 6, 1, 8, 0, 0, 0, time.UTC),
	}}
	require.NoError(t, s.ArchiveStream(ctx, "Day-x", events))

	got, err := s.ReadArchive(ctx, "Day-x")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, events[0].ID, got[0].ID)
	assert.Equal(t, uint64(12), got[0].Position)
	assert.JSONEq(t, `{"dayId":"x"}`, string(got[0].Data))
	assert.True(t, events[0].Created.Equal(got[0].Created))
}
