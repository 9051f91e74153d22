package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore_RecordAndList(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Record(ctx, Entry{
		Type: EventTransition, ActorID: "usr_owner", EnvelopeID: "env_1",
		Action: "created", Timestamp: base,
		Metadata: map[string]any{"status": "draft"},
	}))
	require.NoError(t, s.Record(ctx, Entry{
		Type: EventTransition, EnvelopeID: "env_1",
		Action: "webhook_signer_signed", Timestamp: base.Add(time.Minute),
		Metadata: map[string]any{"event_id": "evt_1"},
	}))
	require.NoError(t, s.Record(ctx, Entry{
		Type: EventDenial, ActorID: "usr_stranger", EnvelopeID: "env_2",
		Action: "send", Timestamp: base,
	}))

	trail, err := s.ListByEnvelope(ctx, "env_1")
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, "created", trail[0].Action)
	assert.Equal(t, "webhook_signer_signed", trail[1].Action)
	assert.Equal(t, "draft", trail[0].Metadata["status"])
	assert.NotEmpty(t, trail[0].ID)

	other, err := s.ListByEnvelope(ctx, "env_2")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, EventDenial, other[0].Type)

	empty, err := s.ListByEnvelope(ctx, "env_missing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSQLiteStore_FillsIDAndTimestamp(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.NoError(t, s.Record(ctx, Entry{Type: EventTransition, EnvelopeID: "env_1", Action: "created"}))
	trail, err := s.ListByEnvelope(ctx, "env_1")
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Contains(t, trail[0].ID, "aud_")
	assert.False(t, trail[0].Timestamp.IsZero())
}
