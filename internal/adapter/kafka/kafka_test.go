package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/couchcryptid/ghg-merge/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

func testSummary() domain.RunSummary {
	return domain.RunSummary{
		RunID:     "0b6a2c4e",
		Species:   "CH4",
		Sites:     []string{"MHD"},
		Sectors:   []string{"anthropogenic"},
		Units:     1e-9,
		BCSource:  "CAMS",
		CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Scales: map[string]domain.ScaleRecord{
			"MHD": {Scale: "WMO-CH4-X2004A", Reference: "WMO-CH4-X2004A"},
		},
	}
}

func TestSerializeToMessage(t *testing.T) {
	summary := testSummary()

	msg, err := serializeToMessage(summary)
	require.NoError(t, err)

	assert.Equal(t, []byte("0b6a2c4e"), msg.Key)
	assert.Contains(t, string(msg.Value), `"species":"CH4"`)
	assert.Contains(t, string(msg.Value), `"bc_source":"CAMS"`)
	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, "species", msg.Headers[0].Key)
	assert.Equal(t, []byte("ch4"), msg.Headers[0].Value)
	assert.Equal(t, "created_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2024-03-01T12:00:00Z"), msg.Headers[1].Value)

	var decoded domain.RunSummary
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, summary.Scales, decoded.Scales)
}

func TestSerializeToMessage_UnencodableUnit(t *testing.T) {
	summary := testSummary()
	summary.Units = math.NaN()

	_, err := serializeToMessage(summary)
	require.Error(t, err)
}

func TestNotifier_NotifyRunCompleted(t *testing.T) {
	w := &mockWriter{}
	n := &Notifier{writer: w, logger: slog.Default()}

	require.NoError(t, n.NotifyRunCompleted(context.Background(), testSummary()))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("0b6a2c4e"), w.msgs[0].Key)

	require.NoError(t, n.Close())
	assert.True(t, w.closed)
}

func TestNotifier_WriteError(t *testing.T) {
	brokerErr := errors.New("leader not available")
	n := &Notifier{writer: &mockWriter{err: brokerErr}, logger: slog.Default()}

	err := n.NotifyRunCompleted(context.Background(), testSummary())
	require.ErrorIs(t, err, brokerErr)
	assert.Contains(t, err.Error(), "0b6a2c4e")
}
