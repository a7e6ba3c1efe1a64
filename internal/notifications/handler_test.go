package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"cuworking/pkg/kafka"
	"cuworking/pkg/logger"
	"cuworking/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	sent []Notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, notification Notification) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, notification)
	return nil
}

func eventMessage(t *testing.T, event model.ReservationEvent, eventID string) kafka.Message {
	t.Helper()
	msg, err := kafka.NewMessage().
		WithKey(event.PlaceID).
		WithValue(event).
		WithEventType(event.EventType).
		WithEventID(eventID).
		Build()
	require.NoError(t, err)
	return msg
}

func sampleEvent(eventType string) model.ReservationEvent {
	return model.ReservationEvent{
		EventType:     eventType,
		ReservationID: "65f1a2b3c4d5e6f708192c01",
		PlaceID:       "65f1a2b3c4d5e6f708192a01",
		UserID:        "65f1a2b3c4d5e6f708192b01",
		StartTime:     time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
		EndTime:       time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
		Status:        model.ReservationActive,
	}
}

func TestCompose(t *testing.T) {
	prevStart := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	prevEnd := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	moved := sampleEvent(model.EventReservationMoved)
	moved.PreviousStartTime = &prevStart
	moved.PreviousEndTime = &prevEnd

	tests := []struct {
		name        string
		event       model.ReservationEvent
		wantSubject string
		wantInBody  string
		wantErr     bool
	}{
		{name: "created", event: sampleEvent(model.EventReservationCreated), wantSubject: "Reservation confirmed", wantInBody: "2026-03-14 10:00 UTC to 2026-03-14 12:00 UTC"},
		{name: "cancelled", event: sampleEvent(model.EventReservationCancelled), wantSubject: "Reservation cancelled", wantInBody: "was cancelled"},
		{name: "moved", event: moved, wantSubject: "Reservation moved", wantInBody: "from 2026-03-14 08:00 UTC to 2026-03-14 09:00 UTC"},
		{name: "unknown", event: sampleEvent("reservation.archived"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := Compose(tt.event)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSubject, n.Subject)
			assert.Contains(t, n.Body, tt.wantInBody)
			assert.Equal(t, tt.event.UserID, n.UserID)
		})
	}
}

func TestHandler_Delivers(t *testing.T) {
	notifier := &recordingNotifier{}
	h := NewHandler(notifier, NewMemoryDeduplicator(time.Hour), logger.Discard())

	err := h.Handle(context.Background(), eventMessage(t, sampleEvent(model.EventReservationCreated), "evt-1"))

	require.NoError(t, err)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "65f1a2b3c4d5e6f708192c01", notifier.sent[0].ReservationID)
}

func TestHandler_SkipsRedelivery(t *testing.T) {
	notifier := &recordingNotifier{}
	h := NewHandler(notifier, NewMemoryDeduplicator(time.Hour), logger.Discard())
	msg := eventMessage(t, sampleEvent(model.EventReservationCancelled), "evt-1")

	require.NoError(t, h.Handle(context.Background(), msg))
	require.NoError(t, h.Handle(context.Background(), msg))

	assert.Len(t, notifier.sent, 1)
}

func TestHandler_UndecodablePayloadIsPermanent(t *testing.T) {
	h := NewHandler(&recordingNotifier{}, nil, logger.Discard())
	msg := kafka.Message{Value: []byte(`{"event_type":`)}

	err := h.Handle(context.Background(), msg)

	require.Error(t, err)
	assert.Equal(t, kafka.ErrorTypePermanent, kafka.ClassifyError(err))
}

func TestHandler_UnknownEventIsPermanent(t *testing.T) {
	h := NewHandler(&recordingNotifier{}, nil, logger.Discard())

	err := h.Handle(context.Background(), eventMessage(t, sampleEvent("reservation.archived"), "evt-1"))

	assert.Equal(t, kafka.ErrorTypePermanent, kafka.ClassifyError(err))
}

func TestHandler_NotifyFailureIsRetriable(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("smtp down")}
	dedup := NewMemoryDeduplicator(time.Hour)
	h := NewHandler(notifier, dedup, logger.Discard())
	msg := eventMessage(t, sampleEvent(model.EventReservationCreated), "evt-1")

	err := h.Handle(context.Background(), msg)
	assert.Equal(t, kafka.ErrorTypeTransient, kafka.ClassifyError(err))

	notifier.err = nil
	require.NoError(t, h.Handle(context.Background(), msg))
	assert.Len(t, notifier.sent, 1, "mark must be cleared so the retry delivers")
}

func TestMemoryDeduplicator_Expires(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	d := NewMemoryDeduplicator(time.Minute)
	t.Cleanup(d.Stop)
	d.now = func() time.Time { return now }

	first, err := d.FirstSeen(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.True(t, first)

	again, _ := d.FirstSeen(context.Background(), "evt-1")
	assert.False(t, again)

	now = now.Add(2 * time.Minute)
	afterTTL, _ := d.FirstSeen(context.Background(), "evt-1")
	assert.True(t, afterTTL)
}

func TestMemoryDeduplicator_SweepDropsOnlyExpired(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	d := NewMemoryDeduplicator(time.Minute)
	t.Cleanup(d.Stop)
	d.now = func() time.Time { return now }

	for _, id := range []string{"evt-1", "evt-2", "evt-3"} {
		_, err := d.FirstSeen(context.Background(), id)
		require.NoError(t, err)
	}
	now = now.Add(90 * time.Second)
	_, err := d.FirstSeen(context.Background(), "evt-4")
	require.NoError(t, err)

	// Lookups never scan other ids.
	assert.Len(t, d.seen, 4)

	d.sweep()

	assert.Len(t, d.seen, 1)
	assert.Contains(t, d.seen, "evt-4")
}

func TestMemoryDeduplicator_StopIsIdempotent(t *testing.T) {
	d := NewMemoryDeduplicator(time.Minute)

	d.Stop()
	d.Stop()

	first, err := d.FirstSeen(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.True(t, first)
}
