package notification

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"moveflow/models"

	"firebase.google.com/go/v4/messaging"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func snapshot() models.BookingSnapshot {
	return models.BookingSnapshot{
		ID:             "b-1",
		CustomerName:   "Dana",
		CustomerEmail:  "dana@example.com",
		MoveDate:       time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		PickupAddress:  "1 Main St",
		DropoffAddress: "9 Elm St",
		Status:         models.StatusConfirmed,
	}
}

type recordingNotifier struct {
	kinds []models.EventKind
	err   error
}

func (r *recordingNotifier) Notify(_ context.Context, kind models.EventKind, _ models.BookingSnapshot) error {
	r.kinds = append(r.kinds, kind)
	return r.err
}

func TestMultiNotifierJoinsErrors(t *testing.T) {
	errA := errors.New("a down")
	a := &recordingNotifier{err: errA}
	b := &recordingNotifier{}
	m := MultiNotifier{a, nil, b}

	err := m.Notify(context.Background(), models.EventBookingConfirmed, snapshot())
	if !errors.Is(err, errA) {
		t.Fatalf("err = %v, want wrapped errA", err)
	}
	if len(a.kinds) != 1 || len(b.kinds) != 1 {
		t.Fatalf("every notifier must be called: a=%d b=%d", len(a.kinds), len(b.kinds))
	}
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := LogNotifier{Logger: zap.New(core)}
	if err := n.Notify(context.Background(), models.EventBookingCancelled, snapshot()); err != nil {
		t.Fatal(err)
	}
	entries := logs.FilterMessage("Booking notification").All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries", len(entries))
	}
	if got := entries[0].ContextMap()["kind"]; got != string(models.EventBookingCancelled) {
		t.Errorf("kind = %v", got)
	}
}

func TestDirectDispatcher(t *testing.T) {
	rec := &recordingNotifier{}
	d := DirectDispatcher{Notifier: rec}
	err := d.Dispatch(context.Background(), models.StatusEvent{Kind: models.EventBookingCompleted, Booking: snapshot()})
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.kinds) != 1 || rec.kinds[0] != models.EventBookingCompleted {
		t.Fatalf("kinds = %v", rec.kinds)
	}

	if err := (DirectDispatcher{}).Dispatch(context.Background(), models.StatusEvent{}); err != nil {
		t.Fatalf("nil notifier should be a no-op, got %v", err)
	}
}

func TestRenderCoversEveryKind(t *testing.T) {
	kinds := []models.EventKind{
		models.EventBookingConfirmed,
		models.EventBookingInProgress,
		models.EventBookingCompleted,
		models.EventBookingCancelled,
		models.EventBookingReminder,
	}
	seen := map[string]bool{}
	for _, k := range kinds {
		m := Render(k, snapshot())
		if m.Title == "" || m.Body == "" {
			t.Errorf("%s: empty message", k)
		}
		if seen[m.Title] {
			t.Errorf("%s: duplicate title %q", k, m.Title)
		}
		seen[m.Title] = true
	}
	if !strings.Contains(Render(models.EventBookingConfirmed, snapshot()).Body, "Mar 14") {
		t.Error("confirmed body should include the move date")
	}
}

type fakeSender struct {
	msgs []*messaging.Message
}

func (f *fakeSender) Send(_ context.Context, m *messaging.Message) (string, error) {
	f.msgs = append(f.msgs, m)
	return "projects/x/messages/1", nil
}

func TestPushNotifierTargetsBookingTopic(t *testing.T) {
	sender := &fakeSender{}
	p := NewPushNotifier(sender, zap.NewNop())
	if err := p.Notify(context.Background(), models.EventBookingInProgress, snapshot()); err != nil {
		t.Fatal(err)
	}
	if len(sender.msgs) != 1 {
		t.Fatalf("sent %d messages", len(sender.msgs))
	}
	m := sender.msgs[0]
	if m.Topic != "booking_b-1" {
		t.Errorf("topic = %q", m.Topic)
	}
	if m.Data["type"] != string(models.EventBookingInProgress) {
		t.Errorf("data.type = %q", m.Data["type"])
	}
}

type fakeChannel struct {
	exchange, key string
	msg           amqp.Publishing
	closed        bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestEventPublisherRoutesByKind(t *testing.T) {
	ch := &fakeChannel{}
	p := NewEventPublisherWithChannel(ch, "booking.events")
	if err := p.Notify(context.Background(), models.EventBookingConfirmed, snapshot()); err != nil {
		t.Fatal(err)
	}
	if ch.exchange != "booking.events" || ch.key != "booking.confirmed" {
		t.Fatalf("published to %s/%s", ch.exchange, ch.key)
	}
	if ch.msg.ContentType != "application/json" {
		t.Errorf("content type = %q", ch.msg.ContentType)
	}
	var body publishedEvent
	if err := json.Unmarshal(ch.msg.Body, &body); err != nil {
		t.Fatal(err)
	}
	if body.Booking.ID != "b-1" || body.Kind != models.EventBookingConfirmed {
		t.Errorf("body = %+v", body)
	}
	if err := p.Close(); err != nil || !ch.closed {
		t.Errorf("Close() err=%v closed=%v", err, ch.closed)
	}
}
