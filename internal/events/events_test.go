package events_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/leakwatch/internal/events"
	"github.com/OldStager01/leakwatch/pkg/models"
)

func receive(t *testing.T, ch <-chan *models.Event) *models.Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestEventBus_RoutesByType(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()

	leaks := bus.Subscribe(models.EventTypeLeakDetected)
	all := bus.SubscribeAll()
	pub := events.NewPublisher(bus, "inst-1")

	pub.ThresholdAdjusted(models.ThresholdChange{Old: 0.65, New: 0.7})
	pub.LeakDetected(0.9, nil)

	assert.Equal(t, models.EventTypeThresholdAdjusted, receive(t, all).Type)
	got := receive(t, all)
	assert.Equal(t, models.EventTypeLeakDetected, got.Type)
	assert.Equal(t, models.SeverityCritical, got.Severity)
	assert.Equal(t, "inst-1", got.InstallationID)

	assert.Equal(t, models.EventTypeLeakDetected, receive(t, leaks).Type)
	assert.Len(t, leaks, 0)
}

func TestEventBus_DropsWhenFull(t *testing.T) {
	bus := events.NewEventBus(1)
	defer bus.Close()
	sub := bus.Subscribe(models.EventTypeError)
	pub := events.NewPublisher(bus, "inst-1")

	pub.Error("first", errors.New("boom"))
	pub.Error("second", errors.New("boom"))

	assert.Equal(t, "first", receive(t, sub).Message)
	assert.Len(t, sub, 0)
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()

	sub := bus.SubscribeAll()
	assert.Equal(t, 1, bus.SubscriberCount(models.EventTypeAlertRaised))

	bus.Unsubscribe(sub)

	assert.Equal(t, 0, bus.SubscriberCount(models.EventTypeAlertRaised))
	_, open := <-sub
	assert.False(t, open)
}

func TestEventBus_CloseIsIdempotent(t *testing.T) {
	bus := events.NewEventBus(10)
	sub := bus.Subscribe(models.EventTypeError, models.EventTypeLeakDetected)

	bus.Close()
	bus.Close()

	_, open := <-sub
	assert.False(t, open)

	late := bus.SubscribeAll()
	_, open = <-late
	assert.False(t, open)
}

func TestPublisher_TraceID(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()
	sub := bus.Subscribe(models.EventTypeModelReloaded)

	events.NewPublisher(bus, "inst-1").WithTraceID("trace-9").ModelReloaded("v2", nil)

	e := receive(t, sub)
	assert.Equal(t, "trace-9", e.TraceID)
	assert.Equal(t, models.SeverityInfo, e.Severity)
}

func TestPublisher_NilIsNoop(t *testing.T) {
	var pub *events.Publisher
	assert.NotPanics(t, func() {
		pub.LeakDetected(0.9, nil)
	})
}

type memAlertStore struct {
	mu     sync.Mutex
	alerts []*models.Alert
}

func (m *memAlertStore) SaveAlert(_ context.Context, a *models.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, a)
	return nil
}

func (m *memAlertStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.alerts)
}

func TestEventLogger_PersistsAlerts(t *testing.T) {
	bus := events.NewEventBus(10)
	store := &memAlertStore{}
	l := events.NewEventLogger(store, bus.SubscribeAll())
	l.Start()

	pub := events.NewPublisher(bus, "inst-1")
	alert := models.NewAlert("inst-1", models.AlertImmediate, "fuga", models.AlertMetadata{HoursUntilCritical: 2})
	pub.AlertRaised(alert)
	pub.LeakDetected(0.7, nil)

	require.Eventually(t, func() bool { return store.count() == 1 }, time.Second, 10*time.Millisecond)

	l.Stop()
	bus.Close()
}

func TestEventLogger_StopWithoutStart(t *testing.T) {
	l := events.NewEventLogger(nil, make(chan *models.Event))
	assert.NotPanics(t, l.Stop)
}
