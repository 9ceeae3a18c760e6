package events

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/OldStager01/leakwatch/internal/logger"
	"github.com/OldStager01/leakwatch/pkg/models"
)

// AlertStore persists raised alerts.
type AlertStore interface {
	SaveAlert(ctx context.Context, alert *models.Alert) error
}

// EventLogger writes every event to the structured log and persists
// alert_raised events when a store is configured.
type EventLogger struct {
	store     AlertStore
	eventChan <-chan *models.Event
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	started   atomic.Bool
}

func NewEventLogger(store AlertStore, eventChan <-chan *models.Event) *EventLogger {
	ctx, cancel := context.WithCancel(context.Background())
	return &EventLogger{
		store:     store,
		eventChan: eventChan,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

func (l *EventLogger) Start() {
	if l.started.CompareAndSwap(false, true) {
		go l.run()
	}
}

// Stop cancels the logger and waits for the in-flight event.
func (l *EventLogger) Stop() {
	l.cancel()
	if l.started.Load() {
		<-l.done
	}
}

func (l *EventLogger) run() {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			return
		case event, ok := <-l.eventChan:
			if !ok {
				return
			}
			l.processEvent(event)
		}
	}
}

func (l *EventLogger) processEvent(event *models.Event) {
	entry := logger.WithFields(map[string]interface{}{
		"event_type":      event.Type,
		"installation_id": event.InstallationID,
		"severity":        event.Severity,
		"trace_id":        event.TraceID,
	})

	switch {
	case event.Type == models.EventTypeReadingIngested:
		entry.Debug(event.Message)
	case event.Severity == models.SeverityCritical:
		entry.Error(event.Message)
	case event.Severity == models.SeverityWarning:
		entry.Warn(event.Message)
	default:
		entry.Info(event.Message)
	}

	if event.Type == models.EventTypeAlertRaised {
		l.persistAlert(event)
	}
}

func (l *EventLogger) persistAlert(event *models.Event) {
	if l.store == nil {
		return
	}
	alert, ok := event.Data.(*models.Alert)
	if !ok {
		return
	}
	if err := l.store.SaveAlert(l.ctx, alert); err != nil {
		logger.Errorf("Failed to persist alert %s: %v", alert.ID, err)
	}
}

func LogToJSON(event *models.Event) string {
	data, _ := json.Marshal(event)
	return string(data)
}
