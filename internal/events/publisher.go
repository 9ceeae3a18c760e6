package events

import (
	"fmt"

	"github.com/OldStager01/leakwatch/pkg/models"
)

type Publisher struct {
	bus            *EventBus
	installationID string
	traceID        string
}

func NewPublisher(bus *EventBus, installationID string) *Publisher {
	return &Publisher{bus: bus, installationID: installationID}
}

func (p *Publisher) WithTraceID(traceID string) *Publisher {
	return &Publisher{
		bus:            p.bus,
		installationID: p.installationID,
		traceID:        traceID,
	}
}

func (p *Publisher) publish(event *models.Event) {
	if p == nil || p.bus == nil {
		return
	}
	if p.traceID != "" {
		event.TraceID = p.traceID
	}
	p.bus.Publish(event)
}

func (p *Publisher) ReadingIngested(a *models.Assessment) {
	event := models.NewEvent(models.EventTypeReadingIngested, p.id(), "Reading ingested").
		WithData(a)
	p.publish(event)
}

func (p *Publisher) BaselineCalibrated(stats models.BaselineStats) {
	msg := fmt.Sprintf("Baseline calibrated with %d samples", stats.SampleCount)
	event := models.NewEvent(models.EventTypeBaselineCalibrated, p.id(), msg).
		WithData(stats)
	p.publish(event)
}

func (p *Publisher) LeakDetected(probability float64, data interface{}) {
	msg := fmt.Sprintf("Leak detected (%.0f%%)", probability*100)
	event := models.NewEvent(models.EventTypeLeakDetected, p.id(), msg).
		WithSeverity(models.SeverityWarning).
		WithData(data)
	if probability > 0.8 {
		event.WithSeverity(models.SeverityCritical)
	}
	p.publish(event)
}

func (p *Publisher) AlertRaised(alert *models.Alert) {
	event := models.NewEvent(models.EventTypeAlertRaised, p.id(), alert.Title()).
		WithData(alert)
	switch alert.Level {
	case models.AlertImmediate, models.AlertCritical:
		event.WithSeverity(models.SeverityCritical)
	default:
		event.WithSeverity(models.SeverityWarning)
	}
	p.publish(event)
}

func (p *Publisher) ThresholdAdjusted(change models.ThresholdChange) {
	msg := fmt.Sprintf("Threshold adjusted: %.2f -> %.2f", change.Old, change.New)
	event := models.NewEvent(models.EventTypeThresholdAdjusted, p.id(), msg).
		WithData(change)
	p.publish(event)
}

func (p *Publisher) ModelReloaded(version string, err error) {
	if err != nil {
		event := models.NewEvent(models.EventTypeModelReloaded, p.id(), "Model reload failed").
			WithSeverity(models.SeverityWarning).
			WithData(map[string]interface{}{
				"error": err.Error(),
			})
		p.publish(event)
		return
	}
	event := models.NewEvent(models.EventTypeModelReloaded, p.id(), "Models reloaded: "+version).
		WithData(map[string]interface{}{
			"version": version,
		})
	p.publish(event)
}

func (p *Publisher) Error(message string, err error) {
	event := models.NewEvent(models.EventTypeError, p.id(), message).
		WithSeverity(models.SeverityCritical).
		WithData(map[string]interface{}{
			"error": err.Error(),
		})
	p.publish(event)
}

func (p *Publisher) id() string {
	if p == nil {
		return ""
	}
	return p.installationID
}
