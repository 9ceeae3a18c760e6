package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/OldStager01/leakwatch/pkg/models"
)

func TestSensorReading_InRange(t *testing.T) {
	tests := []struct {
		name     string
		reading  models.SensorReading
		expected bool
	}{
		{"nominal", models.SensorReading{Flow: 2, Pressure: 80, Vibration: 0.1}, true},
		{"upper bounds", models.SensorReading{Flow: 10, Pressure: 200, Vibration: 2}, true},
		{"negative flow", models.SensorReading{Flow: -0.1, Pressure: 80, Vibration: 0.1}, false},
		{"pressure too high", models.SensorReading{Flow: 2, Pressure: 201, Vibration: 0.1}, false},
		{"vibration too high", models.SensorReading{Flow: 2, Pressure: 80, Vibration: 2.5}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.reading.InRange())
		})
	}
}

func TestClassifyTrend(t *testing.T) {
	tests := []struct {
		delta    float64
		expected models.Trend
	}{
		{0.2, models.TrendWorseningFast},
		{0.07, models.TrendRising},
		{0.0, models.TrendStable},
		{-0.07, models.TrendFalling},
		{-0.2, models.TrendImprovingFast},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, models.ClassifyTrend(tt.delta), "delta %v", tt.delta)
	}
}

func TestClassifyRisk(t *testing.T) {
	assert.Equal(t, models.RiskHigh, models.ClassifyRisk(0.9, 0.65))
	assert.Equal(t, models.RiskPossible, models.ClassifyRisk(0.7, 0.65))
	assert.Equal(t, models.RiskMonitor, models.ClassifyRisk(0.5, 0.65))
	assert.Equal(t, models.RiskNormal, models.ClassifyRisk(0.2, 0.65))
}

func TestImportance_Ranked(t *testing.T) {
	imp := models.Importance{
		models.FactorFlow:      0.2,
		models.FactorPressure:  0.5,
		models.FactorVibration: 0.2,
	}

	ranked := imp.Ranked()

	assert.Equal(t, models.FactorPressure, ranked[0].Factor)
	assert.Equal(t, models.FactorFlow, ranked[1].Factor)
	assert.Equal(t, models.FactorVibration, ranked[2].Factor)

	top, ok := imp.Top()
	assert.True(t, ok)
	assert.Equal(t, models.FactorPressure, top.Factor)

	_, ok = models.Importance{}.Top()
	assert.False(t, ok)
}

func TestImportance_Normalized(t *testing.T) {
	imp := models.Importance{models.FactorFlow: 2, models.FactorPressure: 2}
	assert.InDelta(t, 1.0, imp.Normalized().Sum(), 1e-9)
	assert.Equal(t, 2.0, imp[models.FactorFlow], "original left untouched")
}

func TestForecast_HoursUntilCritical(t *testing.T) {
	f := models.Forecast{Hours: []models.HourlyPrediction{
		{HourOffset: 1, Probability: 0.5},
		{HourOffset: 2, Probability: 0.8},
		{HourOffset: 3, Probability: 0.9},
	}}

	assert.Equal(t, 2, f.HoursUntilCritical(0.75, 24))
	assert.Equal(t, 24, f.HoursUntilCritical(0.95, 24))
	assert.Equal(t, 24, models.Forecast{}.HoursUntilCritical(0.75, 24))
}

func TestAlertLevelFor(t *testing.T) {
	tests := []struct {
		hours    int
		expected models.AlertLevel
	}{
		{1, models.AlertImmediate},
		{5, models.AlertImmediate},
		{6, models.AlertCritical},
		{11, models.AlertCritical},
		{12, models.AlertUrgent},
		{24, models.AlertUrgent},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, models.AlertLevelFor(tt.hours), "hours %d", tt.hours)
	}
}

func TestNewEvent(t *testing.T) {
	before := time.Now()
	e := models.NewEvent(models.EventTypeLeakDetected, "inst-1", "leak").
		WithSeverity(models.SeverityCritical).
		WithTraceID("t-1")

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "inst-1", e.InstallationID)
	assert.Equal(t, models.SeverityCritical, e.Severity)
	assert.Equal(t, "t-1", e.TraceID)
	assert.False(t, e.Timestamp.Before(before))
}

func TestZScores_LeakSignature(t *testing.T) {
	assert.True(t, models.ZScores{Flow: 2, Pressure: -2}.LeakSignature(1.5))
	assert.False(t, models.ZScores{Flow: 2, Pressure: -1}.LeakSignature(1.5))
	assert.False(t, models.ZScores{Flow: 1, Pressure: -2}.LeakSignature(1.5))
}
