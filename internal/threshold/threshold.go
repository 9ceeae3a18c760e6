// Package threshold adapts the leak detection threshold from user feedback.
package threshold

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/OldStager01/leakwatch/internal/logger"
	"github.com/OldStager01/leakwatch/pkg/models"
)

const (
	DefaultInitial     = 0.65
	DefaultMaxFeedback = 100
	MinFeedback        = 10

	Step    = 0.05
	Ceiling = 0.85
	Floor   = 0.5

	lowAccuracy  = 0.6
	highAccuracy = 0.9
)

// Controller holds the shared detection threshold. Value is lock free;
// feedback is serialized behind a mutex.
type Controller struct {
	value atomic.Uint64

	mu          sync.Mutex
	feedback    []models.FeedbackRecord
	maxFeedback int

	onChange func(models.ThresholdChange)
	log      *logrus.Entry
}

type Option func(*Controller)

// WithMaxFeedback bounds the retained feedback records.
func WithMaxFeedback(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.maxFeedback = n
		}
	}
}

// WithChangeHook is called after every retune that moves the threshold.
func WithChangeHook(fn func(models.ThresholdChange)) Option {
	return func(c *Controller) { c.onChange = fn }
}

func New(initial float64, opts ...Option) *Controller {
	if initial <= 0 || initial >= 1 {
		initial = DefaultInitial
	}
	c := &Controller{
		maxFeedback: DefaultMaxFeedback,
		log:         logger.WithComponent("threshold"),
	}
	c.store(initial)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) store(v float64) {
	c.value.Store(math.Float64bits(v))
}

// Value returns the current threshold.
func (c *Controller) Value() float64 {
	return math.Float64frombits(c.value.Load())
}

// RecordFeedback stores a verdict on the reading, together with its
// normalized features, and retunes once enough feedback has accumulated.
func (c *Controller) RecordFeedback(r models.SensorReading, normalized [3]float64, correct bool) models.FeedbackRecord {
	rec := models.NewFeedbackRecord([3]float64{r.Flow, r.Pressure, r.Vibration}, correct)
	rec.Normalized = normalized
	c.Append(rec)
	return rec
}

// Append adds an already built record, as RecordFeedback does.
func (c *Controller) Append(rec models.FeedbackRecord) {
	c.mu.Lock()
	c.push(rec)
	change, changed := c.retuneLocked()
	c.mu.Unlock()

	if changed {
		c.notify(change)
	}
}

// Restore replaces the feedback window without retuning, keeping the most
// recent records.
func (c *Controller) Restore(records []models.FeedbackRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.feedback = c.feedback[:0]
	for _, rec := range records {
		c.push(rec)
	}
}

func (c *Controller) push(rec models.FeedbackRecord) {
	c.feedback = append(c.feedback, rec)
	if over := len(c.feedback) - c.maxFeedback; over > 0 {
		c.feedback = append(c.feedback[:0], c.feedback[over:]...)
	}
}

// Retune applies the accuracy rule to the retained feedback and returns the
// threshold before and after.
func (c *Controller) Retune() (oldValue, newValue float64) {
	c.mu.Lock()
	change, changed := c.retuneLocked()
	c.mu.Unlock()

	if changed {
		c.notify(change)
		return change.Old, change.New
	}
	v := c.Value()
	return v, v
}

func (c *Controller) retuneLocked() (models.ThresholdChange, bool) {
	if len(c.feedback) < MinFeedback {
		return models.ThresholdChange{}, false
	}
	correct := 0
	for _, rec := range c.feedback {
		if rec.Correct {
			correct++
		}
	}
	ratio := float64(correct) / float64(len(c.feedback))

	old := c.Value()
	next := Next(old, ratio)
	if next == old {
		return models.ThresholdChange{}, false
	}
	c.store(next)

	return models.ThresholdChange{
		Old:           old,
		New:           next,
		FeedbackCount: len(c.feedback),
		Ratio:         ratio,
	}, true
}

func (c *Controller) notify(change models.ThresholdChange) {
	c.log.WithFields(logrus.Fields{
		"old":      change.Old,
		"new":      change.New,
		"ratio":    change.Ratio,
		"feedback": change.FeedbackCount,
	}).Info("Detection threshold adjusted")
	if c.onChange != nil {
		c.onChange(change)
	}
}

// Next is the retune rule: low accuracy raises the threshold, very high
// accuracy lowers it, within [Floor, Ceiling].
func Next(current, ratio float64) float64 {
	switch {
	case ratio < lowAccuracy:
		return math.Min(current+Step, Ceiling)
	case ratio > highAccuracy:
		return math.Max(current-Step, Floor)
	default:
		return current
	}
}

// Feedback returns a copy of the retained records, oldest first.
func (c *Controller) Feedback() []models.FeedbackRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.FeedbackRecord, len(c.feedback))
	copy(out, c.feedback)
	return out
}

// Accuracy returns the share of correct feedback and the number of records.
func (c *Controller) Accuracy() (ratio float64, count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.feedback) == 0 {
		return 0, 0
	}
	correct := 0
	for _, rec := range c.feedback {
		if rec.Correct {
			correct++
		}
	}
	return float64(correct) / float64(len(c.feedback)), len(c.feedback)
}
