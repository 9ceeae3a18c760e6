package model

import (
	"fmt"
	"sync"
	"time"

	"github.com/OldStager01/leakwatch/internal/logger"
	"github.com/OldStager01/leakwatch/internal/pca"
	"github.com/OldStager01/leakwatch/internal/resilience"
)

const (
	NamePoint    = "point"
	NameSequence = "sequence"
	NameForecast = "forecast"
	NamePCA      = "pca"
)

type BreakerConfig struct {
	MaxFailures int
	Timeout     time.Duration
	HalfOpenMax int
}

// Registry owns the model slots shared by the scoring components.
type Registry struct {
	Point    *Slot[PointModel]
	Sequence *Slot[SequenceModel]
	Forecast *Slot[ForecastModel]
	PCA      *Slot[*pca.Scorer]

	// window is the sequence buffer length a PCA basis must span, 0 when
	// unchecked.
	window int

	mu       sync.Mutex
	breakers map[string]*resilience.CircuitBreaker
}

type RegistryOption func(*Registry)

// WithBreakers guards every model loaded through Apply with a circuit
// breaker per slot.
func WithBreakers(cfg BreakerConfig, onStateChange func(name string, from, to resilience.State)) RegistryOption {
	return func(r *Registry) {
		for _, name := range []string{NamePoint, NameSequence, NameForecast} {
			r.breakers[name] = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
				Name:          name + "-model",
				MaxFailures:   cfg.MaxFailures,
				Timeout:       cfg.Timeout,
				HalfOpenMax:   cfg.HalfOpenMax,
				OnStateChange: onStateChange,
			})
		}
	}
}

// WithWindow makes Apply reject a PCA basis that does not span exactly n
// readings, the length of the sequence buffer it will score.
func WithWindow(n int) RegistryOption {
	return func(r *Registry) {
		r.window = n
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		Point:    NewSlot[PointModel](NamePoint),
		Sequence: NewSlot[SequenceModel](NameSequence),
		Forecast: NewSlot[ForecastModel](NameForecast),
		PCA:      NewSlot[*pca.Scorer](NamePCA),
		breakers: make(map[string]*resilience.CircuitBreaker),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Apply instantiates every model of b and swaps them in. A bundle that
// fails to build leaves the registry untouched.
func (r *Registry) Apply(b *Bundle) error {
	m, err := b.build()
	if err != nil {
		return err
	}
	if m.pca != nil && r.window > 0 && m.pca.Window() != r.window {
		return fmt.Errorf("%w: pca basis spans %d readings, sequence buffer holds %d",
			ErrShapeMismatch, m.pca.Window(), r.window)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, cb := range r.breakers {
		cb.Reset()
	}

	if m.point != nil {
		var pm PointModel = m.point
		if cb, ok := r.breakers[NamePoint]; ok {
			pm = GuardPoint(pm, cb)
		}
		r.Point.Store(pm, b.Version)
	} else {
		r.Point.Clear()
	}

	if m.sequence != nil {
		var sm SequenceModel = m.sequence
		if cb, ok := r.breakers[NameSequence]; ok {
			sm = GuardSequence(sm, cb)
		}
		r.Sequence.Store(sm, b.Version)
	} else {
		r.Sequence.Clear()
	}

	if m.forecast != nil {
		var fm ForecastModel = m.forecast
		if cb, ok := r.breakers[NameForecast]; ok {
			fm = GuardForecast(fm, cb)
		}
		r.Forecast.Store(fm, b.Version)
	} else {
		r.Forecast.Clear()
	}

	if m.pca != nil {
		r.PCA.Store(m.pca, b.Version)
	} else {
		r.PCA.Clear()
	}

	logger.WithComponent("model").WithFields(map[string]interface{}{
		"version":  b.Version,
		"point":    r.Point.State(),
		"sequence": r.Sequence.State(),
		"forecast": r.Forecast.State(),
		"pca":      r.PCA.State(),
	}).Info("Model bundle applied")
	return nil
}

// LoadFile reads and applies the bundle at path.
func (r *Registry) LoadFile(path string) (string, error) {
	b, err := LoadBundleFile(path)
	if err != nil {
		return "", err
	}
	if err := r.Apply(b); err != nil {
		return "", err
	}
	return b.Version, nil
}

type Status struct {
	Name    string            `json:"name"`
	State   State             `json:"state"`
	Version string            `json:"version,omitempty"`
	Breaker *resilience.Stats `json:"breaker,omitempty"`
}

func (r *Registry) Status() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []Status{
		{Name: NamePoint, State: r.Point.State(), Version: r.Point.Version()},
		{Name: NameSequence, State: r.Sequence.State(), Version: r.Sequence.Version()},
		{Name: NameForecast, State: r.Forecast.State(), Version: r.Forecast.Version()},
		{Name: NamePCA, State: r.PCA.State(), Version: r.PCA.Version()},
	}
	for i := range out {
		if cb, ok := r.breakers[out[i].Name]; ok {
			s := cb.Stats()
			out[i].Breaker = &s
		}
	}
	return out
}
