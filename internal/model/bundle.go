package model

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/OldStager01/leakwatch/internal/pca"
)

// Bundle is the on-disk description of every model the engine can use.
// Absent sections leave the matching slot unloaded.
type Bundle struct {
	Version  string           `json:"version"`
	Point    *LogisticModel   `json:"point,omitempty"`
	Sequence *AutoencoderSpec `json:"sequence,omitempty"`
	Forecast *ForecasterSpec  `json:"forecast,omitempty"`
	PCA      *pca.Basis       `json:"pca,omitempty"`
}

func ParseBundle(data []byte) (*Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse model bundle: %w", err)
	}
	return &b, nil
}

func LoadBundleFile(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model bundle: %w", err)
	}
	return ParseBundle(data)
}

// built holds the instantiated models of a bundle.
type built struct {
	point    PointModel
	sequence SequenceModel
	forecast ForecastModel
	pca      *pca.Scorer
}

func (b *Bundle) build() (*built, error) {
	out := &built{}
	if b.Point != nil {
		p := *b.Point
		out.point = &p
	}
	if b.Sequence != nil {
		ae, err := NewLinearAutoencoder(*b.Sequence)
		if err != nil {
			return nil, fmt.Errorf("sequence model: %w", err)
		}
		out.sequence = ae
	}
	if b.Forecast != nil {
		f, err := NewLinearForecaster(*b.Forecast)
		if err != nil {
			return nil, fmt.Errorf("forecast model: %w", err)
		}
		out.forecast = f
	}
	if b.PCA != nil {
		s, err := pca.NewScorer(*b.PCA)
		if err != nil {
			return nil, fmt.Errorf("pca basis: %w", err)
		}
		out.pca = s
	}
	return out, nil
}
