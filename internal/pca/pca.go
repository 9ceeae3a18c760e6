// Package pca scores windows of normalized readings by their reconstruction
// error against a principal component basis trained offline.
package pca

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/OldStager01/leakwatch/pkg/models"
)

const (
	DefaultThreshold = 0.05
	featuresPerStep  = 3
)

var ErrDimension = errors.New("pca basis dimension mismatch")

// Basis is the serialized form of a trained basis. Vectors are laid out
// reading-major: [f0, p0, v0, f1, p1, v1, ...].
type Basis struct {
	Components [][]float64 `json:"components"`
	Mean       []float64   `json:"mean"`
	Threshold  float64     `json:"threshold"`
}

type Scorer struct {
	components *mat.Dense
	mean       *mat.VecDense
	threshold  float64
	window     int
}

func NewScorer(b Basis) (*Scorer, error) {
	dim := len(b.Mean)
	if dim == 0 || dim%featuresPerStep != 0 {
		return nil, fmt.Errorf("%w: mean has length %d", ErrDimension, dim)
	}
	if len(b.Components) == 0 {
		return nil, fmt.Errorf("%w: no components", ErrDimension)
	}

	data := make([]float64, 0, len(b.Components)*dim)
	for i, c := range b.Components {
		if len(c) != dim {
			return nil, fmt.Errorf("%w: component %d has length %d, want %d", ErrDimension, i, len(c), dim)
		}
		data = append(data, c...)
	}

	threshold := b.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	return &Scorer{
		components: mat.NewDense(len(b.Components), dim, data),
		mean:       mat.NewVecDense(dim, append([]float64(nil), b.Mean...)),
		threshold:  threshold,
		window:     dim / featuresPerStep,
	}, nil
}

// Window is the number of readings a score needs.
func (s *Scorer) Window() int {
	return s.window
}

func (s *Scorer) Threshold() float64 {
	return s.threshold
}

// ReconstructionError returns the mean squared error of projecting the
// newest Window readings onto the basis. ok is false when fewer readings
// are available.
func (s *Scorer) ReconstructionError(readings []models.NormalizedReading) (mse float64, ok bool) {
	if len(readings) < s.window {
		return 0, false
	}
	readings = readings[len(readings)-s.window:]

	dim := s.window * featuresPerStep
	x := mat.NewVecDense(dim, nil)
	for i, r := range readings {
		v := r.Vector()
		for j := 0; j < featuresPerStep; j++ {
			x.SetVec(i*featuresPerStep+j, v[j])
		}
	}
	x.SubVec(x, s.mean)

	k, _ := s.components.Dims()
	coeffs := mat.NewVecDense(k, nil)
	coeffs.MulVec(s.components, x)

	recon := mat.NewVecDense(dim, nil)
	recon.MulVec(s.components.T(), coeffs)

	var sum float64
	for i := 0; i < dim; i++ {
		d := x.AtVec(i) - recon.AtVec(i)
		sum += d * d
	}
	return sum / float64(dim), true
}

// Score maps the reconstruction error into [0,1]. Errors at or below the
// threshold and short windows score 0.
func (s *Scorer) Score(readings []models.NormalizedReading) float64 {
	mse, ok := s.ReconstructionError(readings)
	if !ok || mse <= s.threshold {
		return 0
	}
	return 1 / (1 + math.Exp(-5*(mse-2*s.threshold)))
}
