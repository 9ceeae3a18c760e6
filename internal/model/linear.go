package model

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// LogisticModel is a point model: sigmoid(w·x + b).
type LogisticModel struct {
	Weights [3]float64 `json:"weights"`
	Bias    float64    `json:"bias"`
}

func (m *LogisticModel) Score(ctx context.Context, x Features) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	z := m.Bias
	for i := range x {
		z += m.Weights[i] * x[i]
	}
	return 1 / (1 + math.Exp(-z)), nil
}

// LinearAutoencoder is a sequence model that reconstructs a reading through
// a linear bottleneck: x' = D·(E·x).
type LinearAutoencoder struct {
	encoder *mat.Dense
	decoder *mat.Dense
}

// AutoencoderSpec is the serialized form of a LinearAutoencoder.
type AutoencoderSpec struct {
	Encoder [][]float64 `json:"encoder"`
	Decoder [][]float64 `json:"decoder"`
}

func denseFromRows(rows [][]float64, cols int) (*mat.Dense, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty matrix", ErrShapeMismatch)
	}
	data := make([]float64, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrShapeMismatch, i, len(row), cols)
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), cols, data), nil
}

func NewLinearAutoencoder(spec AutoencoderSpec) (*LinearAutoencoder, error) {
	enc, err := denseFromRows(spec.Encoder, 3)
	if err != nil {
		return nil, fmt.Errorf("encoder: %w", err)
	}
	latent, _ := enc.Dims()
	dec, err := denseFromRows(spec.Decoder, latent)
	if err != nil {
		return nil, fmt.Errorf("decoder: %w", err)
	}
	if r, _ := dec.Dims(); r != 3 {
		return nil, fmt.Errorf("%w: decoder has %d rows, want 3", ErrShapeMismatch, r)
	}
	return &LinearAutoencoder{encoder: enc, decoder: dec}, nil
}

func (m *LinearAutoencoder) ReconstructionError(ctx context.Context, x Features) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	in := mat.NewVecDense(3, []float64{x[0], x[1], x[2]})
	latent, _ := m.encoder.Dims()

	code := mat.NewVecDense(latent, nil)
	code.MulVec(m.encoder, in)
	out := mat.NewVecDense(3, nil)
	out.MulVec(m.decoder, code)

	out.SubVec(in, out)
	return mat.Dot(out, out) / 3, nil
}

// LinearForecaster maps a flattened window to per-hour probabilities:
// sigmoid(W·window + b), one row of W per forecast hour.
type LinearForecaster struct {
	inputLength int
	weights     *mat.Dense
	bias        *mat.VecDense
}

// ForecasterSpec is the serialized form of a LinearForecaster.
type ForecasterSpec struct {
	InputLength int         `json:"input_length"`
	Weights     [][]float64 `json:"weights"`
	Bias        []float64   `json:"bias"`
}

func NewLinearForecaster(spec ForecasterSpec) (*LinearForecaster, error) {
	if spec.InputLength <= 0 {
		return nil, fmt.Errorf("%w: input length %d", ErrShapeMismatch, spec.InputLength)
	}
	w, err := denseFromRows(spec.Weights, spec.InputLength*3)
	if err != nil {
		return nil, fmt.Errorf("weights: %w", err)
	}
	hours, _ := w.Dims()
	if len(spec.Bias) != hours {
		return nil, fmt.Errorf("%w: bias has %d entries, want %d", ErrShapeMismatch, len(spec.Bias), hours)
	}
	return &LinearForecaster{
		inputLength: spec.InputLength,
		weights:     w,
		bias:        mat.NewVecDense(hours, append([]float64(nil), spec.Bias...)),
	}, nil
}

func (m *LinearForecaster) InputLength() int {
	return m.inputLength
}

func (m *LinearForecaster) Horizon() int {
	h, _ := m.weights.Dims()
	return h
}

func (m *LinearForecaster) Forecast(ctx context.Context, window []Features) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(window) != m.inputLength {
		return nil, fmt.Errorf("%w: window of %d readings, want %d", ErrShapeMismatch, len(window), m.inputLength)
	}

	flat := make([]float64, 0, m.inputLength*3)
	for _, f := range window {
		flat = append(flat, f[:]...)
	}

	out := mat.NewVecDense(m.Horizon(), nil)
	out.MulVec(m.weights, mat.NewVecDense(len(flat), flat))
	out.AddVec(out, m.bias)

	probs := make([]float64, out.Len())
	for i := range probs {
		probs[i] = 1 / (1 + math.Exp(-out.AtVec(i)))
	}
	return probs, nil
}
