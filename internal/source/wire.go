package source

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/OldStager01/leakwatch/pkg/models"
)

// convert drops readings outside the physical sensor ranges and sorts the
// rest by timestamp. Missing or unparsable timestamps take now.
func convert(in []models.WireReading, now time.Time) (readings []models.SensorReading, discarded int) {
	readings = make([]models.SensorReading, 0, len(in))
	for _, w := range in {
		r := w.Reading(now)
		if !r.InRange() {
			discarded++
			continue
		}
		readings = append(readings, r)
	}
	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].Timestamp.Before(readings[j].Timestamp)
	})
	return readings, discarded
}

// decodePayload accepts a single reading or an array of readings.
func decodePayload(data []byte) ([]models.WireReading, error) {
	var many []models.WireReading
	if err := json.Unmarshal(data, &many); err == nil {
		return many, nil
	}
	var one models.WireReading
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return []models.WireReading{one}, nil
}
