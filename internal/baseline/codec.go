package baseline

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaVersion is the version written by EncodeProfile.
const SchemaVersion = 1

//go:embed profile.schema.json
var profileSchemaJSON []byte

const profileSchemaURL = "profile.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func profileSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.AssertFormat = true
		if err := compiler.AddResource(profileSchemaURL, bytes.NewReader(profileSchemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add profile schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile(profileSchemaURL)
	})
	return schema, schemaErr
}

type channelDoc struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

type hourlyDoc struct {
	Hour        int        `json:"hour"`
	Flow        channelDoc `json:"flow"`
	Pressure    channelDoc `json:"pressure"`
	Vibration   channelDoc `json:"vibration"`
	SampleCount int        `json:"sample_count"`
}

type profileDoc struct {
	SchemaVersion           int         `json:"schema_version"`
	InstallationID          string      `json:"installation_id"`
	Flow                    channelDoc  `json:"flow"`
	Pressure                channelDoc  `json:"pressure"`
	Vibration               channelDoc  `json:"vibration"`
	FlowPressureCorrelation float64     `json:"flow_pressure_correlation"`
	LastUpdated             time.Time   `json:"last_updated"`
	HourlyPatterns          []hourlyDoc `json:"hourly_patterns"`
}

func toDoc(c ChannelStats) channelDoc {
	return channelDoc{Mean: c.Mean, StdDev: c.StdDev}
}

func fromDoc(d channelDoc) ChannelStats {
	return ChannelStats{Mean: d.Mean, StdDev: d.StdDev}
}

// EncodeProfile serializes p as a versioned JSON document.
func EncodeProfile(installationID string, p *Profile) ([]byte, error) {
	doc := profileDoc{
		SchemaVersion:           SchemaVersion,
		InstallationID:          installationID,
		Flow:                    toDoc(p.Flow),
		Pressure:                toDoc(p.Pressure),
		Vibration:               toDoc(p.Vibration),
		FlowPressureCorrelation: p.FlowPressureCorrelation,
		LastUpdated:             p.LastUpdated.UTC(),
		HourlyPatterns:          make([]hourlyDoc, 0, len(p.Hourly)),
	}

	hours := make([]int, 0, len(p.Hourly))
	for h := range p.Hourly {
		hours = append(hours, h)
	}
	sort.Ints(hours)
	for _, h := range hours {
		hp := p.Hourly[h]
		doc.HourlyPatterns = append(doc.HourlyPatterns, hourlyDoc{
			Hour:        h,
			Flow:        toDoc(hp.Flow),
			Pressure:    toDoc(hp.Pressure),
			Vibration:   toDoc(hp.Vibration),
			SampleCount: hp.SampleCount,
		})
	}

	return json.MarshalIndent(doc, "", "  ")
}

// DecodeProfile validates data against the profile schema and decodes it.
// Every failure wraps ErrMalformedProfile.
func DecodeProfile(data []byte) (*Profile, string, error) {
	sch, err := profileSchema()
	if err != nil {
		return nil, "", err
	}

	var instance interface{}
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformedProfile, err)
	}
	if err := sch.Validate(instance); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformedProfile, err)
	}

	var doc profileDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformedProfile, err)
	}

	p := &Profile{
		Flow:                    fromDoc(doc.Flow),
		Pressure:                fromDoc(doc.Pressure),
		Vibration:               fromDoc(doc.Vibration),
		FlowPressureCorrelation: doc.FlowPressureCorrelation,
		LastUpdated:             doc.LastUpdated,
		Hourly:                  make(map[int]HourlyPattern, len(doc.HourlyPatterns)),
	}
	for _, hd := range doc.HourlyPatterns {
		if _, dup := p.Hourly[hd.Hour]; dup {
			return nil, "", fmt.Errorf("%w: duplicate hourly pattern for hour %d", ErrMalformedProfile, hd.Hour)
		}
		p.Hourly[hd.Hour] = HourlyPattern{
			Flow:        fromDoc(hd.Flow),
			Pressure:    fromDoc(hd.Pressure),
			Vibration:   fromDoc(hd.Vibration),
			SampleCount: hd.SampleCount,
		}
	}
	return p, doc.InstallationID, nil
}
