package baseline

import (
	"context"
	"errors"
	"fmt"

	"github.com/OldStager01/leakwatch/internal/logger"
	"github.com/OldStager01/leakwatch/pkg/models"
)

// Save encodes the current profile into store.
func (b *Baseline) Save(ctx context.Context, store Store) error {
	profile := b.Profile()
	if profile == nil {
		return ErrNotCalibrated
	}

	data, err := EncodeProfile(b.cfg.InstallationID, profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := store.SaveProfile(ctx, b.cfg.InstallationID, data); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}

	logger.WithInstallation(b.cfg.InstallationID).
		WithField("hourly_patterns", len(profile.Hourly)).
		Debug("Baseline profile saved")
	return nil
}

// Load restores a saved profile. A missing profile leaves the baseline
// calibrating and is not an error. A malformed one, or one saved for a
// different installation, is discarded, the baseline re-enters the
// calibrating phase and the error wraps ErrMalformedProfile.
func (b *Baseline) Load(ctx context.Context, store Store) error {
	log := logger.WithInstallation(b.cfg.InstallationID)

	data, err := store.LoadProfile(ctx, b.cfg.InstallationID)
	if errors.Is(err, ErrProfileNotFound) {
		log.Info("No saved baseline profile, calibrating from scratch")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}

	profile, owner, err := DecodeProfile(data)
	if err == nil && owner != b.cfg.InstallationID {
		err = fmt.Errorf("%w: profile belongs to installation %q", ErrMalformedProfile, owner)
	}
	if err != nil {
		log.WithError(err).Error("Discarding malformed baseline profile")
		b.Reset()
		return err
	}

	samples := synthesize(profile, b.cfg.MinSamples, b.cfg.Location, b.now())

	b.mu.Lock()
	b.samples = samples
	if len(b.samples) >= b.cfg.MinSamples {
		b.profile = profile
		b.phase = models.PhaseCalibrated
	} else {
		b.profile = nil
		b.phase = models.PhaseCalibrating
	}
	phase := b.phase
	b.mu.Unlock()

	log.WithFields(map[string]interface{}{
		"phase":   phase,
		"samples": len(samples),
	}).Info("Baseline profile loaded")
	return nil
}
