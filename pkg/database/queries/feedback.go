package queries

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/OldStager01/leakwatch/pkg/database"
	"github.com/OldStager01/leakwatch/pkg/models"
)

type FeedbackRepository struct {
	db *database.DB
}

func NewFeedbackRepository(db *database.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

func (r *FeedbackRepository) Save(ctx context.Context, installationID string, rec models.FeedbackRecord) error {
	if rec.ID == "" {
		rec.ID = models.NewUUID()
	}

	query := r.db.Rebind(`
		INSERT INTO feedback (id, installation_id, recorded_at, flow, pressure, vibration,
			norm_flow, norm_pressure, norm_vibration, correct)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := r.db.ExecContext(ctx, query,
		rec.ID, installationID, rec.RecordedAt.UTC(),
		rec.Features[0], rec.Features[1], rec.Features[2],
		rec.Normalized[0], rec.Normalized[1], rec.Normalized[2], rec.Correct,
	)
	if err != nil {
		return fmt.Errorf("save feedback: %w", err)
	}
	return nil
}

// Recent returns up to limit records, oldest first, ready to restore into
// the threshold controller.
func (r *FeedbackRepository) Recent(ctx context.Context, installationID string, limit int) ([]models.FeedbackRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := r.db.Rebind(`
		SELECT id, recorded_at, flow, pressure, vibration,
			norm_flow, norm_pressure, norm_vibration, correct
		FROM feedback
		WHERE installation_id = ?
		ORDER BY recorded_at DESC
		LIMIT ?`)

	rows, err := r.db.QueryContext(ctx, query, installationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]models.FeedbackRecord, 0)
	for rows.Next() {
		var (
			rec models.FeedbackRecord
			at  time.Time
		)
		err := rows.Scan(&rec.ID, &at,
			&rec.Features[0], &rec.Features[1], &rec.Features[2],
			&rec.Normalized[0], &rec.Normalized[1], &rec.Normalized[2], &rec.Correct)
		if err != nil {
			return nil, err
		}
		rec.RecordedAt = at.UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.Reverse(records)
	return records, nil
}
