package queries

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/OldStager01/leakwatch/pkg/database"
	"github.com/OldStager01/leakwatch/pkg/models"
)

// ErrAlertNotFound is returned by UpdateStatus for an unknown id.
var ErrAlertNotFound = models.ErrAlertNotFound

type AlertRepository struct {
	db *database.DB
}

func NewAlertRepository(db *database.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// SaveAlert inserts the alert. Saving the same id twice is a no-op.
func (r *AlertRepository) SaveAlert(ctx context.Context, a *models.Alert) error {
	meta, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("encode alert metadata: %w", err)
	}

	query := r.db.Rebind(`
		INSERT INTO alerts (id, installation_id, timestamp, level, status, message, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`)

	_, err = r.db.ExecContext(ctx, query,
		a.ID, a.InstallationID, a.Timestamp.UTC(), string(a.Level), string(a.Status), a.Message, string(meta),
	)
	if err != nil {
		return fmt.Errorf("save alert: %w", err)
	}
	return nil
}

// List returns the newest alerts of an installation, skipping deleted ones.
func (r *AlertRepository) List(ctx context.Context, installationID string, limit int) ([]*models.Alert, error) {
	if limit <= 0 {
		limit = 50
	}

	query := r.db.Rebind(`
		SELECT id, installation_id, timestamp, level, status, message, metadata
		FROM alerts
		WHERE installation_id = ? AND status <> ?
		ORDER BY timestamp DESC
		LIMIT ?`)

	rows, err := r.db.QueryContext(ctx, query, installationID, string(models.AlertStatusDeleted), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alerts := make([]*models.Alert, 0)
	for rows.Next() {
		var (
			a      models.Alert
			ts     time.Time
			level  string
			status string
			meta   string
		)
		if err := rows.Scan(&a.ID, &a.InstallationID, &ts, &level, &status, &a.Message, &meta); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(meta), &a.Metadata); err != nil {
			return nil, fmt.Errorf("decode alert metadata: %w", err)
		}
		a.Timestamp = ts.UTC()
		a.Level = models.AlertLevel(level)
		a.Status = models.AlertStatus(status)
		alerts = append(alerts, &a)
	}

	return alerts, rows.Err()
}

func (r *AlertRepository) UpdateStatus(ctx context.Context, id string, status models.AlertStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid alert status %q", status)
	}

	query := r.db.Rebind(`UPDATE alerts SET status = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, string(status), id)
	if err != nil {
		return fmt.Errorf("update alert status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlertNotFound
	}
	return nil
}
