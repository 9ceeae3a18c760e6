package queries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/OldStager01/leakwatch/internal/baseline"
	"github.com/OldStager01/leakwatch/pkg/database"
)

// ProfileRepository stores encoded baseline profiles. It satisfies
// baseline.Store.
type ProfileRepository struct {
	db *database.DB
}

func NewProfileRepository(db *database.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) SaveProfile(ctx context.Context, installationID string, data []byte) error {
	query := r.db.Rebind(`
		INSERT INTO baseline_profiles (installation_id, data, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (installation_id) DO UPDATE
		SET data = excluded.data, updated_at = excluded.updated_at`)

	if _, err := r.db.ExecContext(ctx, query, installationID, string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func (r *ProfileRepository) LoadProfile(ctx context.Context, installationID string) ([]byte, error) {
	query := r.db.Rebind(`SELECT data FROM baseline_profiles WHERE installation_id = ?`)

	var data string
	err := r.db.QueryRowContext(ctx, query, installationID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, baseline.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return []byte(data), nil
}

// Delete removes a stored profile, e.g. after a baseline reset.
func (r *ProfileRepository) Delete(ctx context.Context, installationID string) error {
	query := r.db.Rebind(`DELETE FROM baseline_profiles WHERE installation_id = ?`)
	_, err := r.db.ExecContext(ctx, query, installationID)
	return err
}
