package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/septivank/sensor-telemetry-api/internal/db"
)

// DBTX is the subset of pgxpool.Pool the repository needs
type DBTX interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository handles database reads for credentials and sensor readings
type Repository struct {
	pool DBTX
}

// NewRepository creates a new repository
func NewRepository(pool DBTX) *Repository {
	return &Repository{pool: pool}
}

// FindCredentialByUsername returns the admin credential for username.
// Returns (nil, nil) if no admin with that login exists.
func (r *Repository) FindCredentialByUsername(ctx context.Context, username string) (*db.Credential, error) {
	query := `
		SELECT id, login, password
		FROM admins
		WHERE login = $1
	`

	var cred db.Credential
	err := r.pool.QueryRow(ctx, query, username).Scan(
		&cred.ID,
		&cred.Username,
		&cred.PasswordHash,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query credential: %w", err)
	}

	return &cred, nil
}

// ListLatestReadingPerSensor returns the most recent reading of every sensor.
// Readings sharing the newest timestamp are resolved by the highest id.
func (r *Repository) ListLatestReadingPerSensor(ctx context.Context) ([]db.SensorReading, error) {
	query := `
		SELECT DISTINCT ON (sensor_id)
			id, sensor_id, building_name, room_number, ts, co2, temperature, humidity
		FROM sensors
		ORDER BY sensor_id, ts DESC, id DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest readings: %w", err)
	}
	defer rows.Close()

	readings := make([]db.SensorReading, 0)
	for rows.Next() {
		var reading db.SensorReading
		if err := rows.Scan(
			&reading.ID,
			&reading.SensorID,
			&reading.BuildingName,
			&reading.RoomNumber,
			&reading.Timestamp,
			&reading.CO2,
			&reading.Temperature,
			&reading.Humidity,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, reading)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return readings, nil
}
