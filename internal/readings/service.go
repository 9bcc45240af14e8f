package readings

import (
	"context"
	"fmt"

	"github.com/septivank/sensor-telemetry-api/internal/airquality"
	"github.com/septivank/sensor-telemetry-api/internal/db"
	"github.com/septivank/sensor-telemetry-api/internal/logging"
	"github.com/septivank/sensor-telemetry-api/internal/observability"
	"go.uber.org/zap"
)

// Store is the persistence collaborator of the query
type Store interface {
	ListLatestReadingPerSensor(ctx context.Context) ([]db.SensorReading, error)
}

// Cache holds a snapshot of the current readings. Get reports ok=false on a miss.
// Update applies fn to the cached snapshot and is a no-op when nothing is cached.
type Cache interface {
	Get(ctx context.Context) (snapshot []db.SensorReading, ok bool, err error)
	Set(ctx context.Context, snapshot []db.SensorReading) error
	Update(ctx context.Context, fn func([]db.SensorReading) []db.SensorReading) error
}

// Reading is a stored reading enriched for API consumers
type Reading struct {
	db.SensorReading
	AirQuality airquality.Level `json:"air_quality,omitempty"`
}

// Service answers "what does every sensor read right now"
type Service struct {
	store      Store
	cache      Cache
	classifier *airquality.Classifier
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewService creates a new readings service. cache may be nil.
func NewService(
	store Store,
	cache Cache,
	classifier *airquality.Classifier,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Service {
	return &Service{
		store:      store,
		cache:      cache,
		classifier: classifier,
		metrics:    metrics,
		logger:     logger,
	}
}

// GetCurrentReadings returns exactly one reading per sensor, the newest one, sorted by sensor id.
// Cache failures fall back to the store and never fail the call.
func (s *Service) GetCurrentReadings(ctx context.Context) ([]Reading, error) {
	logger := logging.FromContext(ctx, s.logger)

	if s.cache != nil {
		snapshot, ok, err := s.cache.Get(ctx)
		switch {
		case err != nil:
			s.metrics.CacheError()
			logger.Warn("failed to read current readings from cache", zap.Error(err))
		case ok:
			s.metrics.CacheHit()
			return s.enrich(snapshot), nil
		default:
			s.metrics.CacheMiss()
		}
	}

	rows, err := s.store.ListLatestReadingPerSensor(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list latest readings: %w", err)
	}

	// the store already selects per sensor; this also fixes the output order
	current := LatestPerSensor(rows)

	if s.cache != nil {
		if err := s.cache.Set(ctx, current); err != nil {
			s.metrics.CacheError()
			logger.Warn("failed to cache current readings", zap.Error(err))
		}
	}

	logger.Debug("current readings loaded from store", zap.Int("sensors", len(current)))
	return s.enrich(current), nil
}

// ApplyIngested folds a newly stored reading into the cached snapshot
func (s *Service) ApplyIngested(ctx context.Context, reading db.SensorReading) error {
	if s.cache == nil {
		return nil
	}

	err := s.cache.Update(ctx, func(snapshot []db.SensorReading) []db.SensorReading {
		return LatestPerSensor(append(snapshot, reading))
	})
	if err != nil {
		s.metrics.CacheError()
		return fmt.Errorf("failed to apply reading %d to cache: %w", reading.ID, err)
	}
	return nil
}

func (s *Service) enrich(snapshot []db.SensorReading) []Reading {
	out := make([]Reading, 0, len(snapshot))
	for _, r := range snapshot {
		out = append(out, Reading{
			SensorReading: r,
			AirQuality:    s.classifier.Classify(r.CO2),
		})
	}
	return out
}
