package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/sensor-telemetry-api/internal/db"
	"github.com/septivank/sensor-telemetry-api/internal/logging"
	"github.com/septivank/sensor-telemetry-api/internal/observability"
	"github.com/septivank/sensor-telemetry-api/internal/validator"
	"go.uber.org/zap"
)

// Ingest event statuses reported to metrics
const (
	StatusApplied = "applied"
	StatusInvalid = "invalid"
	StatusError   = "error"
)

// ErrInvalidEvent marks events that will never succeed on redelivery
var ErrInvalidEvent = errors.New("invalid reading event")

// IngestMessage is the envelope the ingest service publishes after storing a reading
type IngestMessage struct {
	RequestID  string         `json:"request_id"`
	ReceivedAt time.Time      `json:"received_at"`
	Reading    ReadingPayload `json:"reading"`
}

// ReadingPayload mirrors one row of the sensors table
type ReadingPayload struct {
	ID           int64  `json:"id"`
	SensorID     string `json:"sensor_id"`
	BuildingName string `json:"building_name"`
	RoomNumber   string `json:"room_number"`
	Timestamp    string `json:"ts"`
	CO2          int    `json:"co2"`
	Temperature  int    `json:"temperature"`
	Humidity     int    `json:"humidity"`
}

// ReadingApplier folds a freshly stored reading into the served snapshot
type ReadingApplier interface {
	ApplyIngested(ctx context.Context, reading db.SensorReading) error
}

// ProcessorService handles reading events consumed from the ingest exchange
type ProcessorService struct {
	readings  ReadingApplier
	validator *validator.Validator
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewProcessorService creates a new processor service
func NewProcessorService(
	readings ReadingApplier,
	validator *validator.Validator,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *ProcessorService {
	return &ProcessorService{
		readings:  readings,
		validator: validator,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// ProcessMessage validates one reading event and applies it to the current-readings snapshot.
// A returned error dead-letters the message.
func (s *ProcessorService) ProcessMessage(ctx context.Context, body []byte) error {
	var msg IngestMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		s.metrics.IngestEvent(StatusInvalid)
		return fmt.Errorf("%w: failed to unmarshal message: %v", ErrInvalidEvent, err)
	}

	requestID := msg.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	reqLogger := logging.WithRequestID(s.logger, requestID).With(
		zap.Int64("reading_id", msg.Reading.ID),
		zap.String("sensor_id", msg.Reading.SensorID),
	)
	ctx = logging.IntoContext(ctx, reqLogger)

	receivedAt := msg.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = s.now()
	}

	readingTime, result := s.validator.ValidateReading(validator.ReadingData{
		ID:        msg.Reading.ID,
		SensorID:  msg.Reading.SensorID,
		Timestamp: msg.Reading.Timestamp,
		CO2:       msg.Reading.CO2,
		Humidity:  msg.Reading.Humidity,
	}, receivedAt)
	if !result.IsValid {
		s.metrics.IngestEvent(StatusInvalid)
		reqLogger.Warn("rejecting reading event", zap.String("reason", result.Reason))
		return fmt.Errorf("%w: %s", ErrInvalidEvent, result.Reason)
	}

	reading := db.SensorReading{
		ID:           msg.Reading.ID,
		SensorID:     msg.Reading.SensorID,
		BuildingName: msg.Reading.BuildingName,
		RoomNumber:   msg.Reading.RoomNumber,
		Timestamp:    readingTime,
		CO2:          msg.Reading.CO2,
		Temperature:  msg.Reading.Temperature,
		Humidity:     msg.Reading.Humidity,
	}

	if err := s.readings.ApplyIngested(ctx, reading); err != nil {
		s.metrics.IngestEvent(StatusError)
		reqLogger.Error("failed to apply reading", zap.Error(err))
		return fmt.Errorf("failed to apply reading: %w", err)
	}

	s.metrics.IngestEvent(StatusApplied)
	reqLogger.Debug("reading applied", zap.Time("ts", readingTime))
	return nil
}
