package validator

import (
	"fmt"
	"strings"
	"time"

	"github.com/septivank/sensor-telemetry-api/tools/timeparser"
)

const (
	maxUsernameLength = 64
	maxPasswordLength = 1024
	maxSensorIDLength = 128
)

// ValidationResult holds validation outcome
type ValidationResult struct {
	IsValid bool
	Reason  string
}

// ReadingData is a reading as announced by the ingest service, before parsing
type ReadingData struct {
	ID        int64
	SensorID  string
	Timestamp string
	CO2       int
	Humidity  int
}

// Validator checks login requests and ingested reading events
type Validator struct {
	timestampToleranceMinutes int
}

// NewValidator creates a new validator with the specified tolerance for readings stamped in the future
func NewValidator(timestampToleranceMinutes int) *Validator {
	return &Validator{
		timestampToleranceMinutes: timestampToleranceMinutes,
	}
}

func invalid(format string, args ...any) ValidationResult {
	return ValidationResult{IsValid: false, Reason: fmt.Sprintf(format, args...)}
}

// ValidateLogin checks the shape of a login request. It does not check credentials.
func (v *Validator) ValidateLogin(username, password string) ValidationResult {
	if strings.TrimSpace(username) == "" {
		return invalid("username is required")
	}
	if len(username) > maxUsernameLength {
		return invalid("username exceeds %d characters", maxUsernameLength)
	}
	if len(password) > maxPasswordLength {
		return invalid("password exceeds %d characters", maxPasswordLength)
	}
	return ValidationResult{IsValid: true}
}

// ValidateReading validates a reading event and returns its parsed timestamp
func (v *Validator) ValidateReading(reading ReadingData, receivedAt time.Time) (time.Time, ValidationResult) {
	if reading.ID <= 0 {
		return time.Time{}, invalid("missing reading id")
	}

	if strings.TrimSpace(reading.SensorID) == "" {
		return time.Time{}, invalid("empty sensor id")
	}
	if len(reading.SensorID) > maxSensorIDLength {
		return time.Time{}, invalid("sensor id exceeds %d characters", maxSensorIDLength)
	}

	if reading.CO2 < 0 {
		return time.Time{}, invalid("negative co2 value")
	}
	if reading.Humidity < 0 || reading.Humidity > 100 {
		return time.Time{}, invalid("humidity %d outside 0-100", reading.Humidity)
	}

	readingTime, err := timeparser.ParseReadingTimestamp(reading.Timestamp)
	if err != nil {
		return time.Time{}, invalid("invalid timestamp format: %v", err)
	}

	tolerance := time.Duration(v.timestampToleranceMinutes) * time.Minute
	if timeparser.IsTooFarInFuture(readingTime, receivedAt, tolerance) {
		return readingTime, invalid("timestamp more than %d minutes in the future", v.timestampToleranceMinutes)
	}

	return readingTime, ValidationResult{IsValid: true}
}
