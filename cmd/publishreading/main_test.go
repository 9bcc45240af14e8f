package main

import (
	"testing"
	"time"

	"github.com/septivank/sensor-telemetry-api/internal/validator"
	"github.com/stretchr/testify/assert"
)

func TestCreateTestMessage_PassesValidation(t *testing.T) {
	now := time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC)
	v := validator.NewValidator(10)

	for i := 0; i < 12; i++ {
		msg := createTestMessage(i, int64(100+i), now)

		ts, result := v.ValidateReading(validator.ReadingData{
			ID:        msg.Reading.ID,
			SensorID:  msg.Reading.SensorID,
			Timestamp: msg.Reading.Timestamp,
			CO2:       msg.Reading.CO2,
			Humidity:  msg.Reading.Humidity,
		}, msg.ReceivedAt)

		assert.True(t, result.IsValid, result.Reason)
		assert.Equal(t, now.Add(-time.Minute), ts)
	}
}

func TestCreateTestMessage_CyclesSensors(t *testing.T) {
	now := time.Now()
	assert.Equal(t, "test-sensor-0", createTestMessage(0, 1, now).Reading.SensorID)
	assert.Equal(t, "test-sensor-1", createTestMessage(4, 5, now).Reading.SensorID)
	assert.Equal(t, "test-sensor-2", createTestMessage(5, 6, now).Reading.SensorID)
}
