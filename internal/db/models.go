package db

import "time"

// Credential represents an admin login record in the admins table.
// PasswordHash holds an argon2id PHC string.
type Credential struct {
	ID           int64
	Username     string
	PasswordHash string
}

// SensorReading represents one row of the sensors table.
// JSON names follow the ingest service so cached snapshots and API responses share a shape.
type SensorReading struct {
	ID           int64     `json:"id"`
	SensorID     string    `json:"sensor_id"`
	BuildingName string    `json:"building_name"`
	RoomNumber   string    `json:"room_number"`
	Timestamp    time.Time `json:"ts"`
	CO2          int       `json:"co2"`
	Temperature  int       `json:"temperature"`
	Humidity     int       `json:"humidity"`
}
