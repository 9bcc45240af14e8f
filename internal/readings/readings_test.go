package readings_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/septivank/sensor-telemetry-api/internal/airquality"
	"github.com/septivank/sensor-telemetry-api/internal/db"
	"github.com/septivank/sensor-telemetry-api/internal/readings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var base = time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)

func at(id int64, sensor string, seconds int) db.SensorReading {
	return db.SensorReading{
		ID:        id,
		SensorID:  sensor,
		Timestamp: base.Add(time.Duration(seconds) * time.Second),
		CO2:       500,
	}
}

// memoryStore answers the store contract from an in-memory table
type memoryStore struct {
	rows  []db.SensorReading
	err   error
	calls int
}

func (m *memoryStore) ListLatestReadingPerSensor(_ context.Context) ([]db.SensorReading, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return readings.LatestPerSensor(m.rows), nil
}

type memoryCache struct {
	snapshot []db.SensorReading
	cached   bool
	getErr   error
	setErr   error
	sets     int
}

func (c *memoryCache) Get(_ context.Context) ([]db.SensorReading, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	return c.snapshot, c.cached, nil
}

func (c *memoryCache) Set(_ context.Context, s []db.SensorReading) error {
	c.sets++
	if c.setErr != nil {
		return c.setErr
	}
	c.snapshot, c.cached = s, true
	return nil
}

func (c *memoryCache) Update(_ context.Context, fn func([]db.SensorReading) []db.SensorReading) error {
	if !c.cached {
		return nil
	}
	c.snapshot = fn(c.snapshot)
	return nil
}

func newService(store readings.Store, cache readings.Cache) *readings.Service {
	return readings.NewService(store, cache, airquality.NewClassifier(600, 800, 1000), nil, zap.NewNop())
}

func ids(rs []readings.Reading) []int64 {
	out := make([]int64, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.ID)
	}
	return out
}

func TestLatestPerSensor_PicksNewestPerSensor(t *testing.T) {
	got := readings.LatestPerSensor([]db.SensorReading{
		at(1, "A", 10),
		at(2, "A", 20),
		at(3, "B", 5),
	})

	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].SensorID)
	assert.Equal(t, base.Add(20*time.Second), got[0].Timestamp)
	assert.Equal(t, "B", got[1].SensorID)
	assert.Equal(t, base.Add(5*time.Second), got[1].Timestamp)
}

func TestLatestPerSensor_Empty(t *testing.T) {
	got := readings.LatestPerSensor(nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestLatestPerSensor_TieBrokenByHighestID(t *testing.T) {
	forward := readings.LatestPerSensor([]db.SensorReading{at(4, "A", 30), at(9, "A", 30), at(2, "A", 10)})
	backward := readings.LatestPerSensor([]db.SensorReading{at(9, "A", 30), at(4, "A", 30), at(2, "A", 10)})

	require.Len(t, forward, 1)
	require.Len(t, backward, 1)
	assert.Equal(t, int64(9), forward[0].ID)
	assert.Equal(t, int64(9), backward[0].ID)
}

func TestLatestPerSensor_ComparesInstantsNotZones(t *testing.T) {
	kyiv := time.FixedZone("UTC+3", 3*60*60)
	older := db.SensorReading{ID: 5, SensorID: "A", Timestamp: base.In(kyiv)}
	newer := db.SensorReading{ID: 1, SensorID: "A", Timestamp: base.Add(time.Minute)}

	got := readings.LatestPerSensor([]db.SensorReading{older, newer})
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)
}

func TestGetCurrentReadings_OnePerSensor(t *testing.T) {
	store := &memoryStore{rows: []db.SensorReading{at(1, "A", 10), at(2, "A", 20), at(3, "B", 5)}}
	svc := newService(store, nil)

	got, err := svc.GetCurrentReadings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, ids(got))
}

func TestGetCurrentReadings_EmptyStore(t *testing.T) {
	svc := newService(&memoryStore{}, nil)

	got, err := svc.GetCurrentReadings(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestGetCurrentReadings_AirQuality(t *testing.T) {
	r := at(1, "A", 0)
	r.CO2 = 1250
	svc := newService(&memoryStore{rows: []db.SensorReading{r}}, nil)

	got, err := svc.GetCurrentReadings(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, airquality.Poor, got[0].AirQuality)
}

func TestGetCurrentReadings_StoreError(t *testing.T) {
	svc := newService(&memoryStore{err: errors.New("timeout")}, nil)

	_, err := svc.GetCurrentReadings(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestGetCurrentReadings_ReadThroughCache(t *testing.T) {
	store := &memoryStore{rows: []db.SensorReading{at(1, "A", 10), at(3, "B", 5)}}
	cache := &memoryCache{}
	svc := newService(store, cache)

	first, err := svc.GetCurrentReadings(context.Background())
	require.NoError(t, err)
	second, err := svc.GetCurrentReadings(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, store.calls)
	assert.Equal(t, 1, cache.sets)
	assert.Equal(t, ids(first), ids(second))
}

func TestGetCurrentReadings_CacheFailuresFallBackToStore(t *testing.T) {
	store := &memoryStore{rows: []db.SensorReading{at(1, "A", 10)}}
	cache := &memoryCache{getErr: errors.New("redis down"), setErr: errors.New("redis down")}
	svc := newService(store, cache)

	got, err := svc.GetCurrentReadings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(got))
	assert.Equal(t, 1, store.calls)
}

func TestApplyIngested_MergesIntoSnapshot(t *testing.T) {
	store := &memoryStore{rows: []db.SensorReading{at(1, "A", 10), at(3, "B", 5)}}
	cache := &memoryCache{}
	svc := newService(store, cache)
	ctx := context.Background()

	_, err := svc.GetCurrentReadings(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.ApplyIngested(ctx, at(7, "A", 30)))
	require.NoError(t, svc.ApplyIngested(ctx, at(8, "C", 1)))
	require.NoError(t, svc.ApplyIngested(ctx, at(2, "B", 1))) // older than cached B

	got, err := svc.GetCurrentReadings(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 3, 8}, ids(got))
	assert.Equal(t, 1, store.calls)
}

func TestApplyIngested_WithoutCache(t *testing.T) {
	svc := newService(&memoryStore{}, nil)
	assert.NoError(t, svc.ApplyIngested(context.Background(), at(1, "A", 0)))
}
