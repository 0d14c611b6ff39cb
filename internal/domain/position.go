package domain

import (
	"context"
	"time"
)

// Position is one geolocation sample with accuracy metadata.
type Position struct {
	Longitude          float64 `json:"longitude"`
	Latitude           float64 `json:"latitude"`
	HorizontalAccuracy float64 `json:"horizontal_accuracy"`
	VerticalAccuracy   float64 `json:"vertical_accuracy"`
	Altitude           float64 `json:"altitude"`
	MeasurementTime    int64   `json:"measurement_time"`
}

// MeasuredAt converts the epoch seconds of the sample to a time.Time.
func (p Position) MeasuredAt() time.Time {
	return time.Unix(p.MeasurementTime, 0)
}

// Coordinate is a latitude/longitude pair in degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DefaultMapCenter is used until a poll retained at least one position.
var DefaultMapCenter = Coordinate{Latitude: 51.235344, Longitude: 6.782973}

// PositionSnapshot is the published, quality-filtered state of the position collection.
type PositionSnapshot struct {
	Positions []Position `json:"positions"`
	Center    Coordinate `json:"center"`
	Sequence  uint64     `json:"sequence"`
	FetchedAt time.Time  `json:"fetched_at"`
}

// PositionSource fetches the full, ordered position collection.
type PositionSource interface {
	FetchPositions(ctx context.Context) ([]Position, error)
}

// PositionPublisher receives every snapshot the poller produces.
type PositionPublisher interface {
	PublishPositions(ctx context.Context, snapshot PositionSnapshot)
}
