// Package metrics derives rolling aggregates from a sequence of hive readings.
//
// Compute is a pure function: it is recomputed wholesale on every new
// sequence and nothing it returns is persisted.
package metrics

import (
	"math"
	"strconv"
	"time"

	"github.com/beewatch/backend/internal/db/models"
)

// NoData is reported as the noise status when no noise level is available
const NoData = "no data"

// Snapshot holds the aggregates derived from one reading sequence
type Snapshot struct {
	Total       int     `json:"total"`
	HighCount   int     `json:"high_count"`
	LowCount    int     `json:"low_count"`
	OverallMean float64 `json:"overall_mean"`
	WindowMean  float64 `json:"window_mean"`
	// WindowSize is the effective window length, min(N, Total)
	WindowSize int `json:"window_size"`
	// LatestNoise is nil when the sequence is empty or the newest reading has no noise level
	LatestNoise       *float64 `json:"latest_noise"`
	LatestNoiseStatus string   `json:"latest_noise_status"`
}

// Compute derives a Snapshot from readings ordered oldest first.
// windowSize values below 1 are treated as 1.
func Compute(readings []models.Reading, windowSize int) Snapshot {
	if windowSize < 1 {
		windowSize = 1
	}

	snap := Snapshot{
		Total:             len(readings),
		LatestNoiseStatus: NoData,
	}
	if snap.Total == 0 {
		return snap
	}

	var sum float64
	for _, r := range readings {
		if r.IsHigh() {
			snap.HighCount++
		}
		sum += float64(r.ActiveCount)
	}
	snap.LowCount = snap.Total - snap.HighCount
	snap.OverallMean = sum / float64(snap.Total)

	snap.WindowSize = min(windowSize, snap.Total)
	var windowSum float64
	for _, r := range readings[snap.Total-snap.WindowSize:] {
		windowSum += float64(r.ActiveCount)
	}
	snap.WindowMean = windowSum / float64(snap.WindowSize)

	latest := readings[snap.Total-1]
	if latest.NoiseLevel != nil {
		noise := *latest.NoiseLevel
		snap.LatestNoise = &noise
		if latest.NoiseStatus != nil {
			snap.LatestNoiseStatus = *latest.NoiseStatus
		} else {
			snap.LatestNoiseStatus = models.ClassifyNoise(noise)
		}
	}

	return snap
}

// Point is one chart sample derived from a reading
type Point struct {
	Time        time.Time `json:"time"`
	Temperature float64   `json:"temperatura"`
	Humidity    float64   `json:"umidade"`
	Pollution   float64   `json:"poluicao"`
	ActiveCount int       `json:"abelhas_ativas"`
	Noise       *float64  `json:"ruido_db,omitempty"`
}

// Series converts readings into chart points, preserving order
func Series(readings []models.Reading) []Point {
	points := make([]Point, len(readings))
	for i, r := range readings {
		points[i] = Point{
			Time:        r.Timestamp,
			Temperature: r.Temperature,
			Humidity:    r.Humidity,
			Pollution:   r.Pollution,
			ActiveCount: r.ActiveCount,
			Noise:       r.NoiseLevel,
		}
	}
	return points
}

// Bucket is one slice of the activity distribution
type Bucket struct {
	Name    string `json:"name"`
	Value   int    `json:"value"`
	Percent string `json:"percent"`
}

// Distribution splits the snapshot into high and low activity buckets.
// Percentages carry one decimal, or "0" when there are no readings.
func Distribution(s Snapshot) []Bucket {
	return []Bucket{
		{Name: "Altas", Value: s.HighCount, Percent: percent(s.HighCount, s.Total)},
		{Name: "Baixas", Value: s.LowCount, Percent: percent(s.LowCount, s.Total)},
	}
}

func percent(part, total int) string {
	if total == 0 {
		return "0"
	}
	p := float64(part) / float64(total) * 100
	return strconv.FormatFloat(math.Round(p*10)/10, 'f', 1, 64)
}
