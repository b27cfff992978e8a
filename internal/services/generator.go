package services

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/beewatch/backend/internal/db/models"
)

// Sensor ranges used for simulated readings
const (
	minTemperature = 15.0
	maxTemperature = 40.0
	minHumidity    = 30.0
	maxHumidity    = 90.0
	minPollution   = 10.0
	maxPollution   = 80.0
	minActiveBees  = 100
	maxActiveBees  = 1000
	minNoiseDB     = 20.0
	maxNoiseDB     = 120.0
)

// NoiseSample is a simulated hive noise measurement
type NoiseSample struct {
	Timestamp time.Time `json:"timestamp"`
	NoiseDB   int       `json:"noise_db"`
	Status    string    `json:"status"`
}

// Generator produces plausible random sensor readings. It is safe for
// concurrent use.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

// NewGenerator creates a generator. A zero seed picks a random one.
func NewGenerator(seed uint64) *Generator {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Generator{
		rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Reading returns a new reading with derived activity and noise status
func (g *Generator) Reading() models.Reading {
	g.mu.Lock()
	defer g.mu.Unlock()

	noise := round2(g.uniform(minNoiseDB, maxNoiseDB))
	r := models.Reading{
		Timestamp:   g.now(),
		Temperature: round2(g.uniform(minTemperature, maxTemperature)),
		Humidity:    round2(g.uniform(minHumidity, maxHumidity)),
		Pollution:   round2(g.uniform(minPollution, maxPollution)),
		ActiveCount: minActiveBees + g.rnd.IntN(maxActiveBees-minActiveBees+1),
		NoiseLevel:  &noise,
	}
	r.Derive()
	return r
}

// Noise returns a whole-decibel noise sample
func (g *Generator) Noise() NoiseSample {
	g.mu.Lock()
	defer g.mu.Unlock()

	db := int(minNoiseDB) + g.rnd.IntN(int(maxNoiseDB-minNoiseDB)+1)
	return NoiseSample{
		Timestamp: g.now(),
		NoiseDB:   db,
		Status:    models.ClassifyNoise(float64(db)),
	}
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rnd.Float64()*(hi-lo)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
