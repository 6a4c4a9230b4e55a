package consumption

import (
	"errors"
	"math"
)

// ClassName identifies this engine variant in lifecycle records.
const ClassName = "Consumption"

type Channel string

const (
	ChannelPower Channel = "power"
	ChannelGas   Channel = "gas"
	ChannelWater Channel = "water"
)

var ErrUnknownChannel = errors.New("unknown consumption channel")

const (
	secondsInDay  = 24 * 60 * 60
	secondsInYear = 365 * secondsInDay

	// Fractional deviation of the daily cycle per channel.
	powerAmplitude = 0.6
	gasAmplitude   = 0.5
	waterAmplitude = 0.8

	// Phase shifts align the daily sine peak with realistic usage:
	// power and gas peak in the evening, water in the morning.
	powerPhaseShift = math.Pi/2 - 2*math.Pi*19.0/24.0 // peak ~19:00
	gasPhaseShift   = math.Pi/2 - 2*math.Pi*18.0/24.0 // peak ~18:00
	waterPhaseShift = math.Pi/2 - 2*math.Pi*7.5/24.0  // peak ~07:30

	// Uniform noise drawn per channel per tick, in [-noiseSpread, noiseSpread].
	noiseSpread = 0.1
)

// Params are the construction arguments of a consumption engine.
// This is the only state carried into a lifecycle record; live rates
// and accumulated totals restart from zero after a restore.
type Params struct {
	AnnualPowerKWh float64 `json:"power"`
	AnnualGasM3    float64 `json:"gas"`
	AnnualWaterM3  float64 `json:"water"`
}

// ChannelConfig is fixed at construction.
type ChannelConfig struct {
	Annual       float64
	AvgPerSecond float64
	PhaseShift   float64
	Amplitude    float64
}

type channelState struct {
	cfg      ChannelConfig
	liveRate float64
	total    float64
}
