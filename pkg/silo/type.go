package silo

// ClassName identifies this engine variant in lifecycle records.
const ClassName = "Silo"

type Mode uint8

const (
	ModeEmptying Mode = iota
	ModeRefilling
)

func (m Mode) String() string {
	switch m {
	case ModeEmptying:
		return "emptying"
	case ModeRefilling:
		return "refilling"
	default:
		return "unknown"
	}
}

const (
	DefaultCapacity       = 100.0
	DefaultTimeToEmptySec = 60.0

	// Refilling is always an order of magnitude faster than emptying.
	refillDivisor = 10

	// Switch to refilling once the level drops to this fraction of capacity.
	refillThreshold = 0.1

	// Each emptying phase randomizes its duration by up to this fraction.
	emptyJitter = 0.1
)

// Params are the construction arguments of a silo engine. Live level
// and mode are not persisted; a restored silo starts full and emptying.
type Params struct {
	Capacity       float64 `json:"capacity"`
	TimeToEmptySec float64 `json:"timeToEmpty"`
}
