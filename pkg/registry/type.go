package registry

import (
	"encoding/json"
	"errors"
)

var (
	ErrUnknownClass = errors.New("unknown instance class")
	ErrDuplicateID  = errors.New("duplicate instance id")
	ErrNoInstance   = errors.New("no such instance")
)

// Instance is a running simulation engine owned by the registry.
type Instance interface {
	Start()
	Stop()
}

// Updatable is implemented by instances that announce runtime
// reconfiguration. Listeners receive the new construction payload.
type Updatable interface {
	OnConfigUpdate(fn func(data any))
}

// Factory builds an instance from a stored args payload (a JSON array
// of construction parameters).
type Factory func(args json.RawMessage) (Instance, error)

// Subscriber receives lifecycle notifications. Both callbacks run on
// the goroutine that triggered the lifecycle change.
type Subscriber interface {
	Created(id string, className string, args json.RawMessage, inst Instance)
	Deleted(id string, className string)
}

// Entry is the registry's view of one live instance.
type Entry struct {
	ID        string
	ClassName string
	Args      json.RawMessage
	Instance  Instance
}
