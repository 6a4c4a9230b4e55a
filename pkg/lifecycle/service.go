// Lifecycle persistence keeps the record store in sync with the live
// instance registry and replays stored records on startup. Store
// failures during live operation are logged and swallowed: persistence
// is best-effort and must never break a running instance.
package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/NotCoffee418/smart_device_simulator/pkg/recordstore"
	"github.com/NotCoffee418/smart_device_simulator/pkg/registry"
)

const (
	// Total failed recreate attempts allowed across one restore run.
	DefaultMaxAttempts = 10
	// Pause after a failed recreate before the next attempt, so a
	// systemic failure does not hammer the store or flood the log.
	DefaultRetryDelay = 500 * time.Millisecond
)

// Recreator is the slice of the registry the restore protocol needs.
type Recreator interface {
	Recreate(id string, className string, args json.RawMessage) error
}

type Service struct {
	store     recordstore.Store
	recreator Recreator

	maxAttempts int
	retryDelay  time.Duration
}

func New(store recordstore.Store, recreator Recreator) *Service {
	return &Service{
		store:       store,
		recreator:   recreator,
		maxAttempts: DefaultMaxAttempts,
		retryDelay:  DefaultRetryDelay,
	}
}

// Created implements registry.Subscriber. Writes the record and hooks
// the instance's config updates so the stored args track the latest
// configuration.
func (s *Service) Created(id string, className string, args json.RawMessage, inst registry.Instance) {
	rec := recordstore.Record{ClassName: className, Args: args}
	if err := s.store.SetItem(context.Background(), id, rec); err != nil {
		logrus.Warnf("Failed to persist record for new %s instance %s: %v", className, id, err)
	}

	if updatable, ok := inst.(registry.Updatable); ok {
		updatable.OnConfigUpdate(func(data any) {
			s.recordUpdate(id, className, data)
		})
	}
}

// Deleted implements registry.Subscriber.
func (s *Service) Deleted(id string, className string) {
	if err := s.store.RemoveItem(context.Background(), id); err != nil {
		logrus.Warnf("Failed to remove record for deleted %s instance %s: %v", className, id, err)
	}
}

// recordUpdate overwrites the stored args with the latest update
// payload, wrapped in the same single-element array a constructor expects.
func (s *Service) recordUpdate(id string, className string, data any) {
	args, err := json.Marshal([]any{data})
	if err != nil {
		logrus.Warnf("Failed to encode update payload for instance %s: %v", id, err)
		return
	}
	rec := recordstore.Record{ClassName: className, Args: args}
	if err := s.store.SetItem(context.Background(), id, rec); err != nil {
		logrus.Warnf("Failed to persist update for instance %s: %v", id, err)
	}
}

// Restore recreates every stored instance. Each failed attempt
// consumes one unit of the global attempt budget and re-enqueues the
// record at the tail after a short delay. Records still queued when
// the budget runs out are broken: their records are deleted so the
// next startup does not fight them again.
func (s *Service) Restore(ctx context.Context) error {
	ids, err := s.store.Keys(ctx)
	if err != nil {
		return fmt.Errorf("read record ids: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}
	logrus.Infof("Restoring %d persisted instance(s)", len(ids))

	queue := ids
	attempts := 0
	restored := 0

	for len(queue) > 0 && attempts <= s.maxAttempts {
		id := queue[0]
		queue = queue[1:]

		err := s.recreateOne(ctx, id)
		if err == nil {
			restored++
			continue
		}

		attempts++
		logrus.Warnf("Restore attempt %d/%d failed for instance %s: %v",
			attempts, s.maxAttempts, id, err)

		// Throttle before the next attempt.
		select {
		case <-time.After(s.retryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
		queue = append(queue, id)
	}

	// Whatever is left exhausted the budget and will never come back.
	for _, id := range queue {
		if err := s.store.RemoveItem(ctx, id); err != nil {
			logrus.Errorf("Failed to purge broken record %s: %v", id, err)
			continue
		}
		logrus.Warnf("Purged broken record %s after exhausting restore attempts", id)
	}

	logrus.Infof("Restore complete: %d recreated, %d purged", restored, len(queue))
	return nil
}

func (s *Service) recreateOne(ctx context.Context, id string) error {
	rec, err := s.store.GetItem(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch record: %w", err)
	}
	if err := s.recreator.Recreate(id, rec.ClassName, rec.Args); err != nil {
		return fmt.Errorf("recreate instance: %w", err)
	}
	return nil
}
