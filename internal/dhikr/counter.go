package dhikr

import (
	"context"
	"errors"
	"fmt"

	"github.com/noorapp/noor/internal/cache"
)

// ErrUnknownDhikr is returned when selecting an index outside the catalog.
var ErrUnknownDhikr = errors.New("unknown dhikr")

// Store keeps counter state per device. The Redis cache satisfies it.
type Store interface {
	GetDhikr(ctx context.Context, deviceID string) (*cache.DhikrState, error)
	TapDhikr(ctx context.Context, deviceID string) (*cache.DhikrState, error)
	ResetDhikr(ctx context.Context, deviceID string) (*cache.DhikrState, error)
	SelectDhikr(ctx context.Context, deviceID string, index int) (*cache.DhikrState, error)
}

// State is a device's counter as returned to clients. Count keeps going
// past the target; Completed only marks that the target was reached.
type State struct {
	Dhikr     Dhikr `json:"dhikr"`
	Count     int64 `json:"count"`
	Total     int64 `json:"total"`
	Completed bool  `json:"completed"`
}

// Counter applies tasbih operations to stored state.
type Counter struct {
	store Store
}

// NewCounter creates a Counter.
func NewCounter(store Store) *Counter {
	return &Counter{store: store}
}

// Get returns the current state of a device.
func (c *Counter) Get(ctx context.Context, deviceID string) (*State, error) {
	s, err := c.store.GetDhikr(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return toState(s), nil
}

// Tap counts one repetition.
func (c *Counter) Tap(ctx context.Context, deviceID string) (*State, error) {
	s, err := c.store.TapDhikr(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return toState(s), nil
}

// Reset zeroes the current count. The lifetime total is kept.
func (c *Counter) Reset(ctx context.Context, deviceID string) (*State, error) {
	s, err := c.store.ResetDhikr(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return toState(s), nil
}

// Select switches to another dhikr and zeroes the count.
func (c *Counter) Select(ctx context.Context, deviceID string, index int) (*State, error) {
	if _, ok := Lookup(index); !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDhikr, index)
	}
	s, err := c.store.SelectDhikr(ctx, deviceID, index)
	if err != nil {
		return nil, err
	}
	return toState(s), nil
}

func toState(s *cache.DhikrState) *State {
	d, ok := Lookup(int(s.Index))
	if !ok {
		d = catalog[0]
	}
	return &State{
		Dhikr:     d,
		Count:     s.Count,
		Total:     s.Total,
		Completed: s.Count >= int64(d.Target),
	}
}
