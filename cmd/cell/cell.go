package cell

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/rKV/cmd/util"
	"github.com/ValentinKolb/rKV/lib/reactive"
)

// Check statuses
const (
	StatusValid    = "valid"
	StatusNull     = "null"
	StatusMissing  = "missing"
	StatusRepaired = "repaired"
)

// Result is what get, set and clear print
type Result struct {
	Namespace string `json:"namespace" yaml:"namespace"`
	Key       string `json:"key" yaml:"key"`
	Value     any    `json:"value" yaml:"value"`
	Null      bool   `json:"null" yaml:"null"`
	Version   uint64 `json:"version" yaml:"version"`
}

// Text returns the value as compact JSON
func (r *Result) Text() string {
	if r.Null {
		return "null"
	}
	b, err := json.Marshal(r.Value)
	if err != nil {
		return fmt.Sprintf("%v", r.Value)
	}
	return string(b)
}

// CheckResult is what check prints
type CheckResult struct {
	Namespace string `json:"namespace" yaml:"namespace"`
	Key       string `json:"key" yaml:"key"`
	Status    string `json:"status" yaml:"status"`
	Value     any    `json:"value" yaml:"value"`
}

// Text returns the status and the hydrated value
func (r *CheckResult) Text() string {
	b, err := json.Marshal(r.Value)
	if err != nil {
		return r.Status
	}
	return fmt.Sprintf("%s: %s", r.Status, b)
}

// cell binds keys of one namespace with the same initial value and rules
type cell struct {
	reg     *reactive.Registry
	initial *any
	opts    []reactive.Option[any]
}

func (c *cell) bind(key string) (*reactive.Store[any], error) {
	return reactive.GetStore(c.reg, key, c.initial, c.opts...)
}

func (c *cell) result(s *reactive.Store[any]) *Result {
	snap := s.Snapshot()
	res := &Result{
		Namespace: s.Identity().Namespace.String(),
		Key:       s.Identity().Key,
		Null:      snap.IsNull(),
		Version:   snap.Version(),
	}
	if v := snap.Value(); v != nil {
		res.Value = *v
	}
	return res
}

// Get hydrates key and returns its value. Repairs made during hydration are persisted
// before Get returns.
func (c *cell) Get(ctx context.Context, key string) (*Result, error) {
	s, err := c.bind(key)
	if err != nil {
		return nil, err
	}
	s.Hydrate()
	if err := s.WaitHydrated(ctx); err != nil {
		return nil, fmt.Errorf("hydrate %s: %w", s.Identity(), err)
	}
	if err := s.Flush(ctx); err != nil {
		return nil, err
	}
	return c.result(s), nil
}

// Set hydrates key, writes value and waits until it is persisted.
// A nil value writes null.
func (c *cell) Set(ctx context.Context, key string, value *any) (*Result, error) {
	s, err := c.bind(key)
	if err != nil {
		return nil, err
	}
	s.Hydrate()
	if err := s.WaitHydrated(ctx); err != nil {
		return nil, fmt.Errorf("hydrate %s: %w", s.Identity(), err)
	}

	if !s.Write(value) {
		util.Logger.Debugf("%s: value unchanged, nothing written", s.Identity())
	}
	if err := s.Flush(ctx); err != nil {
		return nil, err
	}
	return c.result(s), nil
}

// Check hydrates key and compares the persisted record before and after hydration.
func (c *cell) Check(ctx context.Context, key string) (*CheckResult, error) {
	s, err := c.bind(key)
	if err != nil {
		return nil, err
	}
	id := s.Identity()
	backend := c.reg.Backend()

	before, found, err := backend.Get(ctx, id.Namespace, id.Key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", id, err)
	}

	s.Hydrate()
	if err := s.WaitHydrated(ctx); err != nil {
		return nil, fmt.Errorf("hydrate %s: %w", id, err)
	}
	if err := s.Flush(ctx); err != nil {
		return nil, err
	}

	after, _, err := backend.Get(ctx, id.Namespace, id.Key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", id, err)
	}

	res := &CheckResult{
		Namespace: id.Namespace.String(),
		Key:       id.Key,
		Value:     c.result(s).Value,
	}
	switch {
	case !found:
		res.Status = StatusMissing
	case !bytes.Equal(before, after):
		res.Status = StatusRepaired
	case s.Snapshot().IsNull():
		res.Status = StatusNull
	default:
		res.Status = StatusValid
	}
	return res, nil
}
