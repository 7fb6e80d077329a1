package repository

import (
	"context"
	"sync"

	"github.com/hypertrace/artifact-publisher/utils"
	"golang.org/x/exp/slices"
)

// Registry holds the repository targets. It accepts registrations until a snapshot is taken.
type Registry struct {
	mu       sync.Mutex
	targets  map[string]RepositoryTarget
	order    []string
	snapshot *Snapshot
}

func NewRegistry() *Registry {
	return &Registry{targets: map[string]RepositoryTarget{}}
}

func (r *Registry) Register(target RepositoryTarget) error {
	if err := target.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.snapshot != nil {
		return &utils.ConfigurationError{Property: target.Name, Message: "the registry is read-only once publishing has started"}
	}
	if _, exists := r.targets[target.Name]; exists {
		return &utils.DuplicateTargetError{Name: target.Name}
	}
	r.targets[target.Name] = target
	r.order = append(r.order, target.Name)
	return nil
}

func (r *Registry) Resolve(name string) (RepositoryTarget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return resolve(r.targets, name)
}

func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.order)
}

// Snapshot freezes the registry and returns its read-only view. Every call returns the same snapshot,
// so the one-session-per-target lock holds for everyone publishing through this registry.
func (r *Registry) Snapshot() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.snapshot == nil {
		r.snapshot = newSnapshot(r.targets, r.order)
	}
	return r.snapshot
}

// Snapshot is an immutable view of the registered targets, plus the per-target staging session locks.
type Snapshot struct {
	targets map[string]RepositoryTarget
	order   []string
	locks   map[string]chan struct{}
}

func newSnapshot(targets map[string]RepositoryTarget, order []string) *Snapshot {
	snapshot := &Snapshot{
		targets: make(map[string]RepositoryTarget, len(targets)),
		order:   slices.Clone(order),
		locks:   make(map[string]chan struct{}, len(targets)),
	}
	for name, target := range targets {
		snapshot.targets[name] = target
		snapshot.locks[name] = make(chan struct{}, 1)
	}
	return snapshot
}

func (s *Snapshot) Resolve(name string) (RepositoryTarget, error) {
	return resolve(s.targets, name)
}

func (s *Snapshot) Names() []string {
	return slices.Clone(s.order)
}

// Acquire waits until no other staging session is open on the target, and returns the function that frees it.
func (s *Snapshot) Acquire(ctx context.Context, name string) (release func(), err error) {
	lock, ok := s.locks[name]
	if !ok {
		return nil, &utils.UnknownTargetError{Name: name}
	}
	select {
	case lock <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() {
		once.Do(func() { <-lock })
	}, nil
}

func resolve(targets map[string]RepositoryTarget, name string) (RepositoryTarget, error) {
	target, ok := targets[name]
	if !ok {
		return RepositoryTarget{}, &utils.UnknownTargetError{Name: name}
	}
	return target, nil
}
