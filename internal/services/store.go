package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"slices"
	"snail-trail-service/internal/domain"
	"snail-trail-service/internal/geo"
	"snail-trail-service/internal/ports"
	"sync"

	"golang.org/x/sync/errgroup"
)

var (
	ErrDuplicateID         = errors.New("duplicate id")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// AppState is the in-memory source of truth for snails, the user profile,
// the coin balance and the user's live location. It is safe for concurrent use.
type AppState struct {
	mu sync.RWMutex

	snails       map[string]domain.Snail
	profile      domain.UserProfile
	userLocation *domain.Coordinate

	workers int
}

// NewAppState builds a store from previously persisted snails and profile.
func NewAppState(snails []domain.Snail, profile domain.UserProfile) (*AppState, error) {
	if profile.Balance < 0 || math.IsNaN(profile.Balance) {
		return nil, fmt.Errorf("new app state: %w: balance %v", ErrInsufficientBalance, profile.Balance)
	}

	s := &AppState{
		snails:  make(map[string]domain.Snail, len(snails)),
		profile: profile.Normalize(),
		workers: runtime.GOMAXPROCS(0),
	}
	for _, sn := range snails {
		if err := s.AddEntity(sn); err != nil {
			return nil, fmt.Errorf("new app state: %w", err)
		}
	}
	return s, nil
}

// SetWorkers bounds the parallelism used by AdvanceAll.
func (s *AppState) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	s.mu.Lock()
	s.workers = n
	s.mu.Unlock()
}

func (s *AppState) AddEntity(sn domain.Snail) error {
	if err := sn.Validate(); err != nil {
		return fmt.Errorf("add entity: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.snails[sn.ID]; ok {
		return fmt.Errorf("add entity %s: %w", sn.ID, ErrDuplicateID)
	}
	if sn.FollowUser && s.userLocation != nil {
		sn = sn.WithTarget(*s.userLocation)
	}
	s.snails[sn.ID] = sn.Clone()
	return nil
}

// UpdateEntity replaces the snail stored under id with fn's result.
// fn runs under the write lock and must not call back into the store.
func (s *AppState) UpdateEntity(id string, fn func(domain.Snail) (domain.Snail, error)) (domain.Snail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.snails[id]
	if !ok {
		return domain.Snail{}, fmt.Errorf("update entity %s: %w", id, ports.ErrNotFound)
	}

	next, err := fn(cur.Clone())
	if err != nil {
		return domain.Snail{}, fmt.Errorf("update entity %s: %w", id, err)
	}
	if next.ID != id {
		return domain.Snail{}, fmt.Errorf("update entity %s: %w: id cannot change", id, domain.ErrInvalidID)
	}
	if err := next.Validate(); err != nil {
		return domain.Snail{}, fmt.Errorf("update entity %s: %w", id, err)
	}

	s.snails[id] = next.Clone()
	return next.Clone(), nil
}

func (s *AppState) RemoveEntity(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.snails[id]; !ok {
		return fmt.Errorf("remove entity %s: %w", id, ports.ErrNotFound)
	}
	delete(s.snails, id)
	return nil
}

func (s *AppState) Get(id string) (domain.Snail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sn, ok := s.snails[id]
	if !ok {
		return domain.Snail{}, fmt.Errorf("get entity %s: %w", id, ports.ErrNotFound)
	}
	return sn.Clone(), nil
}

// List returns copies of every snail sorted by name, then id.
func (s *AppState) List() []domain.Snail {
	out := s.copyAll()
	slices.SortFunc(out, func(a, b domain.Snail) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out
}

// Snapshot returns copies of every snail sorted by id.
func (s *AppState) Snapshot() []domain.Snail {
	out := s.copyAll()
	slices.SortFunc(out, func(a, b domain.Snail) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (s *AppState) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snails)
}

func (s *AppState) copyAll() []domain.Snail {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Snail, 0, len(s.snails))
	for _, sn := range s.snails {
		out = append(out, sn.Clone())
	}
	return out
}

// SetUserLocation records the user's live location and points every
// following snail at it. It returns the retargeted snails.
func (s *AppState) SetUserLocation(loc domain.Coordinate) ([]domain.Snail, error) {
	if err := loc.Validate(); err != nil {
		return nil, fmt.Errorf("set user location: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.userLocation = &loc

	var changed []domain.Snail
	for id, sn := range s.snails {
		if !sn.FollowUser || sn.TargetLocation == loc {
			continue
		}
		sn = sn.WithTarget(loc)
		s.snails[id] = sn
		changed = append(changed, sn.Clone())
	}
	slices.SortFunc(changed, func(a, b domain.Snail) int { return cmp.Compare(a.ID, b.ID) })
	return changed, nil
}

func (s *AppState) UserLocation() (domain.Coordinate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.userLocation == nil {
		return domain.Coordinate{}, false
	}
	return *s.userLocation, true
}

type advanced struct {
	id      string
	from    domain.Coordinate
	target  domain.Coordinate
	to      domain.Coordinate
	arrived bool
}

// AdvanceAll moves every snail toward its target by elapsedSeconds of travel
// and returns the ids of snails that reached their target on this call.
//
// New positions are computed outside the lock. Snails removed in the
// meantime are skipped, and a snail whose location or target changed
// concurrently keeps its newer state until the next call.
func (s *AppState) AdvanceAll(ctx context.Context, elapsedSeconds float64) ([]string, error) {
	results, err := s.planAdvance(ctx, elapsedSeconds)
	if err != nil {
		return nil, err
	}
	return s.applyAdvance(results), nil
}

func (s *AppState) planAdvance(ctx context.Context, elapsedSeconds float64) ([]advanced, error) {
	if math.IsNaN(elapsedSeconds) || math.IsInf(elapsedSeconds, 0) || elapsedSeconds < 0 {
		return nil, fmt.Errorf("advance all: invalid elapsed seconds %v", elapsedSeconds)
	}

	s.mu.RLock()
	batch := make([]domain.Snail, 0, len(s.snails))
	for _, sn := range s.snails {
		batch = append(batch, sn)
	}
	workers := s.workers
	s.mu.RUnlock()

	results := make([]advanced, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, sn := range batch {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			next := geo.Advance(sn.Location, sn.TargetLocation, sn.Speed, elapsedSeconds)
			results[i] = advanced{
				id:      sn.ID,
				from:    sn.Location,
				target:  sn.TargetLocation,
				to:      next,
				arrived: sn.Location != sn.TargetLocation && next == sn.TargetLocation,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("advance all: %w", err)
	}
	return results, nil
}

func (s *AppState) applyAdvance(results []advanced) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var arrived []string
	for _, r := range results {
		cur, ok := s.snails[r.id]
		if !ok || cur.Location != r.from || cur.TargetLocation != r.target {
			continue
		}
		cur.Location = r.to
		s.snails[r.id] = cur
		if r.arrived {
			arrived = append(arrived, r.id)
		}
	}
	slices.Sort(arrived)
	return arrived
}

// AdjustBalance adds delta to the balance and returns the new balance.
// A result below zero is rejected and leaves the balance unchanged.
func (s *AppState) AdjustBalance(delta float64) (float64, error) {
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return 0, fmt.Errorf("adjust balance: invalid delta %v", delta)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.profile.Balance + delta
	if next < 0 {
		return s.profile.Balance, fmt.Errorf("adjust balance by %.2f from %.2f: %w", delta, s.profile.Balance, ErrInsufficientBalance)
	}
	s.profile.Balance = next
	return next, nil
}

func (s *AppState) Balance() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile.Balance
}

func (s *AppState) Profile() domain.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile.Normalize()
}

// UpdateProfile applies fn to the profile. The balance only moves through
// AdjustBalance, so any change fn makes to it is discarded.
func (s *AppState) UpdateProfile(fn func(domain.UserProfile) domain.UserProfile) domain.UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := fn(s.profile.Normalize()).Normalize()
	next.Balance = s.profile.Balance
	s.profile = next
	return next.Normalize()
}
