// Package memory provides an in-memory Store used as the development
// default and as the test double for the service and HTTP layers. It keeps
// the same append-only sequence semantics as the SQLite repository.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"divvy/internal/core"
)

type Store struct {
	mu          sync.RWMutex
	groups      map[string]*core.Group
	expenses    map[string][]core.GroupExpense // group id -> ordered history
	settlements map[string][]core.Settlement
	lastSeq     map[string]int64
	nextID      int64
}

func New() *Store {
	return &Store{
		groups:      make(map[string]*core.Group),
		expenses:    make(map[string][]core.GroupExpense),
		settlements: make(map[string][]core.Settlement),
		lastSeq:     make(map[string]int64),
	}
}

func (s *Store) newID(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", prefix, s.nextID)
}

func (s *Store) CreateGroup(_ context.Context, g *core.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g.ID = s.newID("grp")
	g.CreatedAt = time.Now().UTC()
	cp := *g
	cp.Members = append([]core.Member(nil), g.Members...)
	s.groups[g.ID] = &cp
	return nil
}

func (s *Store) GetGroup(_ context.Context, id string) (*core.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[id]
	if !ok {
		return nil, core.ErrGroupNotFound
	}
	cp := *g
	cp.Members = append([]core.Member(nil), g.Members...)
	return &cp, nil
}

func (s *Store) ListGroupsByMember(_ context.Context, memberID string) ([]core.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.Group
	for _, g := range s.groups {
		if g.HasMember(memberID) {
			cp := *g
			cp.Members = append([]core.Member(nil), g.Members...)
			out = append(out, cp)
		}
	}
	return out, nil
}

func (s *Store) AppendExpense(_ context.Context, e *core.GroupExpense) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[e.GroupID]; !ok {
		return core.ErrGroupNotFound
	}
	s.lastSeq[e.GroupID]++
	e.ID = s.newID("exp")
	e.Sequence = s.lastSeq[e.GroupID]

	cp := *e
	cp.Splits = make(map[string]core.Money, len(e.Splits))
	for id, share := range e.Splits {
		cp.Splits[id] = share
	}
	s.expenses[e.GroupID] = append(s.expenses[e.GroupID], cp)
	return nil
}

func (s *Store) ListExpenses(_ context.Context, groupID string) ([]core.GroupExpense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.groups[groupID]; !ok {
		return nil, core.ErrGroupNotFound
	}
	return append([]core.GroupExpense(nil), s.expenses[groupID]...), nil
}

func (s *Store) AppendSettlement(_ context.Context, st *core.Settlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[st.GroupID]; !ok {
		return core.ErrGroupNotFound
	}
	s.lastSeq[st.GroupID]++
	st.ID = s.newID("stl")
	st.Sequence = s.lastSeq[st.GroupID]
	s.settlements[st.GroupID] = append(s.settlements[st.GroupID], *st)
	return nil
}

func (s *Store) ListSettlements(_ context.Context, groupID string) ([]core.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.groups[groupID]; !ok {
		return nil, core.ErrGroupNotFound
	}
	return append([]core.Settlement(nil), s.settlements[groupID]...), nil
}

func (s *Store) Close() error { return nil }
