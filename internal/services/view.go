package services

import (
	"context"
	"time"

	"divvy/internal/core"
	"divvy/internal/ledger"
)

// GroupView is the materialized read model for one group: the roster, the
// pairwise balances, every member's net position, and the spending summary.
// Views are derived purely from the group history and cached briefly.
type GroupView struct {
	Group        core.Group
	Expenses     []core.GroupExpense
	Balances     map[string]map[string]core.Money // debtor -> creditor -> owed
	NetPositions map[string]core.Money            // every member, zero included

	TotalSpent      core.Money
	TotalSettled    core.Money
	ExpenseCount    int
	SettlementCount int
	ByCategory      map[core.Category]core.Money
	LastActivity    time.Time
}

// GroupView returns the cached view for a group, rebuilding it from history
// on a miss. Mutations drop the cached entry, so a view is never older than
// the last write plus the cache TTL.
func (s *LedgerService) GroupView(ctx context.Context, groupID string) (*GroupView, error) {
	if view, ok := s.views.Get(groupID); ok {
		return view, nil
	}

	g, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	expenses, err := s.store.ListExpenses(ctx, groupID)
	if err != nil {
		return nil, err
	}
	settlements, err := s.store.ListSettlements(ctx, groupID)
	if err != nil {
		return nil, err
	}

	view := buildView(g, expenses, settlements)
	s.views.Set(groupID, view)
	return view, nil
}

func buildView(g *core.Group, expenses []core.GroupExpense, settlements []core.Settlement) *GroupView {
	led := ledger.FromHistory(expenses, settlements)

	view := &GroupView{
		Group:           *g,
		Expenses:        expenses,
		Balances:        led.Balances(),
		NetPositions:    make(map[string]core.Money, len(g.Members)),
		ExpenseCount:    len(expenses),
		SettlementCount: len(settlements),
		ByCategory:      make(map[core.Category]core.Money),
	}

	for _, m := range g.Members {
		view.NetPositions[m.ID] = led.NetPosition(m.ID)
	}

	for _, e := range expenses {
		view.TotalSpent = view.TotalSpent.Add(e.Total)
		cat := e.Category
		if cat == "" {
			cat = core.CategoryOther
		}
		view.ByCategory[cat] = view.ByCategory[cat].Add(e.Total)
		if e.Date.After(view.LastActivity) {
			view.LastActivity = e.Date
		}
	}
	for _, st := range settlements {
		view.TotalSettled = view.TotalSettled.Add(st.Amount)
		if st.Date.After(view.LastActivity) {
			view.LastActivity = st.Date
		}
	}

	return view
}

// Balances returns the group's pairwise debts, debtor to creditor.
func (s *LedgerService) Balances(ctx context.Context, groupID string) (map[string]map[string]core.Money, error) {
	view, err := s.GroupView(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return view.Balances, nil
}

// NetBalance returns one member's signed net position: positive means the
// group owes them, negative means they owe the group.
func (s *LedgerService) NetBalance(ctx context.Context, groupID, memberID string) (core.Money, error) {
	view, err := s.GroupView(ctx, groupID)
	if err != nil {
		return core.Money{}, err
	}
	if !view.Group.HasMember(memberID) {
		return core.Money{}, &core.UnknownMemberError{MemberID: memberID}
	}
	return view.NetPositions[memberID], nil
}
