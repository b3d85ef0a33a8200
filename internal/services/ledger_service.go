// Package services orchestrates group ledger operations across storage,
// the cache, and AMQP.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"divvy/internal/cache"
	"divvy/internal/core"
	"divvy/internal/ledger"
	"divvy/internal/storage"
)

// EventPublisher is the slice of the AMQP client the service needs. Nil is
// allowed: events are then skipped, the write path never depends on the
// broker being up.
type EventPublisher interface {
	PublishExpenseRecorded(ctx context.Context, id, groupID string, seq int64) error
	PublishSettlementRecorded(ctx context.Context, id, groupID string, seq int64) error
}

// LedgerService serializes mutations per group and keeps materialized group
// views in a TTL cache that is dropped on every write.
type LedgerService struct {
	store     storage.Store
	publisher EventPublisher
	views     *cache.LRUCache[*GroupView]

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLedgerService(store storage.Store, publisher EventPublisher) *LedgerService {
	return &LedgerService{
		store:     store,
		publisher: publisher,
		views:     cache.NewLRUCache[*GroupView](256, 30*time.Second),
		locks:     make(map[string]*sync.Mutex),
	}
}

// ViewCache exposes the group view cache for expiry sweeps.
func (s *LedgerService) ViewCache() *cache.LRUCache[*GroupView] {
	return s.views
}

func (s *LedgerService) groupLock(groupID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[groupID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[groupID] = lock
	}
	return lock
}

// CreateGroup creates a group owned by owner. The owner is stored as the
// first member; duplicate member ids are rejected by validation.
func (s *LedgerService) CreateGroup(ctx context.Context, name string, owner core.Member, members []core.Member) (*core.Group, error) {
	owner.Role = core.RoleOwner

	all := make([]core.Member, 0, len(members)+1)
	all = append(all, owner)
	for _, m := range members {
		m.Role = core.RoleMember
		all = append(all, m)
	}

	g := &core.Group{Name: name, Members: all}
	if err := g.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.CreateGroup(ctx, g); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}

	slog.InfoContext(ctx, "Group created",
		"group_id", g.ID,
		"owner", owner.ID,
		"members", len(all))

	return g, nil
}

func (s *LedgerService) GetGroup(ctx context.Context, groupID string) (*core.Group, error) {
	return s.store.GetGroup(ctx, groupID)
}

// ListGroups returns every group the member belongs to, as owner or member.
func (s *LedgerService) ListGroups(ctx context.Context, memberID string) ([]core.Group, error) {
	return s.store.ListGroupsByMember(ctx, memberID)
}

// ExpenseInput is a request to record an expense against a group.
type ExpenseInput struct {
	GroupID     string
	Description string
	Total       core.Money
	Category    core.Category
	Date        time.Time
	PaidBy      string
	SplitType   core.SplitType

	// Participants limits an equal split to a subset of members; empty means
	// the whole group. For custom splits it defaults to the share keys.
	Participants []string
	Shares       map[string]core.Money
}

// RecordExpense validates the expense against the group roster, computes or
// checks the splits, and appends it to the group history. The payer may or
// may not appear in the splits; only other members' shares become debts.
func (s *LedgerService) RecordExpense(ctx context.Context, in ExpenseInput) (*core.GroupExpense, error) {
	lock := s.groupLock(in.GroupID)
	lock.Lock()
	defer lock.Unlock()

	g, err := s.store.GetGroup(ctx, in.GroupID)
	if err != nil {
		return nil, err
	}

	if !g.HasMember(in.PaidBy) {
		return nil, &core.UnknownMemberError{MemberID: in.PaidBy}
	}

	participants := in.Participants
	if len(participants) == 0 {
		if in.SplitType == core.SplitCustom {
			for id := range in.Shares {
				participants = append(participants, id)
			}
		} else {
			participants = g.ParticipantIDs()
		}
	}
	for _, id := range participants {
		if !g.HasMember(id) {
			return nil, &core.UnknownMemberError{MemberID: id}
		}
	}

	var splits map[string]core.Money
	switch in.SplitType {
	case core.SplitEqual:
		splits, err = ledger.EqualSplit(in.Total, participants)
		if err != nil {
			return nil, err
		}
	case core.SplitCustom:
		for id := range in.Shares {
			if !g.HasMember(id) {
				return nil, &core.UnknownMemberError{MemberID: id}
			}
		}
		if err := ledger.ValidateCustomSplit(in.Total, participants, in.Shares); err != nil {
			return nil, err
		}
		splits = in.Shares
	default:
		return nil, core.ErrInvalidSplitType
	}

	date := in.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}

	expense := &core.GroupExpense{
		GroupID:     in.GroupID,
		Description: in.Description,
		Total:       in.Total,
		Category:    in.Category,
		Date:        date,
		PaidBy:      in.PaidBy,
		SplitType:   in.SplitType,
		Splits:      splits,
	}
	if err := expense.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.AppendExpense(ctx, expense); err != nil {
		return nil, fmt.Errorf("append expense: %w", err)
	}
	s.views.Delete(in.GroupID)

	if s.publisher != nil {
		if err := s.publisher.PublishExpenseRecorded(ctx, expense.ID, expense.GroupID, expense.Sequence); err != nil {
			// The expense is committed; export catches up via the pending scan.
			slog.ErrorContext(ctx, "Failed to publish expense event",
				"expense_id", expense.ID, "error", err)
		}
	}

	slog.InfoContext(ctx, "Expense recorded",
		"group_id", expense.GroupID,
		"expense_id", expense.ID,
		"seq", expense.Sequence,
		"amount_cents", expense.Total.Cents,
		"split_type", expense.SplitType)

	return expense, nil
}

// SettlementInput is a request to record a repayment from a debtor to a
// creditor.
type SettlementInput struct {
	GroupID string
	From    string
	To      string
	Amount  core.Money
	Date    time.Time
}

// Settle checks the repayment against the current ledger and appends it to
// the group history. Settling more than is owed, or a pair with no debt in
// that direction, is rejected without changing anything.
func (s *LedgerService) Settle(ctx context.Context, in SettlementInput) (*core.Settlement, error) {
	lock := s.groupLock(in.GroupID)
	lock.Lock()
	defer lock.Unlock()

	g, err := s.store.GetGroup(ctx, in.GroupID)
	if err != nil {
		return nil, err
	}
	if !g.HasMember(in.From) {
		return nil, &core.UnknownMemberError{MemberID: in.From}
	}
	if !g.HasMember(in.To) {
		return nil, &core.UnknownMemberError{MemberID: in.To}
	}

	date := in.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	settlement := &core.Settlement{
		GroupID: in.GroupID,
		From:    in.From,
		To:      in.To,
		Amount:  in.Amount,
		Date:    date,
	}
	if err := settlement.Validate(); err != nil {
		return nil, err
	}

	led, err := s.rebuildLedger(ctx, in.GroupID)
	if err != nil {
		return nil, err
	}
	if err := led.Settle(in.From, in.To, in.Amount); err != nil {
		return nil, err
	}

	if err := s.store.AppendSettlement(ctx, settlement); err != nil {
		return nil, fmt.Errorf("append settlement: %w", err)
	}
	s.views.Delete(in.GroupID)

	if s.publisher != nil {
		if err := s.publisher.PublishSettlementRecorded(ctx, settlement.ID, settlement.GroupID, settlement.Sequence); err != nil {
			slog.ErrorContext(ctx, "Failed to publish settlement event",
				"settlement_id", settlement.ID, "error", err)
		}
	}

	slog.InfoContext(ctx, "Settlement recorded",
		"group_id", settlement.GroupID,
		"settlement_id", settlement.ID,
		"seq", settlement.Sequence,
		"from", settlement.From,
		"to", settlement.To,
		"amount_cents", settlement.Amount.Cents)

	return settlement, nil
}

func (s *LedgerService) rebuildLedger(ctx context.Context, groupID string) (*ledger.Ledger, error) {
	expenses, err := s.store.ListExpenses(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	settlements, err := s.store.ListSettlements(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}
	return ledger.FromHistory(expenses, settlements), nil
}
