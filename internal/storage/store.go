package storage

import (
	"context"

	"divvy/internal/core"
)

// Store is the persistence boundary for group histories. Groups are created
// once; expenses and settlements are append-only and carry a per-group
// sequence number that fixes the ledger fold order.
type Store interface {
	CreateGroup(ctx context.Context, g *core.Group) error
	GetGroup(ctx context.Context, id string) (*core.Group, error)
	ListGroupsByMember(ctx context.Context, memberID string) ([]core.Group, error)

	// AppendExpense atomically persists the expense and its splits,
	// assigning ID and Sequence.
	AppendExpense(ctx context.Context, e *core.GroupExpense) error
	ListExpenses(ctx context.Context, groupID string) ([]core.GroupExpense, error)

	AppendSettlement(ctx context.Context, s *core.Settlement) error
	ListSettlements(ctx context.Context, groupID string) ([]core.Settlement, error)

	Close() error
}
