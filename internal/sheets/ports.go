// Package sheets defines the outbound ports for mirroring group history to
// a spreadsheet.
package sheets

import (
	"context"

	"divvy/internal/core"
)

// HistoryWriter appends one row per recorded expense or settlement. The
// returned rowRef identifies where the record landed, for logging.
type HistoryWriter interface {
	AppendExpenseRow(ctx context.Context, g *core.Group, e *core.GroupExpense) (rowRef string, err error)
	AppendSettlementRow(ctx context.Context, g *core.Group, s *core.Settlement) (rowRef string, err error)
}
