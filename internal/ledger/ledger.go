package ledger

import (
	"sort"

	"divvy/internal/core"
)

// pairKey is the canonical unordered member pair: low < high
// lexicographically. Each pair holds a single signed balance, so the "at most
// one direction nonzero" invariant is structural rather than maintained by a
// netting pass.
type pairKey struct {
	low, high string
}

func keyFor(a, b string) (pairKey, bool) {
	if a < b {
		return pairKey{low: a, high: b}, false
	}
	return pairKey{low: b, high: a}, true
}

// Ledger is the derived pairwise debt matrix for one group. A positive value
// means low owes high; negative means high owes low; settled pairs are
// removed. It is a pure value: derive it from history with FromHistory, or
// maintain it incrementally. Both paths must agree.
type Ledger struct {
	debts map[pairKey]int64
}

func New() *Ledger {
	return &Ledger{debts: make(map[pairKey]int64)}
}

// FromHistory rebuilds the ledger from the group's append-only record
// sequences. Expenses and settlements are folded strictly in occurrence
// order, interleaved by their sequence numbers, so a settlement always lands
// after the expenses it settles.
func FromHistory(expenses []core.GroupExpense, settlements []core.Settlement) *Ledger {
	type event struct {
		seq        int64
		expense    *core.GroupExpense
		settlement *core.Settlement
	}

	events := make([]event, 0, len(expenses)+len(settlements))
	for i := range expenses {
		events = append(events, event{seq: expenses[i].Sequence, expense: &expenses[i]})
	}
	for i := range settlements {
		events = append(events, event{seq: settlements[i].Sequence, settlement: &settlements[i]})
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].seq < events[j].seq })

	l := New()
	for _, ev := range events {
		if ev.expense != nil {
			l.ApplyExpense(ev.expense)
		} else {
			l.foldSettlement(ev.settlement.From, ev.settlement.To, ev.settlement.Amount.Cents)
		}
	}
	return l
}

// ApplyExpense folds one expense into the matrix: every member with a
// positive share who is not the payer owes the payer that share. Reciprocal
// debts net automatically through the signed pair balance.
func (l *Ledger) ApplyExpense(e *core.GroupExpense) {
	for member, share := range e.Splits {
		if member == e.PaidBy || share.Cents <= 0 {
			continue
		}
		l.add(member, e.PaidBy, share.Cents)
	}
}

// Settle validates and applies a settlement from debtor to creditor. The
// debt must exist in that direction and the amount must not exceed it by
// more than the tolerance; otherwise an OverSettlementError is returned and
// the ledger is untouched. A remainder within tolerance clears the entry
// entirely (floor at zero, never a reverse credit).
func (l *Ledger) Settle(from, to string, amount core.Money) error {
	outstanding := l.Owed(from, to)
	if outstanding.Cents == 0 || amount.Cents > outstanding.Cents+core.Tolerance {
		return &core.OverSettlementError{
			From:        from,
			To:          to,
			Requested:   amount,
			Outstanding: outstanding,
		}
	}
	l.foldSettlement(from, to, amount.Cents)
	return nil
}

// foldSettlement is the unchecked fold used both by Settle and by history
// replay, where the settlement was already validated when first recorded.
func (l *Ledger) foldSettlement(from, to string, cents int64) {
	outstanding := l.Owed(from, to).Cents
	if outstanding == 0 {
		return
	}
	remaining := outstanding - cents
	key, flipped := keyFor(from, to)
	if remaining <= core.Tolerance {
		delete(l.debts, key)
		return
	}
	if flipped {
		l.debts[key] = -remaining
	} else {
		l.debts[key] = remaining
	}
}

func (l *Ledger) add(debtor, creditor string, cents int64) {
	key, flipped := keyFor(debtor, creditor)
	if flipped {
		cents = -cents
	}
	l.debts[key] += cents
	if l.debts[key] == 0 {
		delete(l.debts, key)
	}
}

// Owed returns the outstanding debt from debtor to creditor, zero when the
// pair is settled or the balance runs the other way.
func (l *Ledger) Owed(debtor, creditor string) core.Money {
	key, flipped := keyFor(debtor, creditor)
	bal := l.debts[key]
	if flipped {
		bal = -bal
	}
	if bal <= 0 {
		return core.Money{}
	}
	return core.Money{Cents: bal}
}

// Balances returns the debtor -> creditor -> amount mapping, omitting
// settled pairs.
func (l *Ledger) Balances() map[string]map[string]core.Money {
	out := make(map[string]map[string]core.Money)
	for key, bal := range l.debts {
		debtor, creditor := key.low, key.high
		if bal < 0 {
			debtor, creditor = key.high, key.low
			bal = -bal
		}
		if bal == 0 {
			continue
		}
		if out[debtor] == nil {
			out[debtor] = make(map[string]core.Money)
		}
		out[debtor][creditor] = core.Money{Cents: bal}
	}
	return out
}

// NetPosition is the member's single signed balance across all
// counterparties: positive means net creditor, negative net debtor.
func (l *Ledger) NetPosition(member string) core.Money {
	var net int64
	for key, bal := range l.debts {
		switch member {
		case key.low:
			net -= bal
		case key.high:
			net += bal
		}
	}
	return core.Money{Cents: net}
}

// Len reports the number of indebted pairs.
func (l *Ledger) Len() int {
	return len(l.debts)
}
