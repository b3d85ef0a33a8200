package core

import (
	"errors"
	"fmt"
)

// Not-found conditions propagated from storage and surfaced as-is.
var (
	ErrGroupNotFound   = errors.New("group not found")
	ErrExpenseNotFound = errors.New("expense not found")
)

// SplitMismatchError reports custom split values that do not reconcile with
// the expense total within the one-cent tolerance. No ledger state changes.
type SplitMismatchError struct {
	Got  Money // sum of the provided splits
	Want Money // the expense total
}

func (e *SplitMismatchError) Error() string {
	return fmt.Sprintf("split sum %s does not match total %s", e.Got.Decimal(), e.Want.Decimal())
}

// UnknownMemberError reports a payer or split key that does not resolve to a
// member of the group. The whole expense is rejected atomically.
type UnknownMemberError struct {
	MemberID string
}

func (e *UnknownMemberError) Error() string {
	return fmt.Sprintf("member %q is not in the group", e.MemberID)
}

// IsValidation reports whether err is a domain validation failure, as
// opposed to a not-found or infrastructure error.
func IsValidation(err error) bool {
	for _, sentinel := range []error{
		ErrEmptyDescription, ErrEmptyGroupName, ErrEmptyMemberID,
		ErrEmptyMemberName, ErrInvalidAmount, ErrInvalidSplitType,
		ErrInvalidCategory, ErrNoOwner, ErrDuplicateMember,
		ErrDescriptionLong, ErrMissingPayer, ErrSameMember,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	var mismatch *SplitMismatchError
	var unknown *UnknownMemberError
	return errors.As(err, &mismatch) || errors.As(err, &unknown)
}

// OverSettlementError reports a settlement that exceeds the outstanding debt
// in that direction, or targets a pair with no debt at all. Flipping a debt
// into a reverse credit is never allowed.
type OverSettlementError struct {
	From        string
	To          string
	Requested   Money
	Outstanding Money
}

func (e *OverSettlementError) Error() string {
	return fmt.Sprintf("settlement of %s from %s to %s exceeds outstanding debt %s",
		e.Requested.Decimal(), e.From, e.To, e.Outstanding.Decimal())
}
