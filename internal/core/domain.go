package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	SplitEqual  SplitType = "equal"
	SplitCustom SplitType = "custom"
)

const (
	RoleOwner  MemberRole = "owner"
	RoleMember MemberRole = "member"
)

type (
	SplitType  string
	MemberRole string
	Category   string

	Money struct {
		Cents int64
	}

	// Member is a participant in a group. The group owner is stored in the
	// same collection as everyone else, tagged with RoleOwner, so ledger
	// logic iterates one uniform member set.
	Member struct {
		ID    string
		Name  string
		Email string
		Role  MemberRole
	}

	Group struct {
		ID        string
		Name      string
		Members   []Member // owner first, then members in insertion order
		CreatedAt time.Time
	}

	// GroupExpense is append-only: once recorded it is never edited or
	// deleted, only folded into balances.
	GroupExpense struct {
		ID          string
		GroupID     string
		Description string
		Total       Money
		Category    Category
		Date        time.Time
		PaidBy      string
		SplitType   SplitType
		Splits      map[string]Money // member id -> owed share
		Sequence    int64            // fold order within the group history
	}

	// Settlement records a payment from a debtor to a creditor that reduces
	// the corresponding ledger entry.
	Settlement struct {
		ID       string
		GroupID  string
		From     string // debtor
		To       string // creditor
		Amount   Money
		Date     time.Time
		Sequence int64
	}
)

// Expense categories, matching the taxonomy exposed by the UI.
const (
	CategoryFood          Category = "food"
	CategoryTravel        Category = "travel"
	CategoryShopping      Category = "shopping"
	CategoryEntertainment Category = "entertainment"
	CategoryHealth        Category = "health"
	CategoryUtilities     Category = "utilities"
	CategoryRent          Category = "rent"
	CategoryEducation     Category = "education"
	CategoryOther         Category = "other"
)

var (
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyGroupName   = errors.New("empty group name")
	ErrEmptyMemberID    = errors.New("empty member id")
	ErrEmptyMemberName  = errors.New("empty member name")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidSplitType = errors.New("invalid split type")
	ErrInvalidCategory  = errors.New("invalid category")
	ErrNoOwner          = errors.New("group must have exactly one owner")
	ErrDuplicateMember  = errors.New("duplicate member id")
	ErrDescriptionLong  = errors.New("description too long (max 200 characters)")
	ErrMissingPayer     = errors.New("missing payer")
	ErrSameMember       = errors.New("debtor and creditor must differ")
)

func (st SplitType) IsValid() bool {
	return st == SplitEqual || st == SplitCustom
}

func (c Category) IsValid() bool {
	switch c {
	case CategoryFood, CategoryTravel, CategoryShopping, CategoryEntertainment,
		CategoryHealth, CategoryUtilities, CategoryRent, CategoryEducation, CategoryOther:
		return true
	}
	return false
}

func (m Member) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return ErrEmptyMemberID
	}
	if strings.TrimSpace(m.Name) == "" {
		return ErrEmptyMemberName
	}
	return nil
}

func (g Group) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyGroupName
	}
	owners := 0
	seen := make(map[string]bool, len(g.Members))
	for _, m := range g.Members {
		if err := m.Validate(); err != nil {
			return err
		}
		if seen[m.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateMember, m.ID)
		}
		seen[m.ID] = true
		if m.Role == RoleOwner {
			owners++
		}
	}
	if owners != 1 {
		return ErrNoOwner
	}
	return nil
}

// Owner returns the distinguished owning member.
func (g Group) Owner() (Member, bool) {
	for _, m := range g.Members {
		if m.Role == RoleOwner {
			return m, true
		}
	}
	return Member{}, false
}

// HasMember reports whether id resolves to the owner or a member.
func (g Group) HasMember(id string) bool {
	for _, m := range g.Members {
		if m.ID == id {
			return true
		}
	}
	return false
}

// ParticipantIDs returns every member id in stored order, owner first.
// This ordering decides which share absorbs the equal-split remainder.
func (g Group) ParticipantIDs() []string {
	ids := make([]string, len(g.Members))
	for i, m := range g.Members {
		ids[i] = m.ID
	}
	return ids
}

func (e GroupExpense) Validate() error {
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return ErrDescriptionLong
	}
	if err := e.Total.Validate(); err != nil {
		return err
	}
	if !e.SplitType.IsValid() {
		return ErrInvalidSplitType
	}
	if e.Category != "" && !e.Category.IsValid() {
		return ErrInvalidCategory
	}
	if strings.TrimSpace(e.PaidBy) == "" {
		return ErrMissingPayer
	}
	return nil
}

func (s Settlement) Validate() error {
	if strings.TrimSpace(s.From) == "" || strings.TrimSpace(s.To) == "" {
		return ErrEmptyMemberID
	}
	if s.From == s.To {
		return ErrSameMember
	}
	return s.Amount.Validate()
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
