package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"divvy/internal/core"
	"divvy/internal/storage/memory"
)

type recordingPublisher struct {
	mu          sync.Mutex
	expenses    []string
	settlements []string
	failWith    error
}

func (p *recordingPublisher) PublishExpenseRecorded(_ context.Context, id, _ string, _ int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return p.failWith
	}
	p.expenses = append(p.expenses, id)
	return nil
}

func (p *recordingPublisher) PublishSettlementRecorded(_ context.Context, id, _ string, _ int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return p.failWith
	}
	p.settlements = append(p.settlements, id)
	return nil
}

func newTestService(t *testing.T) (*LedgerService, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	return NewLedgerService(memory.New(), pub), pub
}

func createTestGroup(t *testing.T, svc *LedgerService, memberIDs ...string) *core.Group {
	t.Helper()
	owner := core.Member{ID: memberIDs[0], Name: "Member " + memberIDs[0]}
	var rest []core.Member
	for _, id := range memberIDs[1:] {
		rest = append(rest, core.Member{ID: id, Name: "Member " + id})
	}
	g, err := svc.CreateGroup(context.Background(), "trip", owner, rest)
	if err != nil {
		t.Fatalf("CreateGroup() error: %v", err)
	}
	return g
}

func TestCreateGroupAssignsRoles(t *testing.T) {
	svc, _ := newTestService(t)
	g := createTestGroup(t, svc, "ana", "bo", "cy")

	if g.ID == "" {
		t.Fatal("group id not assigned")
	}
	owner, ok := g.Owner()
	if !ok || owner.ID != "ana" {
		t.Fatalf("owner = %+v, want ana", owner)
	}
	for _, m := range g.Members[1:] {
		if m.Role != core.RoleMember {
			t.Errorf("member %s role = %s, want member", m.ID, m.Role)
		}
	}
}

func TestCreateGroupRejectsDuplicateMember(t *testing.T) {
	svc, _ := newTestService(t)
	owner := core.Member{ID: "ana", Name: "Ana"}
	_, err := svc.CreateGroup(context.Background(), "trip", owner,
		[]core.Member{{ID: "ana", Name: "Ana again"}})
	if err == nil {
		t.Fatal("expected error for duplicate member id")
	}
}

func TestListGroupsFiltersByMember(t *testing.T) {
	svc, _ := newTestService(t)
	createTestGroup(t, svc, "ana", "bo")
	createTestGroup(t, svc, "cy", "dee")

	groups, err := svc.ListGroups(context.Background(), "bo")
	if err != nil {
		t.Fatalf("ListGroups() error: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("ListGroups(bo) returned %d groups, want 1", len(groups))
	}
}

func TestRecordExpenseEqualSplit(t *testing.T) {
	svc, pub := newTestService(t)
	g := createTestGroup(t, svc, "ana", "bo", "cy")

	e, err := svc.RecordExpense(context.Background(), ExpenseInput{
		GroupID:     g.ID,
		Description: "dinner",
		Total:       core.Money{Cents: 9000},
		PaidBy:      "ana",
		SplitType:   core.SplitEqual,
	})
	if err != nil {
		t.Fatalf("RecordExpense() error: %v", err)
	}
	if e.Sequence != 1 {
		t.Errorf("Sequence = %d, want 1", e.Sequence)
	}
	if len(e.Splits) != 3 {
		t.Fatalf("splits = %d entries, want 3", len(e.Splits))
	}

	balances, err := svc.Balances(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("Balances() error: %v", err)
	}
	if got := balances["bo"]["ana"].Cents; got != 3000 {
		t.Errorf("bo owes ana %d, want 3000", got)
	}
	if got := balances["cy"]["ana"].Cents; got != 3000 {
		t.Errorf("cy owes ana %d, want 3000", got)
	}
	if len(pub.expenses) != 1 {
		t.Errorf("published %d expense events, want 1", len(pub.expenses))
	}
}

func TestRecordExpenseEqualSplitSubset(t *testing.T) {
	svc, _ := newTestService(t)
	g := createTestGroup(t, svc, "ana", "bo", "cy")

	_, err := svc.RecordExpense(context.Background(), ExpenseInput{
		GroupID:      g.ID,
		Description:  "taxi",
		Total:        core.Money{Cents: 2000},
		PaidBy:       "ana",
		SplitType:    core.SplitEqual,
		Participants: []string{"ana", "bo"},
	})
	if err != nil {
		t.Fatalf("RecordExpense() error: %v", err)
	}

	balances, _ := svc.Balances(context.Background(), g.ID)
	if got := balances["bo"]["ana"].Cents; got != 1000 {
		t.Errorf("bo owes ana %d, want 1000", got)
	}
	if _, ok := balances["cy"]; ok {
		t.Error("cy should not owe anything")
	}
}

func TestRecordExpenseCustomSplit(t *testing.T) {
	svc, _ := newTestService(t)
	g := createTestGroup(t, svc, "ana", "bo")

	_, err := svc.RecordExpense(context.Background(), ExpenseInput{
		GroupID:     g.ID,
		Description: "groceries",
		Total:       core.Money{Cents: 5000},
		PaidBy:      "ana",
		SplitType:   core.SplitCustom,
		Shares: map[string]core.Money{
			"ana": {Cents: 1500},
			"bo":  {Cents: 3500},
		},
	})
	if err != nil {
		t.Fatalf("RecordExpense() error: %v", err)
	}

	balances, _ := svc.Balances(context.Background(), g.ID)
	if got := balances["bo"]["ana"].Cents; got != 3500 {
		t.Errorf("bo owes ana %d, want 3500", got)
	}
}

func TestRecordExpenseCustomSplitMismatch(t *testing.T) {
	svc, pub := newTestService(t)
	g := createTestGroup(t, svc, "ana", "bo")

	_, err := svc.RecordExpense(context.Background(), ExpenseInput{
		GroupID:     g.ID,
		Description: "groceries",
		Total:       core.Money{Cents: 5000},
		PaidBy:      "ana",
		SplitType:   core.SplitCustom,
		Shares: map[string]core.Money{
			"ana": {Cents: 1500},
			"bo":  {Cents: 3000},
		},
	})
	var mismatch *core.SplitMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("error = %v, want SplitMismatchError", err)
	}
	if mismatch.Got.Cents != 4500 || mismatch.Want.Cents != 5000 {
		t.Errorf("mismatch = got %d want %d, expected 4500/5000", mismatch.Got.Cents, mismatch.Want.Cents)
	}
	if len(pub.expenses) != 0 {
		t.Error("no event should be published for a rejected expense")
	}
}

func TestRecordExpenseUnknownPayer(t *testing.T) {
	svc, _ := newTestService(t)
	g := createTestGroup(t, svc, "ana", "bo")

	_, err := svc.RecordExpense(context.Background(), ExpenseInput{
		GroupID:     g.ID,
		Description: "dinner",
		Total:       core.Money{Cents: 1000},
		PaidBy:      "zed",
		SplitType:   core.SplitEqual,
	})
	var unknown *core.UnknownMemberError
	if !errors.As(err, &unknown) {
		t.Fatalf("error = %v, want UnknownMemberError", err)
	}
	if unknown.MemberID != "zed" {
		t.Errorf("MemberID = %q, want zed", unknown.MemberID)
	}
}

func TestRecordExpenseUnknownShareKey(t *testing.T) {
	svc, _ := newTestService(t)
	g := createTestGroup(t, svc, "ana", "bo")

	_, err := svc.RecordExpense(context.Background(), ExpenseInput{
		GroupID:     g.ID,
		Description: "dinner",
		Total:       core.Money{Cents: 1000},
		PaidBy:      "ana",
		SplitType:   core.SplitCustom,
		Shares: map[string]core.Money{
			"ana": {Cents: 500},
			"zed": {Cents: 500},
		},
	})
	var unknown *core.UnknownMemberError
	if !errors.As(err, &unknown) {
		t.Fatalf("error = %v, want UnknownMemberError", err)
	}
}

func TestRecordExpenseGroupNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.RecordExpense(context.Background(), ExpenseInput{
		GroupID:     "grp-missing",
		Description: "dinner",
		Total:       core.Money{Cents: 1000},
		PaidBy:      "ana",
		SplitType:   core.SplitEqual,
	})
	if !errors.Is(err, core.ErrGroupNotFound) {
		t.Fatalf("error = %v, want ErrGroupNotFound", err)
	}
}

func TestSettleReducesDebt(t *testing.T) {
	svc, pub := newTestService(t)
	g := createTestGroup(t, svc, "ana", "bo")

	mustRecordExpense(t, svc, g.ID, "ana", 6000)

	st, err := svc.Settle(context.Background(), SettlementInput{
		GroupID: g.ID,
		From:    "bo",
		To:      "ana",
		Amount:  core.Money{Cents: 1000},
	})
	if err != nil {
		t.Fatalf("Settle() error: %v", err)
	}
	if st.Sequence != 2 {
		t.Errorf("Sequence = %d, want 2", st.Sequence)
	}

	balances, _ := svc.Balances(context.Background(), g.ID)
	if got := balances["bo"]["ana"].Cents; got != 2000 {
		t.Errorf("bo owes ana %d after settlement, want 2000", got)
	}
	if len(pub.settlements) != 1 {
		t.Errorf("published %d settlement events, want 1", len(pub.settlements))
	}
}

func TestSettleFullClearsPair(t *testing.T) {
	svc, _ := newTestService(t)
	g := createTestGroup(t, svc, "ana", "bo")

	mustRecordExpense(t, svc, g.ID, "ana", 6000)

	if _, err := svc.Settle(context.Background(), SettlementInput{
		GroupID: g.ID, From: "bo", To: "ana", Amount: core.Money{Cents: 3000},
	}); err != nil {
		t.Fatalf("Settle() error: %v", err)
	}

	balances, _ := svc.Balances(context.Background(), g.ID)
	if len(balances) != 0 {
		t.Errorf("balances = %v, want empty after full settlement", balances)
	}
}

func TestSettleOverpaymentRejected(t *testing.T) {
	svc, pub := newTestService(t)
	g := createTestGroup(t, svc, "ana", "bo")

	mustRecordExpense(t, svc, g.ID, "ana", 6000)

	_, err := svc.Settle(context.Background(), SettlementInput{
		GroupID: g.ID, From: "bo", To: "ana", Amount: core.Money{Cents: 5000},
	})
	var over *core.OverSettlementError
	if !errors.As(err, &over) {
		t.Fatalf("error = %v, want OverSettlementError", err)
	}
	if over.Outstanding.Cents != 3000 || over.Requested.Cents != 5000 {
		t.Errorf("over = %+v, want outstanding 3000 requested 5000", over)
	}

	// Ledger unchanged, no event.
	balances, _ := svc.Balances(context.Background(), g.ID)
	if got := balances["bo"]["ana"].Cents; got != 3000 {
		t.Errorf("bo owes ana %d after rejected settlement, want 3000", got)
	}
	if len(pub.settlements) != 0 {
		t.Error("no event should be published for a rejected settlement")
	}
}

func TestSettleWrongDirectionRejected(t *testing.T) {
	svc, _ := newTestService(t)
	g := createTestGroup(t, svc, "ana", "bo")

	mustRecordExpense(t, svc, g.ID, "ana", 6000)

	_, err := svc.Settle(context.Background(), SettlementInput{
		GroupID: g.ID, From: "ana", To: "bo", Amount: core.Money{Cents: 1000},
	})
	var over *core.OverSettlementError
	if !errors.As(err, &over) {
		t.Fatalf("error = %v, want OverSettlementError", err)
	}
}

func TestSettleUnknownMember(t *testing.T) {
	svc, _ := newTestService(t)
	g := createTestGroup(t, svc, "ana", "bo")

	_, err := svc.Settle(context.Background(), SettlementInput{
		GroupID: g.ID, From: "zed", To: "ana", Amount: core.Money{Cents: 100},
	})
	var unknown *core.UnknownMemberError
	if !errors.As(err, &unknown) {
		t.Fatalf("error = %v, want UnknownMemberError", err)
	}
}

func TestNetBalance(t *testing.T) {
	svc, _ := newTestService(t)
	g := createTestGroup(t, svc, "ana", "bo", "cy")

	mustRecordExpense(t, svc, g.ID, "ana", 9000)

	net, err := svc.NetBalance(context.Background(), g.ID, "ana")
	if err != nil {
		t.Fatalf("NetBalance() error: %v", err)
	}
	if net.Cents != 6000 {
		t.Errorf("ana net = %d, want +6000", net.Cents)
	}

	net, _ = svc.NetBalance(context.Background(), g.ID, "bo")
	if net.Cents != -3000 {
		t.Errorf("bo net = %d, want -3000", net.Cents)
	}

	if _, err := svc.NetBalance(context.Background(), g.ID, "zed"); err == nil {
		t.Error("expected error for unknown member")
	}
}

func TestGroupViewSummary(t *testing.T) {
	svc, _ := newTestService(t)
	g := createTestGroup(t, svc, "ana", "bo")

	if _, err := svc.RecordExpense(context.Background(), ExpenseInput{
		GroupID:     g.ID,
		Description: "dinner",
		Total:       core.Money{Cents: 4000},
		Category:    core.CategoryFood,
		PaidBy:      "ana",
		SplitType:   core.SplitEqual,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RecordExpense(context.Background(), ExpenseInput{
		GroupID:     g.ID,
		Description: "train",
		Total:       core.Money{Cents: 3000},
		Category:    core.CategoryTravel,
		PaidBy:      "bo",
		SplitType:   core.SplitEqual,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Settle(context.Background(), SettlementInput{
		GroupID: g.ID, From: "bo", To: "ana", Amount: core.Money{Cents: 500},
	}); err != nil {
		t.Fatal(err)
	}

	view, err := svc.GroupView(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("GroupView() error: %v", err)
	}
	if view.TotalSpent.Cents != 7000 {
		t.Errorf("TotalSpent = %d, want 7000", view.TotalSpent.Cents)
	}
	if view.TotalSettled.Cents != 500 {
		t.Errorf("TotalSettled = %d, want 500", view.TotalSettled.Cents)
	}
	if view.ExpenseCount != 2 || view.SettlementCount != 1 {
		t.Errorf("counts = %d/%d, want 2/1", view.ExpenseCount, view.SettlementCount)
	}
	if got := view.ByCategory[core.CategoryFood].Cents; got != 4000 {
		t.Errorf("food total = %d, want 4000", got)
	}
	// bo owed ana 2000, ana owed bo 1500; the 500 net was settled in full.
	if len(view.Balances) != 0 {
		t.Errorf("balances = %v, want empty", view.Balances)
	}
	if view.NetPositions["ana"].Cents != 0 || view.NetPositions["bo"].Cents != 0 {
		t.Errorf("net positions = %v, want all zero", view.NetPositions)
	}
}

func TestGroupViewCacheInvalidatedOnWrite(t *testing.T) {
	svc, _ := newTestService(t)
	g := createTestGroup(t, svc, "ana", "bo")

	mustRecordExpense(t, svc, g.ID, "ana", 2000)

	view1, err := svc.GroupView(context.Background(), g.ID)
	if err != nil {
		t.Fatal(err)
	}
	if view1.ExpenseCount != 1 {
		t.Fatalf("ExpenseCount = %d, want 1", view1.ExpenseCount)
	}

	mustRecordExpense(t, svc, g.ID, "ana", 2000)

	view2, err := svc.GroupView(context.Background(), g.ID)
	if err != nil {
		t.Fatal(err)
	}
	if view2.ExpenseCount != 2 {
		t.Errorf("ExpenseCount = %d after second expense, want 2", view2.ExpenseCount)
	}
}

func TestPublisherFailureDoesNotFailWrite(t *testing.T) {
	svc, pub := newTestService(t)
	pub.failWith = errors.New("broker down")
	g := createTestGroup(t, svc, "ana", "bo")

	e, err := svc.RecordExpense(context.Background(), ExpenseInput{
		GroupID:     g.ID,
		Description: "dinner",
		Total:       core.Money{Cents: 1000},
		PaidBy:      "ana",
		SplitType:   core.SplitEqual,
	})
	if err != nil {
		t.Fatalf("RecordExpense() error: %v", err)
	}
	if e.ID == "" {
		t.Error("expense should be persisted despite publish failure")
	}
}

func mustRecordExpense(t *testing.T, svc *LedgerService, groupID, paidBy string, cents int64) *core.GroupExpense {
	t.Helper()
	e, err := svc.RecordExpense(context.Background(), ExpenseInput{
		GroupID:     groupID,
		Description: "expense",
		Total:       core.Money{Cents: cents},
		PaidBy:      paidBy,
		SplitType:   core.SplitEqual,
	})
	if err != nil {
		t.Fatalf("RecordExpense() error: %v", err)
	}
	return e
}
