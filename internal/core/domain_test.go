package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func validGroup() Group {
	return Group{
		ID:   "g1",
		Name: "Trip",
		Members: []Member{
			{ID: "o1", Name: "Olive", Email: "olive@example.com", Role: RoleOwner},
			{ID: "m1", Name: "Mason", Email: "mason@example.com", Role: RoleMember},
		},
	}
}

func TestGroupValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Group)
		ok     bool
	}{
		{"valid", func(g *Group) {}, true},
		{"empty name", func(g *Group) { g.Name = "  " }, false},
		{"no owner", func(g *Group) { g.Members[0].Role = RoleMember }, false},
		{"two owners", func(g *Group) { g.Members[1].Role = RoleOwner }, false},
		{"duplicate member id", func(g *Group) { g.Members[1].ID = "o1" }, false},
		{"member without id", func(g *Group) { g.Members[1].ID = "" }, false},
		{"member without name", func(g *Group) { g.Members[1].Name = "" }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := validGroup()
			tc.mutate(&g)
			err := g.Validate()
			if tc.ok && err != nil {
				t.Fatalf("expected ok, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestGroupMembership(t *testing.T) {
	g := validGroup()
	owner, ok := g.Owner()
	if !ok || owner.ID != "o1" {
		t.Fatalf("Owner() = %v, %v", owner, ok)
	}
	if !g.HasMember("o1") || !g.HasMember("m1") {
		t.Fatal("owner and member must both resolve")
	}
	if g.HasMember("stranger") {
		t.Fatal("unknown id resolved")
	}
	ids := g.ParticipantIDs()
	if len(ids) != 2 || ids[0] != "o1" || ids[1] != "m1" {
		t.Fatalf("ParticipantIDs() = %v", ids)
	}
}

func TestGroupExpenseValidate(t *testing.T) {
	valid := GroupExpense{
		Description: "Dinner",
		Total:       Money{Cents: 4200},
		Category:    CategoryFood,
		Date:        time.Now(),
		PaidBy:      "o1",
		SplitType:   SplitEqual,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid expense rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*GroupExpense)
		want   error
	}{
		{"empty description", func(e *GroupExpense) { e.Description = " " }, ErrEmptyDescription},
		{"long description", func(e *GroupExpense) { e.Description = strings.Repeat("x", 201) }, nil},
		{"zero amount", func(e *GroupExpense) { e.Total = Money{} }, ErrInvalidAmount},
		{"bad split type", func(e *GroupExpense) { e.SplitType = "thirds" }, ErrInvalidSplitType},
		{"bad category", func(e *GroupExpense) { e.Category = "snacks" }, ErrInvalidCategory},
		{"no payer", func(e *GroupExpense) { e.PaidBy = "" }, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := valid
			tc.mutate(&e)
			err := e.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestSettlementValidate(t *testing.T) {
	valid := Settlement{From: "m1", To: "o1", Amount: Money{Cents: 500}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid settlement rejected: %v", err)
	}

	self := Settlement{From: "m1", To: "m1", Amount: Money{Cents: 500}}
	if err := self.Validate(); err == nil {
		t.Fatal("self settlement accepted")
	}

	zero := Settlement{From: "m1", To: "o1", Amount: Money{}}
	if err := zero.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero amount: got %v", err)
	}
}

func TestErrorMessagesCarryAmounts(t *testing.T) {
	mismatch := &SplitMismatchError{Got: Money{Cents: 9900}, Want: Money{Cents: 10000}}
	if msg := mismatch.Error(); !strings.Contains(msg, "99.00") || !strings.Contains(msg, "100.00") {
		t.Errorf("mismatch message missing amounts: %q", msg)
	}

	over := &OverSettlementError{From: "m", To: "o", Requested: Money{Cents: 4000}, Outstanding: Money{Cents: 2000}}
	if msg := over.Error(); !strings.Contains(msg, "40.00") || !strings.Contains(msg, "20.00") {
		t.Errorf("over-settlement message missing amounts: %q", msg)
	}
}
