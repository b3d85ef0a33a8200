package http

import (
	"encoding/json"
	"net/http"
	"time"

	"divvy/internal/core"
)

type memberPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

type createGroupRequest struct {
	Name    string          `json:"name"`
	Owner   memberPayload   `json:"owner"`
	Members []memberPayload `json:"members"`
}

type groupResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Members   []memberPayload `json:"members"`
	CreatedAt time.Time       `json:"created_at"`
}

type groupViewResponse struct {
	groupResponse
	Expenses     []expenseResponse            `json:"expenses"`
	Balances     map[string]map[string]string `json:"balances"`
	NetPositions map[string]string            `json:"net_positions"`
}

type groupSummaryResponse struct {
	GroupID         string                       `json:"group_id"`
	Name            string                       `json:"name"`
	MemberCount     int                          `json:"member_count"`
	ExpenseCount    int                          `json:"expense_count"`
	SettlementCount int                          `json:"settlement_count"`
	TotalSpent      string                       `json:"total_spent"`
	TotalSettled    string                       `json:"total_settled"`
	ByCategory      map[string]string            `json:"by_category"`
	Balances        map[string]map[string]string `json:"balances"`
	NetPositions    map[string]string            `json:"net_positions"`
	LastActivity    *time.Time                   `json:"last_activity,omitempty"`
}

func toGroupResponse(g *core.Group) groupResponse {
	members := make([]memberPayload, len(g.Members))
	for i, m := range g.Members {
		members[i] = memberPayload{
			ID:    m.ID,
			Name:  m.Name,
			Email: m.Email,
			Role:  string(m.Role),
		}
	}
	return groupResponse{
		ID:        g.ID,
		Name:      g.Name,
		Members:   members,
		CreatedAt: g.CreatedAt,
	}
}

func toBalancesPayload(balances map[string]map[string]core.Money) map[string]map[string]string {
	out := make(map[string]map[string]string, len(balances))
	for debtor, row := range balances {
		out[debtor] = make(map[string]string, len(row))
		for creditor, amount := range row {
			out[debtor][creditor] = amount.Decimal()
		}
	}
	return out
}

func toNetPayload(nets map[string]core.Money) map[string]string {
	out := make(map[string]string, len(nets))
	for id, net := range nets {
		out[id] = net.Decimal()
	}
	return out
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed JSON body"})
		return
	}

	owner := core.Member{ID: req.Owner.ID, Name: req.Owner.Name, Email: req.Owner.Email}
	members := make([]core.Member, 0, len(req.Members))
	for _, m := range req.Members {
		members = append(members, core.Member{ID: m.ID, Name: m.Name, Email: m.Email})
	}

	g, err := s.svc.CreateGroup(r.Context(), req.Name, owner, members)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toGroupResponse(g))
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	memberID := r.URL.Query().Get("member_id")
	if memberID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "member_id query parameter is required"})
		return
	}

	groups, err := s.svc.ListGroups(r.Context(), memberID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]groupResponse, len(groups))
	for i := range groups {
		out[i] = toGroupResponse(&groups[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": out})
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.GroupView(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	expenses := make([]expenseResponse, len(view.Expenses))
	for i := range view.Expenses {
		expenses[i] = toExpenseResponse(&view.Expenses[i])
	}

	writeJSON(w, http.StatusOK, groupViewResponse{
		groupResponse: toGroupResponse(&view.Group),
		Expenses:      expenses,
		Balances:      toBalancesPayload(view.Balances),
		NetPositions:  toNetPayload(view.NetPositions),
	})
}

func (s *Server) handleGroupSummary(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.GroupView(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	byCategory := make(map[string]string, len(view.ByCategory))
	for cat, total := range view.ByCategory {
		byCategory[string(cat)] = total.Decimal()
	}

	resp := groupSummaryResponse{
		GroupID:         view.Group.ID,
		Name:            view.Group.Name,
		MemberCount:     len(view.Group.Members),
		ExpenseCount:    view.ExpenseCount,
		SettlementCount: view.SettlementCount,
		TotalSpent:      view.TotalSpent.Decimal(),
		TotalSettled:    view.TotalSettled.Decimal(),
		ByCategory:      byCategory,
		Balances:        toBalancesPayload(view.Balances),
		NetPositions:    toNetPayload(view.NetPositions),
	}
	if !view.LastActivity.IsZero() {
		last := view.LastActivity
		resp.LastActivity = &last
	}

	writeJSON(w, http.StatusOK, resp)
}
