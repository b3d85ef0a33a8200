package http

import (
	"encoding/json"
	"net/http"
	"time"

	"divvy/internal/core"
	"divvy/internal/services"
)

const dateLayout = "2006-01-02"

type expenseRequest struct {
	Description  string            `json:"description"`
	Amount       string            `json:"amount"`
	Category     string            `json:"category,omitempty"`
	Date         string            `json:"date,omitempty"`
	PaidBy       string            `json:"paid_by"`
	SplitType    string            `json:"split_type,omitempty"`
	Participants []string          `json:"participants,omitempty"`
	Splits       map[string]string `json:"splits,omitempty"`
}

type expenseResponse struct {
	ID          string            `json:"id"`
	GroupID     string            `json:"group_id"`
	Seq         int64             `json:"seq"`
	Description string            `json:"description"`
	Amount      string            `json:"amount"`
	Category    string            `json:"category,omitempty"`
	Date        string            `json:"date"`
	PaidBy      string            `json:"paid_by"`
	SplitType   string            `json:"split_type"`
	Splits      map[string]string `json:"splits"`
}

type settlementRequest struct {
	FromMember string `json:"from_member"`
	ToMember   string `json:"to_member"`
	Amount     string `json:"amount"`
	Date       string `json:"date,omitempty"`
}

type settlementResponse struct {
	ID         string `json:"id"`
	GroupID    string `json:"group_id"`
	Seq        int64  `json:"seq"`
	FromMember string `json:"from_member"`
	ToMember   string `json:"to_member"`
	Amount     string `json:"amount"`
	Date       string `json:"date"`
}

type memberBalanceResponse struct {
	GroupID  string `json:"group_id"`
	MemberID string `json:"member_id"`
	Net      string `json:"net"`
	Status   string `json:"status"`
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (s *Server) handleRecordExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed JSON body"})
		return
	}

	total, err := core.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	date, ok := parseDate(req.Date)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "date must be YYYY-MM-DD"})
		return
	}

	splitType := core.SplitType(req.SplitType)
	if splitType == "" {
		splitType = core.SplitEqual
	}

	var shares map[string]core.Money
	if len(req.Splits) > 0 {
		shares = make(map[string]core.Money, len(req.Splits))
		for memberID, raw := range req.Splits {
			share, err := core.ParseShare(raw)
			if err != nil {
				writeError(w, r, err)
				return
			}
			shares[memberID] = share
		}
	}

	expense, err := s.svc.RecordExpense(r.Context(), services.ExpenseInput{
		GroupID:      r.PathValue("id"),
		Description:  req.Description,
		Total:        total,
		Category:     core.Category(req.Category),
		Date:         date,
		PaidBy:       req.PaidBy,
		SplitType:    splitType,
		Participants: req.Participants,
		Shares:       shares,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toExpenseResponse(expense))
}

func toExpenseResponse(e *core.GroupExpense) expenseResponse {
	splits := make(map[string]string, len(e.Splits))
	for memberID, share := range e.Splits {
		splits[memberID] = share.Decimal()
	}
	return expenseResponse{
		ID:          e.ID,
		GroupID:     e.GroupID,
		Seq:         e.Sequence,
		Description: e.Description,
		Amount:      e.Total.Decimal(),
		Category:    string(e.Category),
		Date:        e.Date.Format(dateLayout),
		PaidBy:      e.PaidBy,
		SplitType:   string(e.SplitType),
		Splits:      splits,
	}
}

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	var req settlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed JSON body"})
		return
	}

	amount, err := core.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	date, ok := parseDate(req.Date)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "date must be YYYY-MM-DD"})
		return
	}

	settlement, err := s.svc.Settle(r.Context(), services.SettlementInput{
		GroupID: r.PathValue("id"),
		From:    req.FromMember,
		To:      req.ToMember,
		Amount:  amount,
		Date:    date,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, settlementResponse{
		ID:         settlement.ID,
		GroupID:    settlement.GroupID,
		Seq:        settlement.Sequence,
		FromMember: settlement.From,
		ToMember:   settlement.To,
		Amount:     settlement.Amount.Decimal(),
		Date:       settlement.Date.Format(dateLayout),
	})
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")
	balances, err := s.svc.Balances(r.Context(), groupID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"group_id": groupID,
		"balances": toBalancesPayload(balances),
	})
}

func (s *Server) handleMemberBalance(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")
	memberID := r.PathValue("member_id")

	net, err := s.svc.NetBalance(r.Context(), groupID, memberID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := "settled"
	switch {
	case net.Cents > 0:
		status = "is_owed"
	case net.Cents < 0:
		status = "owes"
	}

	writeJSON(w, http.StatusOK, memberBalanceResponse{
		GroupID:  groupID,
		MemberID: memberID,
		Net:      net.Decimal(),
		Status:   status,
	})
}
