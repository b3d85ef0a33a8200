package storage

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"divvy/internal/core"

	_ "modernc.org/sqlite"
)

// Export states for the history-export queue consumed by the worker.
const (
	ExportPending = "pending"
	ExportDone    = "exported"
	ExportFailed  = "error"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func newID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// CreateGroup persists the group and its normalized member set, assigning
// the group ID and creation time.
func (r *SQLiteRepository) CreateGroup(ctx context.Context, g *core.Group) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	g.ID = newID()
	g.CreatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO groups (id, name, created_at) VALUES (?, ?, ?)`,
		g.ID, g.Name, g.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert group: %w", err)
	}

	for i, m := range g.Members {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO group_members (group_id, member_id, name, email, role, position)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			g.ID, m.ID, m.Name, m.Email, string(m.Role), i)
		if err != nil {
			return fmt.Errorf("insert member %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit group: %w", err)
	}

	slog.InfoContext(ctx, "Group created",
		"group_id", g.ID,
		"name", g.Name,
		"members", len(g.Members))
	return nil
}

func (r *SQLiteRepository) GetGroup(ctx context.Context, id string) (*core.Group, error) {
	g := &core.Group{ID: id}
	err := r.db.QueryRowContext(ctx,
		`SELECT name, created_at FROM groups WHERE id = ?`, id).
		Scan(&g.Name, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select group: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT member_id, name, email, role FROM group_members
		 WHERE group_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("select members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m core.Member
		var role string
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &role); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		m.Role = core.MemberRole(role)
		g.Members = append(g.Members, m)
	}
	return g, rows.Err()
}

func (r *SQLiteRepository) ListGroupsByMember(ctx context.Context, memberID string) ([]core.Group, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT g.id FROM groups g
		 JOIN group_members gm ON gm.group_id = g.id
		 WHERE gm.member_id = ?
		 ORDER BY g.created_at DESC`, memberID)
	if err != nil {
		return nil, fmt.Errorf("select groups by member: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan group id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	groups := make([]core.Group, 0, len(ids))
	for _, id := range ids {
		g, err := r.GetGroup(ctx, id)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *g)
	}
	return groups, nil
}

// AppendExpense writes the expense and its splits in one transaction and
// stamps the next per-group sequence number. Nothing is visible to readers
// until commit, which is what keeps half-applied splits unobservable.
func (r *SQLiteRepository) AppendExpense(ctx context.Context, e *core.GroupExpense) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	seq, err := nextSeq(ctx, tx, e.GroupID)
	if err != nil {
		return err
	}
	e.ID = newID()
	e.Sequence = seq

	_, err = tx.ExecContext(ctx,
		`INSERT INTO group_expenses
		 (id, group_id, seq, description, total_cents, category, paid_by, split_type, expense_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.GroupID, e.Sequence, e.Description, e.Total.Cents,
		string(e.Category), e.PaidBy, string(e.SplitType), e.Date)
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}

	for member, share := range e.Splits {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO expense_splits (expense_id, member_id, share_cents) VALUES (?, ?, ?)`,
			e.ID, member, share.Cents)
		if err != nil {
			return fmt.Errorf("insert split for %s: %w", member, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense appended",
		"expense_id", e.ID,
		"group_id", e.GroupID,
		"seq", e.Sequence,
		"total_cents", e.Total.Cents,
		"paid_by", e.PaidBy)
	return nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, groupID string) ([]core.GroupExpense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, seq, description, total_cents, category, paid_by, split_type, expense_date
		 FROM group_expenses WHERE group_id = ? ORDER BY seq`, groupID)
	if err != nil {
		return nil, fmt.Errorf("select expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.GroupExpense
	for rows.Next() {
		e := core.GroupExpense{GroupID: groupID}
		var category, splitType string
		if err := rows.Scan(&e.ID, &e.Sequence, &e.Description, &e.Total.Cents,
			&category, &e.PaidBy, &splitType, &e.Date); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.Category = core.Category(category)
		e.SplitType = core.SplitType(splitType)
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range expenses {
		splits, err := r.expenseSplits(ctx, expenses[i].ID)
		if err != nil {
			return nil, err
		}
		expenses[i].Splits = splits
	}
	return expenses, nil
}

func (r *SQLiteRepository) expenseSplits(ctx context.Context, expenseID string) (map[string]core.Money, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT member_id, share_cents FROM expense_splits WHERE expense_id = ?`, expenseID)
	if err != nil {
		return nil, fmt.Errorf("select splits: %w", err)
	}
	defer rows.Close()

	splits := make(map[string]core.Money)
	for rows.Next() {
		var member string
		var cents int64
		if err := rows.Scan(&member, &cents); err != nil {
			return nil, fmt.Errorf("scan split: %w", err)
		}
		splits[member] = core.Money{Cents: cents}
	}
	return splits, rows.Err()
}

func (r *SQLiteRepository) AppendSettlement(ctx context.Context, s *core.Settlement) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	seq, err := nextSeq(ctx, tx, s.GroupID)
	if err != nil {
		return err
	}
	s.ID = newID()
	s.Sequence = seq

	_, err = tx.ExecContext(ctx,
		`INSERT INTO settlements (id, group_id, seq, from_member, to_member, amount_cents, settled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.GroupID, s.Sequence, s.From, s.To, s.Amount.Cents, s.Date)
	if err != nil {
		return fmt.Errorf("insert settlement: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settlement: %w", err)
	}

	slog.InfoContext(ctx, "Settlement appended",
		"settlement_id", s.ID,
		"group_id", s.GroupID,
		"seq", s.Sequence,
		"from", s.From,
		"to", s.To,
		"amount_cents", s.Amount.Cents)
	return nil
}

func (r *SQLiteRepository) ListSettlements(ctx context.Context, groupID string) ([]core.Settlement, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, seq, from_member, to_member, amount_cents, settled_at
		 FROM settlements WHERE group_id = ? ORDER BY seq`, groupID)
	if err != nil {
		return nil, fmt.Errorf("select settlements: %w", err)
	}
	defer rows.Close()

	var settlements []core.Settlement
	for rows.Next() {
		s := core.Settlement{GroupID: groupID}
		if err := rows.Scan(&s.ID, &s.Sequence, &s.From, &s.To, &s.Amount.Cents, &s.Date); err != nil {
			return nil, fmt.Errorf("scan settlement: %w", err)
		}
		settlements = append(settlements, s)
	}
	return settlements, rows.Err()
}

func nextSeq(ctx context.Context, tx *sql.Tx, groupID string) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE groups SET last_seq = last_seq + 1 WHERE id = ?`, groupID)
	if err != nil {
		return 0, fmt.Errorf("advance sequence: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("advance sequence: %w", err)
	}
	if n == 0 {
		return 0, core.ErrGroupNotFound
	}

	var seq int64
	if err := tx.QueryRowContext(ctx,
		`SELECT last_seq FROM groups WHERE id = ?`, groupID).Scan(&seq); err != nil {
		return 0, fmt.Errorf("read sequence: %w", err)
	}
	return seq, nil
}

// GetExpense retrieves a single expense by ID, splits included.
func (r *SQLiteRepository) GetExpense(ctx context.Context, id string) (*core.GroupExpense, error) {
	e := &core.GroupExpense{ID: id}
	var category, splitType string
	err := r.db.QueryRowContext(ctx,
		`SELECT group_id, seq, description, total_cents, category, paid_by, split_type, expense_date
		 FROM group_expenses WHERE id = ?`, id).
		Scan(&e.GroupID, &e.Sequence, &e.Description, &e.Total.Cents,
			&category, &e.PaidBy, &splitType, &e.Date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrExpenseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select expense: %w", err)
	}
	e.Category = core.Category(category)
	e.SplitType = core.SplitType(splitType)

	splits, err := r.expenseSplits(ctx, id)
	if err != nil {
		return nil, err
	}
	e.Splits = splits
	return e, nil
}

func (r *SQLiteRepository) GetSettlement(ctx context.Context, id string) (*core.Settlement, error) {
	s := &core.Settlement{ID: id}
	err := r.db.QueryRowContext(ctx,
		`SELECT group_id, seq, from_member, to_member, amount_cents, settled_at
		 FROM settlements WHERE id = ?`, id).
		Scan(&s.GroupID, &s.Sequence, &s.From, &s.To, &s.Amount.Cents, &s.Date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrExpenseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select settlement: %w", err)
	}
	return s, nil
}

// PendingExportExpenses returns expenses not yet exported to the history
// spreadsheet, oldest first.
func (r *SQLiteRepository) PendingExportExpenses(ctx context.Context, limit int) ([]core.GroupExpense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM group_expenses WHERE export_state = ? ORDER BY created_at LIMIT ?`,
		ExportPending, limit)
	if err != nil {
		return nil, fmt.Errorf("select pending expenses: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending expense: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	expenses := make([]core.GroupExpense, 0, len(ids))
	for _, id := range ids {
		e, err := r.GetExpense(ctx, id)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, *e)
	}
	return expenses, nil
}

func (r *SQLiteRepository) PendingExportSettlements(ctx context.Context, limit int) ([]core.Settlement, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, group_id, seq, from_member, to_member, amount_cents, settled_at
		 FROM settlements WHERE export_state = ? ORDER BY created_at LIMIT ?`,
		ExportPending, limit)
	if err != nil {
		return nil, fmt.Errorf("select pending settlements: %w", err)
	}
	defer rows.Close()

	var settlements []core.Settlement
	for rows.Next() {
		var s core.Settlement
		if err := rows.Scan(&s.ID, &s.GroupID, &s.Sequence, &s.From, &s.To, &s.Amount.Cents, &s.Date); err != nil {
			return nil, fmt.Errorf("scan pending settlement: %w", err)
		}
		settlements = append(settlements, s)
	}
	return settlements, rows.Err()
}

func (r *SQLiteRepository) MarkExpenseExported(ctx context.Context, id string) error {
	return r.setExportState(ctx, "group_expenses", id, ExportDone)
}

func (r *SQLiteRepository) MarkExpenseExportError(ctx context.Context, id string) error {
	return r.setExportState(ctx, "group_expenses", id, ExportFailed)
}

func (r *SQLiteRepository) MarkSettlementExported(ctx context.Context, id string) error {
	return r.setExportState(ctx, "settlements", id, ExportDone)
}

func (r *SQLiteRepository) MarkSettlementExportError(ctx context.Context, id string) error {
	return r.setExportState(ctx, "settlements", id, ExportFailed)
}

func (r *SQLiteRepository) setExportState(ctx context.Context, table, id, state string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE `+table+` SET export_state = ? WHERE id = ?`, state, id)
	if err != nil {
		return fmt.Errorf("mark %s %s as %s: %w", table, id, state, err)
	}
	return nil
}
