package postwin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const registerCols = `id, user_id, opened_by, opened_at, closed_at, initial_cash, cash_sales, card_sales,
	expected_cash, actual_cash, difference, difference_percentage, closing_notes, status`

func scanRegister(sc scanner) (*CashRegister, error) {
	var cr CashRegister
	var opened int64
	var closed sql.NullInt64
	var actual, diff, pct sql.NullFloat64
	var notes sql.NullString
	if err := sc.Scan(&cr.ID, &cr.UserID, &cr.OpenedBy, &opened, &closed, &cr.InitialCash, &cr.CashSales,
		&cr.CardSales, &cr.ExpectedCash, &actual, &diff, &pct, &notes, &cr.Status); err != nil {
		return nil, err
	}
	cr.OpenedAt = fromNano(opened)
	if closed.Valid {
		t := fromNano(closed.Int64)
		cr.ClosedAt = &t
	}
	if actual.Valid {
		cr.ActualCash = &actual.Float64
	}
	if diff.Valid {
		cr.Difference = &diff.Float64
	}
	if pct.Valid {
		cr.DifferencePercentage = &pct.Float64
	}
	if notes.Valid {
		cr.ClosingNotes = &notes.String
	}
	cr.Expenses, cr.Withdrawals = []Movement{}, []Movement{}
	return &cr, nil
}

// OpenRegister starts a shift with initial cash. Only one register per
// tenant may be open.
func (s *Store) OpenRegister(ctx context.Context, user *User, initialCash float64) (*CashRegister, error) {
	if _, err := s.CurrentRegister(ctx, user.ID); err == nil {
		return nil, ErrRegisterOpen
	} else if !errors.Is(err, ErrNoOpenRegister) {
		return nil, err
	}
	cr := &CashRegister{
		ID:           newID(),
		UserID:       user.ID,
		OpenedBy:     user.Email,
		OpenedAt:     s.now(),
		InitialCash:  initialCash,
		ExpectedCash: initialCash,
		Expenses:     []Movement{},
		Withdrawals:  []Movement{},
		Status:       "open",
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cash_registers (id, user_id, opened_by, opened_at, initial_cash, expected_cash, status)
		 VALUES (?, ?, ?, ?, ?, ?, 'open')`,
		cr.ID, cr.UserID, cr.OpenedBy, unixNano(cr.OpenedAt), cr.InitialCash, cr.ExpectedCash)
	if err != nil {
		return nil, fmt.Errorf("insert cash register: %w", err)
	}
	return cr, nil
}

func (s *Store) CurrentRegister(ctx context.Context, userID string) (*CashRegister, error) {
	cr, err := scanRegister(s.db.QueryRowContext(ctx,
		`SELECT `+registerCols+` FROM cash_registers WHERE user_id = ? AND status = 'open'`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoOpenRegister
	}
	if err != nil {
		return nil, fmt.Errorf("select cash register: %w", err)
	}
	if err := s.loadMovements(ctx, cr); err != nil {
		return nil, err
	}
	return cr, nil
}

func (s *Store) loadMovements(ctx context.Context, cr *CashRegister) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, amount, description, date FROM cash_movements WHERE register_id = ? ORDER BY date, rowid`, cr.ID)
	if err != nil {
		return fmt.Errorf("list movements: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m Movement
		var kind string
		var date int64
		if err := rows.Scan(&m.ID, &kind, &m.Amount, &m.Description, &date); err != nil {
			return fmt.Errorf("scan movement: %w", err)
		}
		m.Date = fromNano(date)
		if kind == "expense" {
			cr.Expenses = append(cr.Expenses, m)
		} else {
			cr.Withdrawals = append(cr.Withdrawals, m)
		}
	}
	return rows.Err()
}

// AddMovement records an expense or withdrawal against the open register and
// returns the movement and the new expected cash.
func (s *Store) AddMovement(ctx context.Context, userID, kind string, amount float64, description string) (*Movement, float64, error) {
	cr, err := s.CurrentRegister(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	m := &Movement{ID: newID(), Amount: amount, Description: description, Date: s.now()}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO cash_movements (id, register_id, kind, amount, description, date) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, cr.ID, kind, m.Amount, m.Description, unixNano(m.Date)); err != nil {
		return nil, 0, fmt.Errorf("insert movement: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE cash_registers SET expected_cash = expected_cash - ? WHERE id = ?`, amount, cr.ID); err != nil {
		return nil, 0, fmt.Errorf("update cash register: %w", err)
	}
	var expected float64
	if err := tx.QueryRowContext(ctx,
		`SELECT expected_cash FROM cash_registers WHERE id = ?`, cr.ID).Scan(&expected); err != nil {
		return nil, 0, fmt.Errorf("select expected cash: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("commit: %w", err)
	}
	return m, expected, nil
}

// CloseRegister counts the drawer against the expected cash.
func (s *Store) CloseRegister(ctx context.Context, userID string, actualCash float64, notes *string) (*CashRegister, error) {
	cr, err := s.CurrentRegister(ctx, userID)
	if err != nil {
		return nil, err
	}
	diff := actualCash - cr.ExpectedCash
	pct := 0.0
	if cr.ExpectedCash > 0 {
		pct = diff / cr.ExpectedCash * 100
	}
	closed := s.now()
	if _, err := s.db.ExecContext(ctx,
		`UPDATE cash_registers SET actual_cash = ?, difference = ?, difference_percentage = ?, closing_notes = ?,
		 closed_at = ?, status = 'closed' WHERE id = ?`,
		actualCash, diff, pct, notes, unixNano(closed), cr.ID); err != nil {
		return nil, fmt.Errorf("close cash register: %w", err)
	}
	cr.ActualCash, cr.Difference, cr.DifferencePercentage = &actualCash, &diff, &pct
	cr.ClosingNotes = notes
	cr.ClosedAt = &closed
	cr.Status = "closed"
	return cr, nil
}

// RegisterHistory lists closed registers, most recently closed first.
func (s *Store) RegisterHistory(ctx context.Context, userID string, limit int) ([]CashRegister, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+registerCols+` FROM cash_registers WHERE user_id = ? AND status = 'closed'
		 ORDER BY closed_at DESC, rowid DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list cash registers: %w", err)
	}
	var out []CashRegister
	for rows.Next() {
		cr, err := scanRegister(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan cash register: %w", err)
		}
		out = append(out, *cr)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := s.loadMovements(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	if out == nil {
		out = []CashRegister{}
	}
	return out, nil
}
