package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/merdocx/easy-pass-bot-sub000/internal/core"
)

const passColumns = `id, user_id, car_number, status, created_at, used_at, used_by_id, is_archived`

// CreatePass inserts a new active pass and returns it with its ID.
func (s *Store) CreatePass(ctx context.Context, userID int64, carNumber string) (*core.Pass, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	carNumber = strings.TrimSpace(carNumber)
	if carNumber == "" {
		return nil, errors.New("car number is required")
	}

	now := time.Now().UTC()
	result, err := s.DB.ExecContext(ctx, `
		INSERT INTO passes (user_id, car_number, status, created_at, is_archived)
		VALUES (?, ?, ?, ?, 0)
	`, userID, carNumber, string(core.PassStatusActive), now.Unix())
	if err != nil {
		return nil, fmt.Errorf("insert pass: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert pass id: %w", err)
	}

	return &core.Pass{
		ID:        id,
		UserID:    userID,
		CarNumber: carNumber,
		Status:    core.PassStatusActive,
		CreatedAt: now.Truncate(time.Second),
	}, nil
}

// ByID returns one pass or nil when it does not exist.
func (s *Store) ByID(ctx context.Context, id int64) (*core.Pass, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	row := s.DB.QueryRowContext(ctx, `
		SELECT `+passColumns+`
		FROM passes
		WHERE id = ?
	`, id)

	pass, err := scanPass(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch pass: %w", err)
	}
	return pass, nil
}

// All returns every pass, archived included.
func (s *Store) All(ctx context.Context) ([]core.Pass, error) {
	return s.queryPasses(ctx, `
		SELECT `+passColumns+`
		FROM passes
		ORDER BY id
	`)
}

// ListByUser returns the user's non-archived passes, newest first.
func (s *Store) ListByUser(ctx context.Context, userID int64) ([]core.Pass, error) {
	return s.queryPasses(ctx, `
		SELECT `+passColumns+`
		FROM passes
		WHERE user_id = ? AND is_archived = 0
		ORDER BY created_at DESC, id DESC
	`, userID)
}

// CountActiveByUser counts the user's active non-archived passes.
func (s *Store) CountActiveByUser(ctx context.Context, userID int64) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}

	var count int
	err := s.DB.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM passes
		WHERE user_id = ? AND status = ? AND is_archived = 0
	`, userID, string(core.PassStatusActive)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active passes: %w", err)
	}
	return count, nil
}

// FindActiveByCar returns the active non-archived pass covering the
// car, or nil when none exists.
func (s *Store) FindActiveByCar(ctx context.Context, carNumber string) (*core.Pass, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	row := s.DB.QueryRowContext(ctx, `
		SELECT `+passColumns+`
		FROM passes
		WHERE car_number = ? AND status = ? AND is_archived = 0
		ORDER BY created_at DESC
		LIMIT 1
	`, strings.TrimSpace(carNumber), string(core.PassStatusActive))

	pass, err := scanPass(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch pass by car: %w", err)
	}
	return pass, nil
}

// MarkUsed performs the active→used transition, stamping used_at and
// used_by_id together. Any other starting state fails with
// core.ErrInvalidTransition.
func (s *Store) MarkUsed(ctx context.Context, id int64, securityID int64) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	now := time.Now().UTC().Unix()
	result, err := s.DB.ExecContext(ctx, `
		UPDATE passes
		SET status = ?, used_at = ?, used_by_id = ?
		WHERE id = ? AND status = ? AND is_archived = 0
	`, string(core.PassStatusUsed), now, securityID, id, string(core.PassStatusActive))
	if err != nil {
		return fmt.Errorf("mark pass used: %w", err)
	}

	return s.transitionOutcome(ctx, result, id)
}

// Cancel performs the active→cancelled transition.
func (s *Store) Cancel(ctx context.Context, id int64) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	result, err := s.DB.ExecContext(ctx, `
		UPDATE passes
		SET status = ?
		WHERE id = ? AND status = ? AND is_archived = 0
	`, string(core.PassStatusCancelled), id, string(core.PassStatusActive))
	if err != nil {
		return fmt.Errorf("cancel pass: %w", err)
	}

	return s.transitionOutcome(ctx, result, id)
}

// transitionOutcome distinguishes a missing record from a forbidden
// transition when a guarded UPDATE touched no rows.
func (s *Store) transitionOutcome(ctx context.Context, result sql.Result, id int64) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition result: %w", err)
	}
	if affected > 0 {
		return nil
	}

	pass, err := s.ByID(ctx, id)
	if err != nil {
		return err
	}
	if pass == nil {
		return fmt.Errorf("pass %d: %w", id, core.ErrNotFound)
	}
	return fmt.Errorf("pass %d is %s: %w", id, pass.Status, core.ErrInvalidTransition)
}

// Update persists all mutable fields of a pass.
func (s *Store) Update(ctx context.Context, pass *core.Pass) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if pass == nil {
		return errors.New("pass is required")
	}

	var usedAt sql.NullInt64
	if pass.UsedAt != nil {
		usedAt = sql.NullInt64{Int64: pass.UsedAt.UTC().Unix(), Valid: true}
	}
	var usedBy sql.NullInt64
	if pass.UsedByID != nil {
		usedBy = sql.NullInt64{Int64: *pass.UsedByID, Valid: true}
	}

	result, err := s.DB.ExecContext(ctx, `
		UPDATE passes
		SET user_id = ?, car_number = ?, status = ?, used_at = ?, used_by_id = ?, is_archived = ?
		WHERE id = ?
	`, pass.UserID, pass.CarNumber, string(pass.Status), usedAt, usedBy, boolToInt(pass.Archived), pass.ID)
	if err != nil {
		return fmt.Errorf("update pass: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("pass %d: %w", pass.ID, core.ErrNotFound)
	}
	return nil
}

// Delete permanently removes a pass.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM passes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete pass: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("pass %d: %w", id, core.ErrNotFound)
	}
	return nil
}

// PassesForArchiving returns non-archived records past their retention
// threshold: used passes whose used_at is older than the used
// retention, and active passes created before the active retention.
func (s *Store) PassesForArchiving(ctx context.Context) ([]core.Pass, error) {
	now := time.Now().UTC()
	usedCutoff := now.Add(-s.usedRetention).Unix()
	activeCutoff := now.Add(-s.activeRetention).Unix()

	return s.queryPasses(ctx, `
		SELECT `+passColumns+`
		FROM passes
		WHERE is_archived = 0 AND (
			(status = ? AND used_at IS NOT NULL AND used_at < ?)
			OR (status = ? AND created_at < ?)
		)
		ORDER BY id
	`, string(core.PassStatusUsed), usedCutoff, string(core.PassStatusActive), activeCutoff)
}

// ArchivePass sets the archived flag on one record.
func (s *Store) ArchivePass(ctx context.Context, id int64) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	result, err := s.DB.ExecContext(ctx, `
		UPDATE passes SET is_archived = 1 WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("archive pass: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("archive result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("pass %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func (s *Store) queryPasses(ctx context.Context, query string, args ...any) ([]core.Pass, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query passes: %w", err)
	}
	defer rows.Close() // nolint:errcheck // read-only cursor

	passes := make([]core.Pass, 0)
	for rows.Next() {
		pass, err := scanPass(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pass: %w", err)
		}
		passes = append(passes, *pass)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passes: %w", err)
	}
	return passes, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPass(row rowScanner) (*core.Pass, error) {
	var (
		pass      core.Pass
		status    string
		createdAt int64
		usedAt    sql.NullInt64
		usedBy    sql.NullInt64
		archived  int
	)

	if err := row.Scan(&pass.ID, &pass.UserID, &pass.CarNumber, &status,
		&createdAt, &usedAt, &usedBy, &archived); err != nil {
		return nil, err
	}

	pass.Status = core.PassStatus(status)
	pass.CreatedAt = time.Unix(createdAt, 0).UTC()
	pass.Archived = archived != 0

	if usedAt.Valid {
		value := time.Unix(usedAt.Int64, 0).UTC()
		pass.UsedAt = &value
	}
	if usedBy.Valid {
		value := usedBy.Int64
		pass.UsedByID = &value
	}
	return &pass, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
