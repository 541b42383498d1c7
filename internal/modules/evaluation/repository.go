package evaluation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/dealeval/internal/database"
	"github.com/aristath/dealeval/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Repository persists evaluation records.
// Database: dealeval.db (evaluations table)
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

// NewRepository creates a new evaluation repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "evaluation").Logger(),
		now: time.Now,
	}
}

const selectColumns = `id, user_id, deal_id, status, current_step, result_json, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec                  Record
		status, step, doc    string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.DealID, &status, &step, &doc, &rec.Version, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if rec.Status, err = ParseStatus(status); err != nil {
		return nil, err
	}
	if rec.CurrentStep, err = ParseStep(step); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(doc), &rec.Results); err != nil {
		return nil, fmt.Errorf("evaluation %s: %w", rec.ID, err)
	}
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	rec.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &rec, nil
}

// Create inserts a fresh record at VEHICLE_CONDITION / ANALYZING.
// inputs seeds user_inputs and may be nil.
func (r *Repository) Create(ctx context.Context, userID, dealID string, inputs map[string]any) (*Record, error) {
	return r.create(ctx, r.db, userID, dealID, inputs)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *Repository) create(ctx context.Context, db execer, userID, dealID string, inputs map[string]any) (*Record, error) {
	now := r.now().UTC().Truncate(time.Second)
	rec := &Record{
		ID:          uuid.New().String(),
		UserID:      userID,
		DealID:      dealID,
		Status:      StatusAnalyzing,
		CurrentStep: StepVehicleCondition,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	rec.Results.mergeInputs(inputs)

	doc, err := json.Marshal(rec.Results)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result_json: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO evaluations
		(id, user_id, deal_id, status, current_step, result_json, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.UserID,
		rec.DealID,
		string(rec.Status),
		string(rec.CurrentStep),
		string(doc),
		rec.Version,
		now.Unix(),
		now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert evaluation: %w", err)
	}

	r.log.Debug().
		Str("evaluation_id", rec.ID).
		Str("deal_id", dealID).
		Msg("Evaluation created")
	return rec, nil
}

// GetByID returns ErrEvaluationNotFound when no record has id
func (r *Repository) GetByID(ctx context.Context, id string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM evaluations WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrEvaluationNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load evaluation %s: %w", id, err)
	}
	return rec, nil
}

// FindOrCreateOpen returns the newest unfinished record of the user for the deal,
// creating one when there is none. The lookup and insert share a transaction.
func (r *Repository) FindOrCreateOpen(ctx context.Context, userID, dealID string, inputs map[string]any) (rec *Record, created bool, err error) {
	err = database.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT `+selectColumns+`
			FROM evaluations
			WHERE user_id = ? AND deal_id = ? AND status != ?
			ORDER BY created_at DESC, rowid DESC
			LIMIT 1
		`, userID, dealID, string(StatusCompleted))

		found, scanErr := scanRecord(row)
		if scanErr == nil {
			rec = found
			return nil
		}
		if !errors.Is(scanErr, sql.ErrNoRows) {
			return fmt.Errorf("failed to find open evaluation: %w", scanErr)
		}

		rec, scanErr = r.create(ctx, tx, userID, dealID, inputs)
		created = scanErr == nil
		return scanErr
	})
	if err != nil {
		return nil, false, err
	}
	return rec, created, nil
}

// ListByDeal returns every record of a deal, newest first
func (r *Repository) ListByDeal(ctx context.Context, dealID string) ([]*Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM evaluations
		WHERE deal_id = ?
		ORDER BY created_at DESC, rowid DESC
	`, dealID)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluations: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating evaluations: %w", err)
	}
	return records, nil
}

// Save writes status, step and result_json in one statement.
// The write only lands when the stored version still equals rec.Version; rec.Version is
// then incremented. A lost race returns ErrConcurrentModification.
func (r *Repository) Save(ctx context.Context, rec *Record) error {
	if err := rec.checkInvariants(); err != nil {
		return fmt.Errorf("refusing to save evaluation %s: %w", rec.ID, err)
	}

	doc, err := json.Marshal(rec.Results)
	if err != nil {
		return fmt.Errorf("failed to encode result_json: %w", err)
	}

	now := r.now().UTC().Truncate(time.Second)
	res, err := r.db.ExecContext(ctx, `
		UPDATE evaluations
		SET status = ?, current_step = ?, result_json = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`,
		string(rec.Status),
		string(rec.CurrentStep),
		string(doc),
		now.Unix(),
		rec.ID,
		rec.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update evaluation %s: %w", rec.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update evaluation %s: %w", rec.ID, err)
	}
	if affected == 0 {
		if _, err := r.GetByID(ctx, rec.ID); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s at version %d", domain.ErrConcurrentModification, rec.ID, rec.Version)
	}

	rec.Version++
	rec.UpdatedAt = now
	return nil
}

// Delete removes a record. Missing records return ErrEvaluationNotFound.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM evaluations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete evaluation %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete evaluation %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrEvaluationNotFound, id)
	}

	r.log.Info().Str("evaluation_id", id).Msg("Evaluation deleted")
	return nil
}
