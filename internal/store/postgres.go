// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"fostermatch/internal/common/errors"
	"fostermatch/internal/common/logger"
	"fostermatch/internal/matching"
	"fostermatch/internal/models"
)

// PostgresStore reads pivot/candidate records and owns the match_results
// table. It implements matching.Source.
type PostgresStore struct {
	db     *sql.DB
	cache  *Cache          // optional, nil disables caching
	index  *CandidateIndex // optional, nil disables the search pre-filter
	logger logger.Logger
}

func NewPostgresStore(db *sql.DB, cache *Cache, index *CandidateIndex, log logger.Logger) *PostgresStore {
	return &PostgresStore{db: db, cache: cache, index: index, logger: log}
}

const childColumns = `id, name, status, age, gender, jurisdiction, special_needs, lat, lon`

func scanChild(row interface{ Scan(...interface{}) error }) (*models.Child, error) {
	var c models.Child
	var lat, lon sql.NullFloat64
	err := row.Scan(&c.ID, &c.Name, &c.Status, &c.Age, &c.Gender, &c.Jurisdiction,
		&c.SpecialNeeds, &lat, &lon)
	if err != nil {
		return nil, err
	}
	if lat.Valid && lon.Valid {
		c.Coordinates = &models.Coordinates{Lat: lat.Float64, Lon: lon.Float64}
	}
	return &c, nil
}

// GetChild returns (nil, nil) when the child does not exist.
func (s *PostgresStore) GetChild(ctx context.Context, id string) (*models.Child, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+childColumns+` FROM children WHERE id = $1`, id)
	c, err := scanChild(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get_child", err)
	}
	return c, nil
}

const familyColumns = `id, name, license_status, background_check_status, training_status,
		available_capacity, jurisdiction, special_needs_capable, gender_preference,
		accepts_age_min, accepts_age_max, lat, lon`

func scanFamily(row interface{ Scan(...interface{}) error }) (*models.Family, error) {
	var f models.Family
	var gender sql.NullString
	var ageMin, ageMax sql.NullInt64
	var lat, lon sql.NullFloat64
	err := row.Scan(&f.ID, &f.Name, &f.LicenseStatus, &f.BackgroundCheckStatus,
		&f.TrainingStatus, &f.AvailableCapacity, &f.Jurisdiction,
		&f.SpecialNeedsCapable, &gender, &ageMin, &ageMax, &lat, &lon)
	if err != nil {
		return nil, err
	}
	f.GenderPreference = gender.String
	if ageMin.Valid {
		v := int(ageMin.Int64)
		f.AcceptsAgeMin = &v
	}
	if ageMax.Valid {
		v := int(ageMax.Int64)
		f.AcceptsAgeMax = &v
	}
	if lat.Valid && lon.Valid {
		f.Coordinates = &models.Coordinates{Lat: lat.Float64, Lon: lon.Float64}
	}
	return &f, nil
}

// GetFamily returns (nil, nil) when the family does not exist.
func (s *PostgresStore) GetFamily(ctx context.Context, id string) (*models.Family, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+familyColumns+` FROM families WHERE id = $1`, id)
	f, err := scanFamily(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get_family", err)
	}
	return f, nil
}

// GetPreference returns (nil, nil) when the preference does not exist.
func (s *PostgresStore) GetPreference(ctx context.Context, id string) (*models.Preference, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, family_id, status, age_min, age_max, gender, jurisdiction,
		       special_needs_willing, desired_capacity
		FROM preferences WHERE id = $1`, id)

	var p models.Preference
	var ageMin, ageMax, capacity sql.NullInt64
	var gender, jurisdiction, willing sql.NullString
	err := row.Scan(&p.ID, &p.FamilyID, &p.Status, &ageMin, &ageMax, &gender,
		&jurisdiction, &willing, &capacity)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get_preference", err)
	}

	if ageMin.Valid {
		v := int(ageMin.Int64)
		p.AgeMin = &v
	}
	if ageMax.Valid {
		v := int(ageMax.Int64)
		p.AgeMax = &v
	}
	if capacity.Valid {
		v := int(capacity.Int64)
		p.DesiredCapacity = &v
	}
	p.Gender = gender.String
	p.Jurisdiction = jurisdiction.String
	p.SpecialNeedsWilling = willing.String
	return &p, nil
}

// ListEligibleFamilies applies the cheap active-status pre-filter. The pool
// is served from cache when fresh, and id-filtered through the search index
// when one is configured; index failures fall back to the SQL filter.
func (s *PostgresStore) ListEligibleFamilies(ctx context.Context) ([]models.Family, error) {
	if s.cache != nil {
		if families, ok := s.cache.GetFamilyPool(ctx); ok {
			return families, nil
		}
	}

	families, err := s.listEligibleFamiliesSQL(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.SetFamilyPool(ctx, families)
	}
	return families, nil
}

func (s *PostgresStore) listEligibleFamiliesSQL(ctx context.Context) ([]models.Family, error) {
	query := `SELECT ` + familyColumns + ` FROM families
		WHERE license_status = $1 AND background_check_status = $2 AND training_status = $3
		ORDER BY id`
	args := []interface{}{
		models.LicenseStatusActive,
		models.BackgroundCheckStatusClear,
		models.TrainingStatusCompleted,
	}

	if s.index != nil {
		ids, err := s.index.SearchEligibleFamilyIDs(ctx)
		if err == nil {
			if len(ids) == 0 {
				return []models.Family{}, nil
			}
			query = `SELECT ` + familyColumns + ` FROM families WHERE id = ANY($1) ORDER BY id`
			args = []interface{}{pq.Array(ids)}
		} else {
			s.logger.Warn("candidate index unavailable, falling back to sql pre-filter", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_eligible_families", err)
	}
	defer rows.Close()

	var families []models.Family
	for rows.Next() {
		f, err := scanFamily(rows)
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("list_eligible_families", err)
		}
		families = append(families, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_eligible_families", err)
	}
	return families, nil
}

// ListEligibleChildren returns children in a placeable status.
func (s *PostgresStore) ListEligibleChildren(ctx context.Context) ([]models.Child, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+childColumns+` FROM children
		WHERE status = ANY($1) ORDER BY id`,
		pq.Array([]string{models.ChildStatusActive, models.ChildStatusNeedsPlacement}))
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_eligible_children", err)
	}
	defer rows.Close()

	var children []models.Child
	for rows.Next() {
		c, err := scanChild(rows)
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("list_eligible_children", err)
		}
		children = append(children, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_eligible_children", err)
	}
	return children, nil
}

// ListEligiblePivots enumerates every pivot the batch engine should
// recalculate: placeable children plus active preferences.
func (s *PostgresStore) ListEligiblePivots(ctx context.Context) ([]matching.PivotRef, error) {
	var refs []matching.PivotRef

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM children WHERE status = ANY($1) ORDER BY id`,
		pq.Array([]string{models.ChildStatusActive, models.ChildStatusNeedsPlacement}))
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_eligible_pivots", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.NewQueryExecutionFailedError("list_eligible_pivots", err)
		}
		refs = append(refs, matching.PivotRef{Kind: matching.PivotChild, ID: id})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_eligible_pivots", err)
	}

	prefRows, err := s.db.QueryContext(ctx, `SELECT id FROM preferences WHERE status = $1 ORDER BY id`,
		models.PreferenceStatusActive)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_eligible_pivots", err)
	}
	defer prefRows.Close()
	for prefRows.Next() {
		var id string
		if err := prefRows.Scan(&id); err != nil {
			return nil, errors.NewQueryExecutionFailedError("list_eligible_pivots", err)
		}
		refs = append(refs, matching.PivotRef{Kind: matching.PivotPreference, ID: id})
	}
	if err := prefRows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_eligible_pivots", err)
	}

	return refs, nil
}

// ReplaceResults atomically swaps the pivot's current result set: new rows
// are inserted first, then rows from older calculations are deleted, all in
// one transaction. Concurrent readers never observe an empty or partial set.
func (s *PostgresStore) ReplaceResults(ctx context.Context, ref matching.PivotRef, results []models.MatchResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classifyWriteError(err)
	}
	defer tx.Rollback()

	calculatedAt := time.Now().UTC()
	for i := range results {
		r := &results[i]
		r.CalculatedAt = calculatedAt

		breakdown, err := json.Marshal(r.Breakdown)
		if err != nil {
			return errors.NewQueryExecutionFailedError("replace_results", err)
		}
		reasons, _ := json.Marshal(r.Reasons)
		flags, _ := json.Marshal(r.Flags)

		var distance sql.NullFloat64
		if r.DistanceMiles != nil {
			distance = sql.NullFloat64{Float64: *r.DistanceMiles, Valid: true}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO match_results
				(id, pivot_id, pivot_kind, candidate_id, candidate_name, score,
				 breakdown, reasons, flags, distance_miles, rank, status, notes,
				 status_reason, calculated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
			r.ID, r.PivotID, r.PivotKind, r.CandidateID, r.CandidateName, r.Score,
			breakdown, reasons, flags, distance, r.Rank, r.Status, r.Notes,
			r.StatusReason, r.CalculatedAt)
		if err != nil {
			return classifyWriteError(err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM match_results
		WHERE pivot_id = $1 AND pivot_kind = $2 AND calculated_at < $3`,
		ref.ID, string(ref.Kind), calculatedAt)
	if err != nil {
		return classifyWriteError(err)
	}

	if err := tx.Commit(); err != nil {
		return classifyWriteError(err)
	}
	return nil
}

const resultColumns = `id, pivot_id, pivot_kind, candidate_id, candidate_name, score,
		breakdown, reasons, flags, distance_miles, rank, status, notes,
		status_reason, calculated_at`

func scanResult(row interface{ Scan(...interface{}) error }) (*models.MatchResult, error) {
	var r models.MatchResult
	var breakdown, reasons, flags []byte
	var distance sql.NullFloat64
	var notes, statusReason sql.NullString
	err := row.Scan(&r.ID, &r.PivotID, &r.PivotKind, &r.CandidateID, &r.CandidateName,
		&r.Score, &breakdown, &reasons, &flags, &distance, &r.Rank, &r.Status,
		&notes, &statusReason, &r.CalculatedAt)
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal(breakdown, &r.Breakdown)
	_ = json.Unmarshal(reasons, &r.Reasons)
	_ = json.Unmarshal(flags, &r.Flags)
	if distance.Valid {
		r.DistanceMiles = &distance.Float64
	}
	r.Notes = notes.String
	r.StatusReason = statusReason.String
	r.Eligible = true // persisted rows are the ranked, eligible set
	return &r, nil
}

// GetCurrentResults returns the pivot's current ranked result set.
func (s *PostgresStore) GetCurrentResults(ctx context.Context, ref matching.PivotRef) ([]models.MatchResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+resultColumns+` FROM match_results
		WHERE pivot_id = $1 AND pivot_kind = $2
		ORDER BY rank`, ref.ID, string(ref.Kind))
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get_current_results", err)
	}
	defer rows.Close()

	var results []models.MatchResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("get_current_results", err)
		}
		results = append(results, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("get_current_results", err)
	}
	return results, nil
}

// GetResult returns (nil, nil) when the result does not exist.
func (s *PostgresStore) GetResult(ctx context.Context, id string) (*models.MatchResult, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+resultColumns+` FROM match_results WHERE id = $1`, id)
	r, err := scanResult(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get_result", err)
	}
	return r, nil
}

// UpdateResultStatus moves a result through the caseworker workflow. The
// reason is recorded separately from free-form notes.
func (s *PostgresStore) UpdateResultStatus(ctx context.Context, id, status, notes, reason string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE match_results SET status = $2, notes = $3, status_reason = $4 WHERE id = $1`,
		id, status, notes, reason)
	if err != nil {
		return classifyWriteError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.NewQueryExecutionFailedError("update_result_status", err)
	}
	if affected == 0 {
		return errors.NewResultNotFoundError(id)
	}
	return nil
}

// classifyWriteError maps serialization conflicts and resource exhaustion
// to the retryable transient-persistence code.
func classifyWriteError(err error) error {
	if pqErr, ok := err.(*pq.Error); ok {
		class := pqErr.Code.Class()
		// 40 = transaction rollback (serialization, deadlock),
		// 53 = insufficient resources.
		if class == "40" || class == "53" {
			return errors.NewTransientPersistenceError(err)
		}
	}
	return errors.NewQueryExecutionFailedError("write", err)
}
