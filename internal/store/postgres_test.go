package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fostermatch/internal/common/errors"
	"fostermatch/internal/common/logger"
	"fostermatch/internal/matching"
	"fostermatch/internal/models"
)

func newTestStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db, nil, nil, logger.NewTestLogger(t)), mock
}

func childRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "status", "age", "gender", "jurisdiction", "special_needs", "lat", "lon",
	})
}

func familyRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "license_status", "background_check_status", "training_status",
		"available_capacity", "jurisdiction", "special_needs_capable", "gender_preference",
		"accepts_age_min", "accepts_age_max", "lat", "lon",
	})
}

func TestGetChild(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT .+ FROM children WHERE id = \$1`).
		WithArgs("child-1").
		WillReturnRows(childRows().AddRow(
			"child-1", "Alex", models.ChildStatusNeedsPlacement, 8, "Female",
			"County A", false, 40.0, -74.0))

	child, err := store.GetChild(context.Background(), "child-1")
	require.NoError(t, err)
	require.NotNil(t, child)
	assert.Equal(t, "Alex", child.Name)
	require.NotNil(t, child.Coordinates)
	assert.Equal(t, 40.0, child.Coordinates.Lat)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetChild_NotFoundReturnsNil(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT .+ FROM children WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(childRows())

	child, err := store.GetChild(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, child)
}

func TestGetFamily_NullableColumns(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT .+ FROM families WHERE id = \$1`).
		WithArgs("family-1").
		WillReturnRows(familyRows().AddRow(
			"family-1", "The Smiths", models.LicenseStatusActive,
			models.BackgroundCheckStatusClear, models.TrainingStatusCompleted,
			2, "County A", true, nil, 5, nil, nil, nil))

	family, err := store.GetFamily(context.Background(), "family-1")
	require.NoError(t, err)
	require.NotNil(t, family)
	assert.Empty(t, family.GenderPreference)
	require.NotNil(t, family.AcceptsAgeMin)
	assert.Equal(t, 5, *family.AcceptsAgeMin)
	assert.Nil(t, family.AcceptsAgeMax)
	assert.Nil(t, family.Coordinates)
}

func TestListEligibleFamilies_SQLFilter(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT .+ FROM families\s+WHERE license_status = \$1`).
		WithArgs(models.LicenseStatusActive, models.BackgroundCheckStatusClear, models.TrainingStatusCompleted).
		WillReturnRows(familyRows().
			AddRow("family-1", "A", models.LicenseStatusActive, models.BackgroundCheckStatusClear,
				models.TrainingStatusCompleted, 1, "County A", false, nil, nil, nil, nil, nil).
			AddRow("family-2", "B", models.LicenseStatusActive, models.BackgroundCheckStatusClear,
				models.TrainingStatusCompleted, 3, "County B", true, nil, nil, nil, nil, nil))

	families, err := store.ListEligibleFamilies(context.Background())
	require.NoError(t, err)
	assert.Len(t, families, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListEligiblePivots(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT id FROM children WHERE status = ANY\(\$1\)`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("child-1").AddRow("child-2"))
	mock.ExpectQuery(`SELECT id FROM preferences WHERE status = \$1`).
		WithArgs(models.PreferenceStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("pref-1"))

	refs, err := store.ListEligiblePivots(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 3)
	assert.Equal(t, matching.PivotRef{Kind: matching.PivotChild, ID: "child-1"}, refs[0])
	assert.Equal(t, matching.PivotRef{Kind: matching.PivotPreference, ID: "pref-1"}, refs[2])
}

func TestReplaceResults_InsertsBeforeDelete(t *testing.T) {
	store, mock := newTestStore(t)

	results := []models.MatchResult{
		{
			ID: "result-1", PivotID: "child-1", PivotKind: "child",
			CandidateID: "family-1", CandidateName: "A", Score: 95,
			Breakdown: map[string]models.CriterionScore{}, Rank: 1,
			Status: models.MatchStatusPending,
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO match_results`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM match_results\s+WHERE pivot_id = \$1 AND pivot_kind = \$2 AND calculated_at < \$3`).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	err := store.ReplaceResults(context.Background(),
		matching.PivotRef{Kind: matching.PivotChild, ID: "child-1"}, results)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceResults_SerializationConflictIsTransient(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO match_results`).
		WillReturnError(&pq.Error{Code: "40001"})
	mock.ExpectRollback()

	err := store.ReplaceResults(context.Background(),
		matching.PivotRef{Kind: matching.PivotChild, ID: "child-1"},
		[]models.MatchResult{{ID: "result-1", Breakdown: map[string]models.CriterionScore{}}})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeTransientPersistence, errors.CodeOf(err))
	assert.True(t, errors.IsRetryable(err))
}

func TestUpdateResultStatus(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(`UPDATE match_results SET status = \$2, notes = \$3, status_reason = \$4 WHERE id = \$1`).
		WithArgs("result-1", models.MatchStatusNotSuitable, "good fit", "relocating").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.UpdateResultStatus(context.Background(), "result-1",
		models.MatchStatusNotSuitable, "good fit", "relocating")
	require.NoError(t, err)
}

func TestUpdateResultStatus_MissingRow(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(`UPDATE match_results SET status = \$2, notes = \$3, status_reason = \$4 WHERE id = \$1`).
		WithArgs("missing", models.MatchStatusOnHold, "", "").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateResultStatus(context.Background(), "missing", models.MatchStatusOnHold, "", "")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}
