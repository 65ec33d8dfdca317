package repositories

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	intentProjectID   = "f2f8f2cc-0000-4000-8000-00000000bbbb"
	intentInitiatorID = int64(42)
)

func newIntentRepoWithMock(t *testing.T) (*IntentRepo, sqlmock.Sqlmock) {
	t.Helper()
	database, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewIntentRepo(sqlx.NewDb(database, "sqlmock")), mock
}

func pendingIntentRows(id int64, tok string, expiresAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "project_id", "initiator_id", "token", "tg_user_id",
		"tg_request_id", "chat_id", "status", "expires_at", "created_at", "consumed_at",
	}).AddRow(id, intentProjectID, intentInitiatorID, tok, nil, nil, nil, "pending", expiresAt, time.Now(), nil)
}

// expectFreshAttempt sets up one create run up to the insert: expiry
// materialization plus the locked select finding no reusable row.
func expectFreshAttempt(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectExec("SET status='expired'").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FOR UPDATE").
		WillReturnError(sql.ErrNoRows)
}

func uniqueViolationOn(constraint string) *pq.Error {
	return &pq.Error{Code: uniqueViolation, Constraint: constraint}
}

func TestCreateOrReuseReusesActiveIntent(t *testing.T) {
	repo, mock := newIntentRepoWithMock(t)
	expiresAt := time.Now().Add(10 * time.Minute)

	mock.ExpectBegin()
	mock.ExpectExec("SET status='expired'").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FOR UPDATE").
		WillReturnRows(pendingIntentRows(1, "proj_existing", expiresAt))
	mock.ExpectQuery("SET expires_at=GREATEST").
		WillReturnRows(pendingIntentRows(1, "proj_existing", expiresAt.Add(5*time.Minute)))
	mock.ExpectCommit()

	intent, err := repo.CreateOrReuse(context.Background(), intentProjectID, intentInitiatorID, 15*time.Minute, nil)
	require.NoError(t, err)
	assert.Equal(t, "proj_existing", intent.Token)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrReuseInsertsWhenNoneActive(t *testing.T) {
	repo, mock := newIntentRepoWithMock(t)

	expectFreshAttempt(mock)
	mock.ExpectQuery("INSERT INTO link_intents").
		WillReturnRows(pendingIntentRows(2, "proj_fresh", time.Now().Add(15*time.Minute)))
	mock.ExpectCommit()

	intent, err := repo.CreateOrReuse(context.Background(), intentProjectID, intentInitiatorID, 15*time.Minute, nil)
	require.NoError(t, err)
	assert.Equal(t, "proj_fresh", intent.Token)
	assert.Equal(t, int64(2), intent.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrReuseReturnsWinnerOnPendingConflict(t *testing.T) {
	repo, mock := newIntentRepoWithMock(t)

	expectFreshAttempt(mock)
	mock.ExpectQuery("INSERT INTO link_intents").
		WillReturnError(uniqueViolationOn(pendingIntentConstraint))
	// The loser re-reads the concurrent winner's row instead of failing.
	mock.ExpectQuery("ORDER BY created_at DESC LIMIT 1").
		WillReturnRows(pendingIntentRows(3, "proj_winner", time.Now().Add(15*time.Minute)))
	mock.ExpectRollback()

	intent, err := repo.CreateOrReuse(context.Background(), intentProjectID, intentInitiatorID, 15*time.Minute, nil)
	require.NoError(t, err)
	assert.Equal(t, "proj_winner", intent.Token)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrReuseRetriesTokenCollision(t *testing.T) {
	repo, mock := newIntentRepoWithMock(t)

	expectFreshAttempt(mock)
	mock.ExpectQuery("INSERT INTO link_intents").
		WillReturnError(uniqueViolationOn(tokenConstraint))
	mock.ExpectRollback()

	expectFreshAttempt(mock)
	mock.ExpectQuery("INSERT INTO link_intents").
		WillReturnRows(pendingIntentRows(4, "proj_second_try", time.Now().Add(15*time.Minute)))
	mock.ExpectCommit()

	intent, err := repo.CreateOrReuse(context.Background(), intentProjectID, intentInitiatorID, 15*time.Minute, nil)
	require.NoError(t, err)
	assert.Equal(t, "proj_second_try", intent.Token)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrReuseRepeatedCollisionsExhaustTokens(t *testing.T) {
	repo, mock := newIntentRepoWithMock(t)

	for i := 0; i < tokenAttempts; i++ {
		expectFreshAttempt(mock)
		mock.ExpectQuery("INSERT INTO link_intents").
			WillReturnError(uniqueViolationOn(tokenConstraint))
		mock.ExpectRollback()
	}

	_, err := repo.CreateOrReuse(context.Background(), intentProjectID, intentInitiatorID, 15*time.Minute, nil)
	assert.ErrorIs(t, err, ErrTokenExhausted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrReuseRerunsWhenWinnerVanished(t *testing.T) {
	repo, mock := newIntentRepoWithMock(t)

	// First run: the winner of the pending-row race is already gone by the
	// time the loser re-queries it.
	expectFreshAttempt(mock)
	mock.ExpectQuery("INSERT INTO link_intents").
		WillReturnError(uniqueViolationOn(pendingIntentConstraint))
	mock.ExpectQuery("ORDER BY created_at DESC LIMIT 1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	expectFreshAttempt(mock)
	mock.ExpectQuery("INSERT INTO link_intents").
		WillReturnRows(pendingIntentRows(5, "proj_after_rerun", time.Now().Add(15*time.Minute)))
	mock.ExpectCommit()

	intent, err := repo.CreateOrReuse(context.Background(), intentProjectID, intentInitiatorID, 15*time.Minute, nil)
	require.NoError(t, err)
	assert.Equal(t, "proj_after_rerun", intent.Token)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrReuseVanishedWinnerNeverPagesAsExhaustion(t *testing.T) {
	repo, mock := newIntentRepoWithMock(t)

	// Every run loses the pending-row race to a winner that vanishes. This is
	// contention, not broken randomness, so the fatal collision error must
	// not surface no matter how often it repeats.
	for i := 0; i < createRuns; i++ {
		expectFreshAttempt(mock)
		mock.ExpectQuery("INSERT INTO link_intents").
			WillReturnError(uniqueViolationOn(pendingIntentConstraint))
		mock.ExpectQuery("ORDER BY created_at DESC LIMIT 1").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()
	}

	_, err := repo.CreateOrReuse(context.Background(), intentProjectID, intentInitiatorID, 15*time.Minute, nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTokenExhausted)
	assert.ErrorIs(t, err, errCreateUnsettled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindActiveByTokenFiltersExpiredRows(t *testing.T) {
	repo, mock := newIntentRepoWithMock(t)

	// The query itself excludes overdue pending rows, so a stale intent is
	// invisible even before the sweeper materializes its expiry.
	mock.ExpectQuery(`status='pending' AND expires_at>NOW\(\)`).
		WithArgs("proj_stale").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindActiveByToken(context.Background(), "proj_stale")
	assert.ErrorIs(t, err, ErrIntentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindActiveByTokenReturnsLiveRow(t *testing.T) {
	repo, mock := newIntentRepoWithMock(t)

	mock.ExpectQuery(`status='pending' AND expires_at>NOW\(\)`).
		WithArgs("proj_live").
		WillReturnRows(pendingIntentRows(6, "proj_live", time.Now().Add(5*time.Minute)))

	intent, err := repo.FindActiveByToken(context.Background(), "proj_live")
	require.NoError(t, err)
	assert.Equal(t, "proj_live", intent.Token)
	assert.NoError(t, mock.ExpectationsWereMet())
}
