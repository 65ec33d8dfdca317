package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chatlink-service/internal/models"
	"chatlink-service/internal/token"
)

var (
	ErrIntentNotFound = errors.New("link intent not found")
	// ErrTokenExhausted signals repeated token collisions, which points at a
	// broken randomness source rather than bad luck. Callers must treat it as
	// fatal and alert.
	ErrTokenExhausted = errors.New("link token generation exhausted")
)

const (
	pendingIntentConstraint = "uniq_pending_intent_per_initiator"
	tokenConstraint         = "uniq_link_intent_token"
	uniqueViolation         = "23505"

	// tokenAttempts bounds genuine token collisions before the fatal path.
	tokenAttempts = 3
	// createRuns bounds total re-runs of the create flow, including re-runs
	// forced by a concurrent winner vanishing mid-race.
	createRuns = 6

	intentColumns = `id, project_id, initiator_id, token, tg_user_id, tg_request_id, chat_id, status, expires_at, created_at, consumed_at`
)

var errCreateUnsettled = errors.New("link intent creation did not settle")

// retryReason says why a create run must be repeated. Token collisions and a
// vanished race winner are budgeted separately: only the former points at
// broken randomness.
type retryReason int

const (
	retryNone retryReason = iota
	retryTokenCollision
	retryWinnerGone
)

// IntentRepository owns the link-intent state machine.
type IntentRepository interface {
	CreateOrReuse(ctx context.Context, projectID string, initiatorID int64, ttl time.Duration, tgUserID *int64) (models.LinkIntent, error)
	FindActiveByToken(ctx context.Context, tok string) (models.LinkIntent, error)
	FindActiveByTelegramUser(ctx context.Context, tgUserID int64) (models.LinkIntent, error)
	FindActiveByRequest(ctx context.Context, requestID int64) (models.LinkIntent, error)
	FindActiveByChat(ctx context.Context, chatID int64) (models.LinkIntent, error)
	AttachTelegramUser(ctx context.Context, tok string, tgUserID int64) error
	RecordShare(ctx context.Context, intentID int64, requestID int64, chatID int64) error
	MarkConsumed(ctx context.Context, intentID int64, chatID int64) (bool, error)
	Cancel(ctx context.Context, tok string, initiatorID int64) error
	SweepExpired(ctx context.Context) (int64, error)
	PurgeTerminal(ctx context.Context, retention time.Duration) (int64, error)
}

// IntentRepo is a sqlx implementation of IntentRepository.
type IntentRepo struct {
	db *sqlx.DB
}

// NewIntentRepo constructs an IntentRepo.
func NewIntentRepo(db *sqlx.DB) *IntentRepo {
	return &IntentRepo{db: db}
}

// CreateOrReuse returns the caller's active pending intent for the project,
// creating one when none exists. Concurrent callers always end up sharing a
// single pending row: the partial unique index decides the winner and the
// loser transparently returns the winner's row.
func (r *IntentRepo) CreateOrReuse(ctx context.Context, projectID string, initiatorID int64, ttl time.Duration, tgUserID *int64) (models.LinkIntent, error) {
	collisions := 0
	for run := 0; run < createRuns; run++ {
		intent, retry, err := r.createOrReuseOnce(ctx, projectID, initiatorID, ttl, tgUserID)
		if err != nil {
			return models.LinkIntent{}, err
		}
		switch retry {
		case retryNone:
			return intent, nil
		case retryTokenCollision:
			collisions++
			if collisions >= tokenAttempts {
				return models.LinkIntent{}, ErrTokenExhausted
			}
		case retryWinnerGone:
			// The winner was consumed or expired before we could read it;
			// run the whole flow again.
		}
	}
	return models.LinkIntent{}, errCreateUnsettled
}

func (r *IntentRepo) createOrReuseOnce(ctx context.Context, projectID string, initiatorID int64, ttl time.Duration, tgUserID *int64) (models.LinkIntent, retryReason, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.LinkIntent{}, retryNone, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Materialize expiry inline so a stale pending row cannot block the
	// partial unique index; correctness never waits for the sweep.
	if _, err := tx.ExecContext(ctx,
		`UPDATE link_intents SET status='expired'
         WHERE project_id=$1 AND initiator_id=$2 AND status='pending' AND expires_at<=NOW()`,
		projectID, initiatorID); err != nil {
		return models.LinkIntent{}, retryNone, err
	}

	expiresAt := time.Now().Add(ttl)

	var intent models.LinkIntent
	err = tx.GetContext(ctx, &intent,
		`SELECT `+intentColumns+` FROM link_intents
         WHERE project_id=$1 AND initiator_id=$2 AND status='pending' FOR UPDATE`,
		projectID, initiatorID)
	switch {
	case err == nil:
		// Idempotent reuse: extend the expiry if the new one is later and
		// remember the Telegram user only if not known yet.
		if err := tx.GetContext(ctx, &intent,
			`UPDATE link_intents
             SET expires_at=GREATEST(expires_at, $2), tg_user_id=COALESCE(tg_user_id, $3)
             WHERE id=$1 RETURNING `+intentColumns,
			intent.ID, expiresAt, tgUserID); err != nil {
			return models.LinkIntent{}, retryNone, err
		}
		if err := tx.Commit(); err != nil {
			return models.LinkIntent{}, retryNone, err
		}
		return intent, retryNone, nil

	case errors.Is(err, sql.ErrNoRows):
		tok, err := token.New(token.DefaultLength)
		if err != nil {
			return models.LinkIntent{}, retryNone, err
		}
		err = tx.GetContext(ctx, &intent,
			`INSERT INTO link_intents (project_id, initiator_id, token, tg_user_id, status, expires_at)
             VALUES ($1, $2, $3, $4, 'pending', $5) RETURNING `+intentColumns,
			projectID, initiatorID, tok, tgUserID, expiresAt)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
				if pqErr.Constraint == pendingIntentConstraint {
					// A concurrent creator won the race; hand its row back.
					winner, werr := r.FindActiveByInitiator(ctx, projectID, initiatorID)
					if werr == nil {
						return winner, retryNone, nil
					}
					if errors.Is(werr, ErrIntentNotFound) {
						return models.LinkIntent{}, retryWinnerGone, nil
					}
					return models.LinkIntent{}, retryNone, werr
				}
				// Token collision: retry with fresh randomness.
				return models.LinkIntent{}, retryTokenCollision, nil
			}
			return models.LinkIntent{}, retryNone, err
		}
		if err := tx.Commit(); err != nil {
			return models.LinkIntent{}, retryNone, err
		}
		return intent, retryNone, nil

	default:
		return models.LinkIntent{}, retryNone, err
	}
}

// FindActiveByInitiator returns the caller's pending unexpired intent for the project.
func (r *IntentRepo) FindActiveByInitiator(ctx context.Context, projectID string, initiatorID int64) (models.LinkIntent, error) {
	var intent models.LinkIntent
	err := r.db.GetContext(ctx, &intent,
		`SELECT `+intentColumns+` FROM link_intents
         WHERE project_id=$1 AND initiator_id=$2 AND status='pending' AND expires_at>NOW()
         ORDER BY created_at DESC LIMIT 1`,
		projectID, initiatorID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.LinkIntent{}, ErrIntentNotFound
	}
	return intent, err
}

func (r *IntentRepo) findActive(ctx context.Context, where string, arg any) (models.LinkIntent, error) {
	var intent models.LinkIntent
	err := r.db.GetContext(ctx, &intent,
		`SELECT `+intentColumns+` FROM link_intents
         WHERE `+where+` AND status='pending' AND expires_at>NOW()
         ORDER BY created_at DESC LIMIT 1`, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.LinkIntent{}, ErrIntentNotFound
	}
	return intent, err
}

// FindActiveByToken returns the pending unexpired intent carrying the token.
func (r *IntentRepo) FindActiveByToken(ctx context.Context, tok string) (models.LinkIntent, error) {
	return r.findActive(ctx, "token=$1", tok)
}

// FindActiveByTelegramUser returns the most recent pending unexpired intent
// started by the given Telegram user.
func (r *IntentRepo) FindActiveByTelegramUser(ctx context.Context, tgUserID int64) (models.LinkIntent, error) {
	return r.findActive(ctx, "tg_user_id=$1", tgUserID)
}

// FindActiveByRequest returns the pending unexpired intent recorded for a
// chat_shared request id.
func (r *IntentRepo) FindActiveByRequest(ctx context.Context, requestID int64) (models.LinkIntent, error) {
	return r.findActive(ctx, "tg_request_id=$1", requestID)
}

// FindActiveByChat returns the pending unexpired intent already carrying the
// given Telegram chat id.
func (r *IntentRepo) FindActiveByChat(ctx context.Context, chatID int64) (models.LinkIntent, error) {
	return r.findActive(ctx, "chat_id=$1", chatID)
}

// AttachTelegramUser records which Telegram identity pressed /start with the
// token. A stale or unknown token is a silent no-op.
func (r *IntentRepo) AttachTelegramUser(ctx context.Context, tok string, tgUserID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE link_intents SET tg_user_id=$2
         WHERE token=$1 AND status='pending' AND expires_at>NOW()
           AND tg_user_id IS DISTINCT FROM $2`,
		tok, tgUserID)
	return err
}

// RecordShare stores the chat_shared request id and the shared chat id on a
// still-pending intent. requestID of 0 means the event carried none.
func (r *IntentRepo) RecordShare(ctx context.Context, intentID int64, requestID int64, chatID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE link_intents SET tg_request_id=COALESCE(NULLIF($2::bigint, 0), tg_request_id), chat_id=$3
         WHERE id=$1 AND status='pending'`,
		intentID, requestID, chatID)
	return err
}

// MarkConsumed transitions a pending intent to consumed, stamping the chat id
// and consumption time atomically. Returns false when another delivery got
// there first, which makes duplicate webhook deliveries a no-op.
func (r *IntentRepo) MarkConsumed(ctx context.Context, intentID int64, chatID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE link_intents SET status='consumed', consumed_at=NOW(), chat_id=$2
         WHERE id=$1 AND status='pending'`,
		intentID, chatID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Cancel lets the initiator withdraw a pending intent.
func (r *IntentRepo) Cancel(ctx context.Context, tok string, initiatorID int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE link_intents SET status='cancelled'
         WHERE token=$1 AND initiator_id=$2 AND status='pending'`,
		tok, initiatorID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrIntentNotFound
	}
	return nil
}

// SweepExpired materializes the expired status on overdue pending rows.
func (r *IntentRepo) SweepExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE link_intents SET status='expired'
         WHERE status='pending' AND expires_at<=NOW()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PurgeTerminal deletes consumed/expired/cancelled rows older than the
// retention window. Pending rows are never touched here.
func (r *IntentRepo) PurgeTerminal(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM link_intents WHERE status<>'pending' AND created_at<$1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
