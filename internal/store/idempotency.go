package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"payment-service/internal/models"
)

// ClaimOutcome is the result of attempting to claim an idempotency key.
type ClaimOutcome int

const (
	// ClaimAcquired means the caller now exclusively owns processing for the key.
	ClaimAcquired ClaimOutcome = iota
	// ClaimReplay means the key already completed; the stored response must be
	// returned verbatim.
	ClaimReplay
	// ClaimInProgress means another request currently holds the claim.
	ClaimInProgress
)

// ClaimResult carries the cached response when Outcome is ClaimReplay.
type ClaimResult struct {
	Outcome        ClaimOutcome
	ResponseStatus int
	ResponseBody   []byte
}

// Claim attempts a single atomic insert-if-absent of a CLAIMED record. The
// insert is the atomicity boundary: two concurrent requests bearing the same
// key race on the primary key, and exactly one wins. On conflict the existing
// record is read back to distinguish a completed response from one in flight.
func (s *Store) Claim(ctx context.Context, keyHash, requestPath string, ttl time.Duration) (*ClaimResult, error) {
	insert := `
		INSERT INTO idempotency_keys (key_hash, request_path, created_at, expires_at)
		VALUES ($1, $2, NOW(), NOW() + make_interval(secs => $3))
		ON CONFLICT (key_hash) DO NOTHING
		RETURNING key_hash`

	var claimed string
	err := s.db.GetContext(ctx, &claimed, insert, keyHash, requestPath, ttl.Seconds())
	if err == nil {
		return &ClaimResult{Outcome: ClaimAcquired}, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to claim idempotency key: %w", err)
	}

	// Key already exists: read it back to determine state.
	var rec models.IdempotencyRecord
	err = s.db.GetContext(ctx, &rec,
		"SELECT * FROM idempotency_keys WHERE key_hash = $1", keyHash)
	if err == sql.ErrNoRows {
		// Purged between insert and read-back; treat as in flight and let the
		// client retry rather than loop here.
		return &ClaimResult{Outcome: ClaimInProgress}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read idempotency key: %w", err)
	}

	if rec.ExpiresAt.Before(time.Now().UTC()) {
		// Stale record past TTL: reclaim it. The expires_at guard keeps this
		// from deleting a record a concurrent claimer just rewrote.
		if _, err := s.db.ExecContext(ctx,
			"DELETE FROM idempotency_keys WHERE key_hash = $1 AND expires_at = $2",
			keyHash, rec.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to reclaim expired key: %w", err)
		}
		err = s.db.GetContext(ctx, &claimed, insert, keyHash, requestPath, ttl.Seconds())
		if err == nil {
			return &ClaimResult{Outcome: ClaimAcquired}, nil
		}
		if err == sql.ErrNoRows {
			return &ClaimResult{Outcome: ClaimInProgress}, nil
		}
		return nil, fmt.Errorf("failed to claim idempotency key: %w", err)
	}

	if rec.ResponseStatus.Valid {
		return &ClaimResult{
			Outcome:        ClaimReplay,
			ResponseStatus: int(rec.ResponseStatus.Int32),
			ResponseBody:   rec.ResponseBody,
		}, nil
	}

	return &ClaimResult{Outcome: ClaimInProgress}, nil
}

// Finalize transitions a CLAIMED record to COMPLETED, storing the exact
// response body and status code returned to the original caller. The NULL
// guard makes the transition happen exactly once.
func (s *Store) Finalize(ctx context.Context, keyHash string, statusCode int, responseBody []byte) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE idempotency_keys
		SET response_status = $2, response_body = $3
		WHERE key_hash = $1 AND response_status IS NULL`,
		keyHash, statusCode, responseBody)
	if err != nil {
		return false, fmt.Errorf("failed to finalize idempotency key: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Release deletes a CLAIMED record so the key can be retried. Completed
// records are never released.
func (s *Store) Release(ctx context.Context, keyHash string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM idempotency_keys WHERE key_hash = $1 AND response_status IS NULL",
		keyHash)
	return err
}

// PurgeExpired deletes records past their TTL. Safe to run concurrently with
// claims: it only targets rows already expired.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM idempotency_keys WHERE expires_at < NOW()")
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired keys: %w", err)
	}
	return res.RowsAffected()
}
