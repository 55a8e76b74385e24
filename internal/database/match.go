// internal/database/match.go
package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/conquianhq/conquian/internal/history"
)

// InsertMatchActions writes a batch of action records in one transaction,
// upserting the match row as needed. Actions of type "game_finished" also
// finalize the match.
func InsertMatchActions(ctx context.Context, pool *pgxpool.Pool, records []history.ActionRecord) error {
	return pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range records {
			if err := insertMatchActionTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insertMatchActionTx: %w", err)
			}
		}
		return nil
	})
}

func insertMatchActionTx(ctx context.Context, tx pgx.Tx, rec history.ActionRecord) error {
	upsertMatchQ := `
		INSERT INTO matches (id, room_id, status, start_time)
		VALUES ($1, $2, 'in_progress', NOW())
		ON CONFLICT (id)
		DO NOTHING
	`
	if _, err := tx.Exec(ctx, upsertMatchQ, rec.GameID, rec.RoomID); err != nil {
		return err
	}

	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return err
	}
	actionInsertQ := `
		INSERT INTO match_actions (
			match_id, action_index, actor_id, action_type, action_payload
		) VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := tx.Exec(ctx, actionInsertQ,
		rec.GameID, rec.ActionIndex, rec.ActorID, rec.ActionType, payload,
	); err != nil {
		return err
	}

	if rec.ActionType == "game_finished" {
		finalizeQ := `
			UPDATE matches
			SET status = 'completed', end_time = NOW()
			WHERE id = $1 AND status = 'in_progress'
		`
		if _, err := tx.Exec(ctx, finalizeQ, rec.GameID); err != nil {
			return err
		}
	}
	return nil
}

// MarkMatchAbandoned flags a stalled match whose room stopped producing
// actions.
func MarkMatchAbandoned(ctx context.Context, pool *pgxpool.Pool, matchID uuid.UUID) error {
	return pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			UPDATE matches
			SET status = 'abandoned', end_time = NOW()
			WHERE id = $1 AND status = 'in_progress'
		`
		_, err := tx.Exec(ctx, q, matchID)
		return err
	})
}
