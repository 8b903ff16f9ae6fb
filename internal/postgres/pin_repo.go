package postgres

import (
	"context"
	"errors"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PinRepository struct {
	db *pgxpool.Pool
}

func NewPinRepository(db *pgxpool.Pool) *PinRepository {
	return &PinRepository{db: db}
}

// Pin защищён от гонок по потолку закреплений.
// Параллельные Pin в одном чате ждут advisory-блокировку, поэтому счётчик не пробивается.
func (r *PinRepository) Pin(ctx context.Context, p domain.Pin, max int) (bool, error) {
	var created bool
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, queryLockChatPins, p.ChatID); err != nil {
			return mapPgError(err)
		}

		var chatID int64
		if err := tx.QueryRow(ctx, queryMessageChat, p.MessageID).Scan(&chatID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrMessageNotFound
			}
			return mapPgError(err)
		}
		if chatID != p.ChatID {
			return domain.ErrMessageNotFound
		}

		var exists bool
		if err := tx.QueryRow(ctx, queryPinExists, p.ChatID, p.MessageID).Scan(&exists); err != nil {
			return mapPgError(err)
		}
		if exists {
			return nil
		}

		var count int
		if err := tx.QueryRow(ctx, queryCountPins, p.ChatID).Scan(&count); err != nil {
			return mapPgError(err)
		}
		if count >= max {
			return domain.ErrPinLimit
		}

		tag, err := tx.Exec(ctx, queryInsertPin, p.ChatID, p.MessageID, p.PinnedBy, p.PinnedAt)
		if err != nil {
			return mapPgError(err)
		}
		created = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (r *PinRepository) Unpin(ctx context.Context, chatID, messageID int64) (bool, error) {
	tag, err := r.db.Exec(ctx, queryDeletePin, chatID, messageID)
	if err != nil {
		return false, mapPgError(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PinRepository) List(ctx context.Context, chatID int64) ([]domain.Pin, error) {
	rows, err := r.db.Query(ctx, queryListPins, chatID)
	if err != nil {
		return nil, mapPgError(err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[domain.Pin])
	if err != nil {
		return nil, mapPgError(err)
	}
	return out, nil
}

func (r *PinRepository) PinnedAmong(ctx context.Context, ids []int64) (map[int64]bool, error) {
	out := make(map[int64]bool)
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.Query(ctx, queryPinnedAmong, ids)
	if err != nil {
		return nil, mapPgError(err)
	}
	pinned, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, mapPgError(err)
	}
	for _, id := range pinned {
		out[id] = true
	}
	return out, nil
}
