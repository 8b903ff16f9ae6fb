package postgres

import (
	"context"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"
)

type ReactionRepository struct {
	db *pgxpool.Pool
}

func NewReactionRepository(db *pgxpool.Pool) *ReactionRepository {
	return &ReactionRepository{db: db}
}

// Add идемпотентен: повторная реакция не создаёт строку, а обновляет created_at.
func (r *ReactionRepository) Add(ctx context.Context, rc domain.Reaction) error {
	_, err := r.db.Exec(ctx, queryAddReaction, rc.MessageID, rc.UserID, rc.Reaction, rc.CreatedAt)
	return mapPgError(err)
}

func (r *ReactionRepository) Remove(ctx context.Context, messageID, userID int64, reaction string) (bool, error) {
	tag, err := r.db.Exec(ctx, queryRemoveReaction, messageID, userID, reaction)
	if err != nil {
		return false, mapPgError(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ReactionRepository) ListFor(ctx context.Context, ids []int64) (map[int64][]domain.Reaction, error) {
	if len(ids) == 0 {
		return map[int64][]domain.Reaction{}, nil
	}
	rows, err := r.db.Query(ctx, queryListReactions, ids)
	if err != nil {
		return nil, mapPgError(err)
	}
	list, err := pgx.CollectRows(rows, pgx.RowToStructByName[domain.Reaction])
	if err != nil {
		return nil, mapPgError(err)
	}
	return lo.GroupBy(list, func(rc domain.Reaction) int64 { return rc.MessageID }), nil
}
