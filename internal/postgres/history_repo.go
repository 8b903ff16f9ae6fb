package postgres

import (
	"context"
	"strings"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

// HistoryRepository — чтение истории чата глазами конкретного пользователя.
type HistoryRepository struct {
	db *pgxpool.Pool
}

func NewHistoryRepository(db *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) CountVisible(ctx context.Context, chatID, viewerID int64) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, queryCountVisible, chatID, viewerID).Scan(&n); err != nil {
		return 0, mapPgError(err)
	}
	return n, nil
}

func (r *HistoryRepository) ListRange(ctx context.Context, chatID, viewerID int64, offset, limit int) ([]domain.Message, error) {
	return collectMessages(r.db.Query(ctx, queryListRange, chatID, viewerID, offset, limit))
}

func (r *HistoryRepository) ListBefore(ctx context.Context, chatID, viewerID, beforeID int64, limit int) ([]domain.Message, error) {
	return collectMessages(r.db.Query(ctx, queryListBefore, chatID, viewerID, beforeID, limit))
}

func (r *HistoryRepository) ListFrom(ctx context.Context, chatID, viewerID, fromID int64, limit int) ([]domain.Message, error) {
	return collectMessages(r.db.Query(ctx, queryListFrom, chatID, viewerID, fromID, limit))
}

func (r *HistoryRepository) Search(ctx context.Context, chatID, viewerID int64, query string, beforeID int64, limit int) ([]domain.Message, error) {
	pattern := "%" + escapeLike(query) + "%"
	return collectMessages(r.db.Query(ctx, querySearch, chatID, viewerID, pattern, beforeID, limit))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike экранирует метасимволы LIKE, чтобы запрос искался как подстрока.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
