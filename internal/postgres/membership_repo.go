package postgres

import (
	"context"
	"errors"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MembershipRepository читает участников и блокировки. Управление ими живёт
// в соседнем сервисе, здесь только Upsert/Block для локальной разработки и тестов.
type MembershipRepository struct {
	db *pgxpool.Pool
}

func NewMembershipRepository(db *pgxpool.Pool) *MembershipRepository {
	return &MembershipRepository{db: db}
}

func (r *MembershipRepository) IsMember(ctx context.Context, chatID, userID int64) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, queryIsMember, chatID, userID).Scan(&exists); err != nil {
		return false, mapPgError(err)
	}
	return exists, nil
}

func (r *MembershipRepository) ListMembers(ctx context.Context, chatID int64) ([]int64, error) {
	rows, err := r.db.Query(ctx, queryListMembers, chatID)
	if err != nil {
		return nil, mapPgError(err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, mapPgError(err)
	}
	return ids, nil
}

func (r *MembershipRepository) Role(ctx context.Context, chatID, userID int64) (domain.Role, error) {
	var role string
	if err := r.db.QueryRow(ctx, queryMemberRole, chatID, userID).Scan(&role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RoleNone, nil
		}
		return domain.RoleNone, mapPgError(err)
	}
	return domain.Role(role), nil
}

func (r *MembershipRepository) Upsert(ctx context.Context, chatID, userID int64, role domain.Role) error {
	if role == domain.RoleNone {
		role = domain.RoleMember
	}
	_, err := r.db.Exec(ctx, queryUpsertMember, chatID, userID, string(role))
	return mapPgError(err)
}

func (r *MembershipRepository) IsBlocked(ctx context.Context, viewerID, authorID int64) (bool, error) {
	var blocked bool
	if err := r.db.QueryRow(ctx, queryIsBlocked, viewerID, authorID).Scan(&blocked); err != nil {
		return false, mapPgError(err)
	}
	return blocked, nil
}

func (r *MembershipRepository) BlockedAmong(ctx context.Context, authorID int64, userIDs []int64) ([]int64, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, queryBlockedAmong, authorID, userIDs)
	if err != nil {
		return nil, mapPgError(err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, mapPgError(err)
	}
	return ids, nil
}

func (r *MembershipRepository) Block(ctx context.Context, blockerID, blockedID int64) error {
	_, err := r.db.Exec(ctx, queryInsertBlock, blockerID, blockedID)
	return mapPgError(err)
}
