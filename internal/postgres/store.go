package postgres

import "github.com/jackc/pgx/v5/pgxpool"

// Store собирает все репозитории над одним пулом.
type Store struct {
	Messages  *MessageRepository
	Receipts  *ReceiptRepository
	Reactions *ReactionRepository
	Pins      *PinRepository
	History   *HistoryRepository
	Members   *MembershipRepository
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{
		Messages:  NewMessageRepository(db),
		Receipts:  NewReceiptRepository(db),
		Reactions: NewReactionRepository(db),
		Pins:      NewPinRepository(db),
		History:   NewHistoryRepository(db),
		Members:   NewMembershipRepository(db),
	}
}
