package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"
)

type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

func scanMessage(row pgx.Row) (domain.Message, error) {
	var (
		m    domain.Message
		kind string
	)
	err := row.Scan(
		&m.ID,
		&m.ChatID,
		&m.SenderID,
		&m.SenderName,
		&m.Content,
		&kind,
		&m.ImageURL,
		&m.OriginalImageURL,
		&m.FileURL,
		&m.FileName,
		&m.FileSize,
		&m.FileMime,
		&m.ReplyToID,
		&m.CreatedAt,
		&m.DeliveredAt,
		&m.EditedAt,
	)
	m.Kind = domain.MessageKind(kind)
	return m, err
}

func collectMessages(rows pgx.Rows, err error) ([]domain.Message, error) {
	if err != nil {
		return nil, mapPgError(err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Message, error) {
		return scanMessage(row)
	})
	if err != nil {
		return nil, mapPgError(err)
	}
	return out, nil
}

func getMessage(ctx context.Context, q querier, sql string, args ...any) (*domain.Message, error) {
	m, err := scanMessage(q.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, mapPgError(err)
	}
	return &m, nil
}

func (r *MessageRepository) Create(ctx context.Context, m *domain.Message) (*domain.Message, error) {
	return createMessage(ctx, r.db, m)
}

func createMessage(ctx context.Context, q querier, m *domain.Message) (*domain.Message, error) {
	return getMessage(ctx, q, queryCreateMessage,
		m.ChatID,
		m.SenderID,
		m.SenderName,
		m.Content,
		string(m.Kind),
		m.ImageURL,
		m.OriginalImageURL,
		m.FileURL,
		m.FileName,
		m.FileSize,
		m.FileMime,
		m.ReplyToID,
	)
}

func (r *MessageRepository) Get(ctx context.Context, id int64) (*domain.Message, error) {
	return getMessage(ctx, r.db, queryGetMessage, id)
}

func (r *MessageRepository) GetMany(ctx context.Context, ids []int64) (map[int64]domain.Message, error) {
	if len(ids) == 0 {
		return map[int64]domain.Message{}, nil
	}
	list, err := collectMessages(r.db.Query(ctx, queryGetManyMessages, ids))
	if err != nil {
		return nil, err
	}
	return lo.KeyBy(list, func(m domain.Message) int64 { return m.ID }), nil
}

func (r *MessageRepository) Update(ctx context.Context, m *domain.Message) (*domain.Message, []string, error) {
	var (
		out     *domain.Message
		orphans []string
	)
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		var old domain.Message
		// блокируем строку до конца транзакции, чтобы параллельное удаление подождало
		err := tx.QueryRow(ctx, queryLockMessageMedia, m.ID, m.SenderID).
			Scan(&old.ImageURL, &old.OriginalImageURL, &old.FileURL)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrMessageNotFound
			}
			return mapPgError(err)
		}

		out, err = getMessage(ctx, tx, queryUpdateMessage,
			m.ID, m.SenderID, m.Content, string(m.Kind), m.ImageURL, m.OriginalImageURL, m.EditedAt)
		if err != nil {
			return err
		}

		orphans, err = orphanMedia(ctx, tx, lo.Without(old.MediaURLs(), out.MediaURLs()...))
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return out, orphans, nil
}

func (r *MessageRepository) Delete(ctx context.Context, id, senderID int64) (*domain.Message, []string, error) {
	var (
		out     *domain.Message
		orphans []string
	)
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		var err error
		// второй параллельный DELETE дождётся блокировки строки и не найдёт её
		out, err = getMessage(ctx, tx, queryDeleteMessage, id, senderID)
		if err != nil {
			return err
		}
		orphans, err = orphanMedia(ctx, tx, out.MediaURLs())
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return out, orphans, nil
}

func (r *MessageRepository) DeleteByChat(ctx context.Context, chatID int64) (int, []string, error) {
	var (
		n       int
		orphans []string
	)
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, queryDeleteChatMessages, chatID)
		if err != nil {
			return mapPgError(err)
		}
		var urls []string
		for rows.Next() {
			var m domain.Message
			if err := rows.Scan(&m.ImageURL, &m.OriginalImageURL, &m.FileURL); err != nil {
				rows.Close()
				return mapPgError(err)
			}
			urls = append(urls, m.MediaURLs()...)
			n++
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return mapPgError(err)
		}

		orphans, err = orphanMedia(ctx, tx, lo.Uniq(urls))
		return err
	})
	if err != nil {
		return 0, nil, err
	}
	return n, orphans, nil
}

func orphanMedia(ctx context.Context, q querier, urls []string) ([]string, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	rows, err := q.Query(ctx, queryOrphanMedia, urls)
	if err != nil {
		return nil, mapPgError(err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, mapPgError(err)
	}
	return out, nil
}

func (r *MessageRepository) Forward(ctx context.Context, src *domain.Message, by domain.Identity, targets []int64) ([]domain.Message, error) {
	out := make([]domain.Message, 0, len(targets))
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		for _, chatID := range targets {
			m, err := createMessage(ctx, tx, &domain.Message{
				ChatID:           chatID,
				SenderID:         by.UserID,
				SenderName:       by.DisplayName,
				Content:          src.Content,
				Kind:             src.Kind,
				ImageURL:         src.ImageURL,
				OriginalImageURL: src.OriginalImageURL,
				FileURL:          src.FileURL,
				FileName:         src.FileName,
				FileSize:         src.FileSize,
				FileMime:         src.FileMime,
			})
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, queryInsertForward, m.ID, src.ChatID, src.ID, by.UserID, m.CreatedAt); err != nil {
				return mapPgError(err)
			}
			out = append(out, *m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MessageRepository) Forwards(ctx context.Context, ids []int64) (map[int64]domain.ForwardLink, error) {
	if len(ids) == 0 {
		return map[int64]domain.ForwardLink{}, nil
	}
	rows, err := r.db.Query(ctx, queryListForwards, ids)
	if err != nil {
		return nil, mapPgError(err)
	}
	links, err := pgx.CollectRows(rows, pgx.RowToStructByName[domain.ForwardLink])
	if err != nil {
		return nil, mapPgError(err)
	}
	return lo.KeyBy(links, func(f domain.ForwardLink) int64 { return f.MessageID }), nil
}

// ReceiptRepository — отметки о прочтении.
type ReceiptRepository struct {
	db *pgxpool.Pool
}

func NewReceiptRepository(db *pgxpool.Pool) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

func (r *ReceiptRepository) MarkRead(ctx context.Context, messageID, readerID int64, at time.Time) (bool, error) {
	var first bool
	if err := r.db.QueryRow(ctx, queryMarkRead, messageID, readerID, at).Scan(&first); err != nil {
		return false, mapPgError(err)
	}
	return first, nil
}

func (r *ReceiptRepository) MarkAllRead(ctx context.Context, chatID, readerID int64, at time.Time) ([]domain.SenderReadSummary, error) {
	rows, err := r.db.Query(ctx, queryMarkAllRead, chatID, readerID, at)
	if err != nil {
		return nil, mapPgError(err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.SenderReadSummary, error) {
		var s domain.SenderReadSummary
		err := row.Scan(&s.SenderID, &s.MessageIDs)
		return s, err
	})
	if err != nil {
		return nil, mapPgError(err)
	}
	return out, nil
}

func (r *ReceiptRepository) ReadTimes(ctx context.Context, readerID int64, ids []int64) (map[int64]time.Time, error) {
	out := make(map[int64]time.Time, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.Query(ctx, queryReadTimes, readerID, ids)
	if err != nil {
		return nil, mapPgError(err)
	}
	receipts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ReadReceipt, error) {
		rr := domain.ReadReceipt{ReaderID: readerID}
		err := row.Scan(&rr.MessageID, &rr.ReadAt)
		return rr, err
	})
	if err != nil {
		return nil, mapPgError(err)
	}
	for _, rr := range receipts {
		out[rr.MessageID] = rr.ReadAt
	}
	return out, nil
}
