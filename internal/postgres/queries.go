package postgres

const messageColumns = `m.id, m.chat_id, m.sender_id, m.sender_name, m.content, m.message_type,
	m.image_url, m.original_image_url, m.file_url, m.file_name, m.file_size, m.file_mime,
	m.reply_to_id, m.created_at, m.delivered_at, m.edited_at`

// notBlocked скрывает авторов, которых заблокировал зритель ($2).
const notBlocked = `NOT EXISTS (
		SELECT 1 FROM user_blocks b WHERE b.blocker_id = $2 AND b.blocked_id = m.sender_id
	)`

// messages
const (
	queryCreateMessage = `
		INSERT INTO messages AS m (chat_id, sender_id, sender_name, content, message_type,
			image_url, original_image_url, file_url, file_name, file_size, file_mime,
			reply_to_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + messageColumns

	queryGetMessage      = `SELECT ` + messageColumns + ` FROM messages m WHERE m.id = $1`
	queryGetManyMessages = `SELECT ` + messageColumns + ` FROM messages m WHERE m.id = ANY($1)`

	queryLockMessageMedia = `
		SELECT image_url, original_image_url, file_url
		FROM messages
		WHERE id = $1 AND sender_id = $2
		FOR UPDATE`

	queryUpdateMessage = `
		UPDATE messages AS m
		SET content = $3, message_type = $4, image_url = $5, original_image_url = $6, edited_at = $7
		WHERE m.id = $1 AND m.sender_id = $2
		RETURNING ` + messageColumns

	queryDeleteMessage = `
		DELETE FROM messages AS m
		WHERE m.id = $1 AND m.sender_id = $2
		RETURNING ` + messageColumns

	queryDeleteChatMessages = `
		DELETE FROM messages
		WHERE chat_id = $1
		RETURNING image_url, original_image_url, file_url`

	// из переданных ссылок оставляет те, на которые больше никто не ссылается
	queryOrphanMedia = `
		SELECT u FROM unnest($1::text[]) AS u
		WHERE NOT EXISTS (
			SELECT 1 FROM messages
			WHERE image_url = u OR original_image_url = u OR file_url = u
		)`

	queryInsertForward = `
		INSERT INTO message_forwards (message_id, original_chat_id, original_message_id, forwarded_by, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	queryListForwards = `
		SELECT message_id, original_chat_id, original_message_id, forwarded_by, created_at
		FROM message_forwards
		WHERE message_id = ANY($1)`
)

// receipts
const (
	// xmax = 0 только у только что вставленной строки
	queryMarkRead = `
		INSERT INTO message_reads (message_id, reader_id, read_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (message_id, reader_id) DO UPDATE SET read_at = EXCLUDED.read_at
		RETURNING (xmax = 0)`

	queryMarkAllRead = `
		WITH unread AS (
			SELECT m.id, m.sender_id
			FROM messages m
			WHERE m.chat_id = $1 AND m.sender_id <> $2
			  AND NOT EXISTS (
				SELECT 1 FROM message_reads r WHERE r.message_id = m.id AND r.reader_id = $2
			  )
		), ins AS (
			INSERT INTO message_reads (message_id, reader_id, read_at)
			SELECT id, $2, $3 FROM unread
			ON CONFLICT (message_id, reader_id) DO NOTHING
			RETURNING message_id
		)
		SELECT u.sender_id, array_agg(u.id ORDER BY u.id)
		FROM unread u
		JOIN ins ON ins.message_id = u.id
		GROUP BY u.sender_id
		ORDER BY u.sender_id`

	queryReadTimes = `
		SELECT message_id, read_at
		FROM message_reads
		WHERE reader_id = $1 AND message_id = ANY($2)`
)

// reactions
const (
	queryAddReaction = `
		INSERT INTO message_reactions (message_id, user_id, reaction, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (message_id, user_id, reaction) DO UPDATE SET created_at = EXCLUDED.created_at`

	queryRemoveReaction = `
		DELETE FROM message_reactions
		WHERE message_id = $1 AND user_id = $2 AND reaction = $3`

	queryListReactions = `
		SELECT message_id, user_id, reaction, created_at
		FROM message_reactions
		WHERE message_id = ANY($1)
		ORDER BY message_id, created_at, user_id, reaction`
)

// pins
const (
	// транзакционная блокировка на чат сериализует закрепления в одном чате
	queryLockChatPins = `SELECT pg_advisory_xact_lock(hashtextextended('pinned_messages:' || $1::bigint::text, 0))`

	queryMessageChat = `SELECT chat_id FROM messages WHERE id = $1`
	queryPinExists   = `SELECT EXISTS(SELECT 1 FROM pinned_messages WHERE chat_id = $1 AND message_id = $2)`
	queryCountPins   = `SELECT COUNT(*) FROM pinned_messages WHERE chat_id = $1`

	queryInsertPin = `
		INSERT INTO pinned_messages (chat_id, message_id, pinned_by, pinned_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING`

	queryDeletePin = `DELETE FROM pinned_messages WHERE chat_id = $1 AND message_id = $2`

	queryListPins = `
		SELECT chat_id, message_id, pinned_by, pinned_at
		FROM pinned_messages
		WHERE chat_id = $1
		ORDER BY message_id`

	queryPinnedAmong = `SELECT message_id FROM pinned_messages WHERE message_id = ANY($1)`
)

// history
const (
	queryCountVisible = `
		SELECT COUNT(*) FROM messages m
		WHERE m.chat_id = $1 AND ` + notBlocked

	queryListRange = `
		SELECT ` + messageColumns + ` FROM messages m
		WHERE m.chat_id = $1 AND ` + notBlocked + `
		ORDER BY m.id ASC
		OFFSET $3 LIMIT $4`

	queryListBefore = `
		SELECT ` + messageColumns + ` FROM messages m
		WHERE m.chat_id = $1 AND ` + notBlocked + ` AND m.id < $3
		ORDER BY m.id DESC
		LIMIT $4`

	queryListFrom = `
		SELECT ` + messageColumns + ` FROM messages m
		WHERE m.chat_id = $1 AND ` + notBlocked + ` AND m.id >= $3
		ORDER BY m.id ASC
		LIMIT $4`

	querySearch = `
		SELECT ` + messageColumns + ` FROM messages m
		WHERE m.chat_id = $1 AND ` + notBlocked + `
		  AND m.content ILIKE $3 ESCAPE '\'
		  AND ($4::bigint = 0 OR m.id < $4)
		ORDER BY m.id DESC
		LIMIT $5`
)

// membership / moderation
const (
	queryIsMember    = `SELECT EXISTS(SELECT 1 FROM chat_users WHERE chat_id = $1 AND user_id = $2)`
	queryListMembers = `SELECT user_id FROM chat_users WHERE chat_id = $1 ORDER BY user_id`
	queryMemberRole  = `SELECT role FROM chat_users WHERE chat_id = $1 AND user_id = $2`

	queryUpsertMember = `
		INSERT INTO chat_users (chat_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (chat_id, user_id) DO UPDATE SET role = EXCLUDED.role`

	queryIsBlocked = `SELECT EXISTS(SELECT 1 FROM user_blocks WHERE blocker_id = $1 AND blocked_id = $2)`

	queryBlockedAmong = `
		SELECT u FROM unnest($2::bigint[]) AS u
		WHERE EXISTS (
			SELECT 1 FROM user_blocks b
			WHERE (b.blocker_id = u AND b.blocked_id = $1)
			   OR (b.blocker_id = $1 AND b.blocked_id = u)
		)
		ORDER BY u`

	queryInsertBlock = `
		INSERT INTO user_blocks (blocker_id, blocked_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`
)
