package store

import (
	"context"
	"time"

	"CareChat/module/chat/model"
	"CareChat/tools/errs"
	"CareChat/tools/ids"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultOperationTimeout = 5 * time.Second

const schemaSQL = `
CREATE TABLE IF NOT EXISTS unread_notification (
	id                                  BIGINT PRIMARY KEY,
	user_id                             TEXT NOT NULL,
	conversation_id                     TEXT NOT NULL,
	conversation_vendor_id              TEXT NOT NULL,
	participant_vendor_id               TEXT NOT NULL,
	sent_at                             TIMESTAMPTZ NOT NULL,
	last_read_message_index_at_send_time BIGINT NOT NULL,
	unread_count                        BIGINT NOT NULL,
	is_read                             BOOLEAN NOT NULL DEFAULT FALSE,
	read_at                             TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS unread_notification_outstanding
	ON unread_notification (conversation_vendor_id, participant_vendor_id)
	WHERE NOT is_read;
`

const notificationColumns = `id, user_id, conversation_id, conversation_vendor_id, participant_vendor_id,
	sent_at, last_read_message_index_at_send_time, unread_count, is_read, read_at`

type PgStore struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewPgStore(pool *pgxpool.Pool, timeout time.Duration) *PgStore {
	if timeout <= 0 {
		timeout = defaultOperationTimeout
	}
	return &PgStore{pool: pool, timeout: timeout}
}

func (s *PgStore) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err := s.pool.Exec(ctx, schemaSQL)
	return errs.WrapMsg(err, "ensure unread_notification schema")
}

func (s *PgStore) Create(ctx context.Context, n *model.UnreadNotification) error {
	if n.ID == 0 {
		n.ID = ids.Generate()
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err := s.pool.Exec(ctx, `INSERT INTO unread_notification (`+notificationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`,
		n.ID, n.UserID, n.ConversationID, n.ConversationVendorID, n.ParticipantVendorID,
		n.SentAt, n.LastReadMessageIndexAtSendTime, n.UnreadCount, n.IsRead, n.ReadAt)
	return errs.WrapMsg(err, "insert unread notification", "id", n.ID)
}

func (s *PgStore) RetireUpTo(ctx context.Context, conversationVendorID, identity string, upTo int64, at time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	tag, err := s.pool.Exec(ctx, `UPDATE unread_notification SET is_read = TRUE, read_at = $4
		WHERE conversation_vendor_id = $1 AND participant_vendor_id = $2
			AND NOT is_read AND last_read_message_index_at_send_time <= $3`,
		conversationVendorID, identity, upTo, at)
	if err != nil {
		return 0, errs.WrapMsg(err, "retire unread notifications", "conversation", conversationVendorID, "identity", identity)
	}
	return tag.RowsAffected(), nil
}

func (s *PgStore) ListOutstanding(ctx context.Context, conversationVendorID, identity string) ([]model.UnreadNotification, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	rows, err := s.pool.Query(ctx, `SELECT `+notificationColumns+` FROM unread_notification
		WHERE conversation_vendor_id = $1 AND participant_vendor_id = $2 AND NOT is_read
		ORDER BY sent_at DESC`, conversationVendorID, identity)
	if err != nil {
		return nil, errs.WrapMsg(err, "list unread notifications")
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.UnreadNotification, error) {
		var n model.UnreadNotification
		err := row.Scan(&n.ID, &n.UserID, &n.ConversationID, &n.ConversationVendorID, &n.ParticipantVendorID,
			&n.SentAt, &n.LastReadMessageIndexAtSendTime, &n.UnreadCount, &n.IsRead, &n.ReadAt)
		return n, err
	})
	return out, errs.WrapMsg(err, "scan unread notifications")
}
