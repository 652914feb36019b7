package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"greybackend/config"
	"greybackend/internal/model"
)

// SQLDeliveryLogStore persists delivery records through database/sql. It
// serves the MySQL deployment the admin backend historically ran on and a
// file-backed SQLite store for local runs. sent_at is kept as unix millis so
// both dialects share one set of queries.
type SQLDeliveryLogStore struct {
	db      *sql.DB
	dialect string
	now     func() time.Time
}

// OpenSQLDeliveryLogStore opens the store described by cfg ("mysql" or "sqlite").
func OpenSQLDeliveryLogStore(ctx context.Context, cfg config.AuditConfig) (*SQLDeliveryLogStore, error) {
	var (
		db  *sql.DB
		err error
	)
	switch cfg.Driver {
	case "mysql":
		mc := mysql.NewConfig()
		mc.User = cfg.User
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
		mc.DBName = cfg.Name
		db, err = sql.Open("mysql", mc.FormatDSN())
		if err == nil {
			db.SetMaxOpenConns(10)
			db.SetConnMaxIdleTime(time.Minute)
		}
	case "sqlite":
		path := strings.TrimSpace(cfg.Path)
		if path == "" {
			path = ":memory:"
		}
		db, err = sql.Open("sqlite", path)
		if err == nil {
			db.SetMaxOpenConns(1)
		}
	default:
		return nil, fmt.Errorf("unsupported audit driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}
	return NewSQLDeliveryLogStore(db, cfg.Driver), nil
}

func NewSQLDeliveryLogStore(db *sql.DB, dialect string) *SQLDeliveryLogStore {
	return &SQLDeliveryLogStore{db: db, dialect: dialect, now: time.Now}
}

func (s *SQLDeliveryLogStore) Close() error {
	return s.db.Close()
}

func (s *SQLDeliveryLogStore) EnsureSchema(ctx context.Context) error {
	idColumn := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.dialect == "mysql" {
		idColumn = "id BIGINT AUTO_INCREMENT PRIMARY KEY"
	}
	stmt := `CREATE TABLE IF NOT EXISTS sent_emails (
        ` + idColumn + `,
        sender_id BIGINT NULL,
        recipients TEXT,
        subject TEXT,
        body TEXT,
        attachments TEXT,
        status VARCHAR(16) NOT NULL,
        error_message TEXT NULL,
        sent_at BIGINT NOT NULL
    )`
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create sent_emails: %w", err)
	}
	return nil
}

func (s *SQLDeliveryLogStore) Insert(ctx context.Context, rec *model.DeliveryRecord) error {
	sentAt := s.now().UTC().Truncate(time.Millisecond)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sent_emails (sender_id, recipients, subject, body, attachments, status, error_message, sent_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SenderID,
		rec.Recipients,
		rec.Subject,
		rec.Body,
		rec.Attachments,
		string(rec.Status),
		rec.ErrorMessage,
		sentAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert delivery record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read delivery record id: %w", err)
	}
	rec.ID = id
	rec.SentAt = sentAt
	return nil
}

func (s *SQLDeliveryLogStore) ListRecent(ctx context.Context, limit int) ([]model.DeliveryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sender_id, recipients, subject, body, attachments, status, error_message, sent_at
         FROM sent_emails
         ORDER BY sent_at DESC, id DESC
         LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sent_emails: %w", err)
	}
	defer rows.Close()

	var out []model.DeliveryRecord
	for rows.Next() {
		var (
			rec      model.DeliveryRecord
			senderID sql.NullInt64
			errMsg   sql.NullString
			status   string
			sentAtMs int64
		)
		if err := rows.Scan(&rec.ID, &senderID, &rec.Recipients, &rec.Subject, &rec.Body,
			&rec.Attachments, &status, &errMsg, &sentAtMs); err != nil {
			return nil, fmt.Errorf("scan delivery record: %w", err)
		}
		if senderID.Valid {
			id := senderID.Int64
			rec.SenderID = &id
		}
		if errMsg.Valid {
			msg := errMsg.String
			rec.ErrorMessage = &msg
		}
		rec.Status = model.DeliveryStatus(status)
		rec.SentAt = time.UnixMilli(sentAtMs).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}
