package payments

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CallbackEvent is the audit trail of gateway callbacks. One row per
// processed (session, transaction) pair; replays are tolerated at insert.
type CallbackEvent struct {
	ID            string `gorm:"type:char(36);primaryKey"`
	SessionID     string `gorm:"type:varchar(64);not null;uniqueIndex:ux_callback_events_session_trans,priority:1"`
	TransactionID string `gorm:"type:varchar(128);not null;uniqueIndex:ux_callback_events_session_trans,priority:2"`
	OrderID       string `gorm:"type:char(36);not null;index:ix_callback_events_order_id"`
	Outcome       string `gorm:"type:varchar(32);not null"`
	Reason        string `gorm:"type:varchar(64)"`

	PayloadJSON datatypes.JSON `gorm:"type:json"`

	ReceivedAt time.Time `gorm:"type:datetime(3);not null"`
}

func (CallbackEvent) TableName() string { return "callback_events" }

type EventLog struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewEventLog(db *gorm.DB, logger *slog.Logger) *EventLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventLog{db: db, logger: logger}
}

// Record appends a best-effort audit row. A replayed callback hits the
// unique (session, transaction) key and is dropped silently; correctness
// never depends on this table.
func (l *EventLog) Record(ctx context.Context, sessionID, transID, orderID, outcome, reason string, payload map[string]string) {
	raw, _ := json.Marshal(payload)

	ev := CallbackEvent{
		ID:            uuid.NewString(),
		SessionID:     sessionID,
		TransactionID: transID,
		OrderID:       orderID,
		Outcome:       outcome,
		Reason:        reason,
		PayloadJSON:   datatypes.JSON(raw),
		ReceivedAt:    time.Now(),
	}

	if err := l.db.WithContext(ctx).Create(&ev).Error; err != nil {
		if isDup(err) {
			return
		}
		l.logger.WarnContext(ctx, "callback audit write failed",
			"session_id", sessionID, "order_id", orderID, "err", err)
	}
}

func isDup(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
