package orders

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Store struct{ db *gorm.DB }

func NewStore(db *gorm.DB) *Store { return &Store{db: db} }

// DB returns the underlying database connection for direct queries.
func (s *Store) DB() *gorm.DB { return s.db }

// Create persists the order and its lines in one transaction. Nothing may
// reach the gateway before this commit succeeds.
func (s *Store) Create(ctx context.Context, o *Order, items []OrderItem) error {
	now := time.Now()
	o.CreatedAt = now
	o.UpdatedAt = now

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(o).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].OrderID = o.ID
			items[i].CreatedAt = now
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) GetByID(ctx context.Context, id string) (Order, error) {
	var o Order
	err := s.db.WithContext(ctx).First(&o, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Order{}, ErrNotFound
	}
	return o, err
}

func (s *Store) GetWithItems(ctx context.Context, id string) (Order, []OrderItem, error) {
	o, err := s.GetByID(ctx, id)
	if err != nil {
		return Order{}, nil, err
	}
	var items []OrderItem
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&items, "order_id = ?", id).Error; err != nil {
		return Order{}, nil, err
	}
	return o, items, nil
}

// GetBySessionID looks up the order owning a gateway session. No fallback
// to "most recent pending order"; an unknown session is ErrNotFound.
func (s *Store) GetBySessionID(ctx context.Context, sessionID string) (Order, error) {
	var o Order
	err := s.db.WithContext(ctx).First(&o, "gateway_session_id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Order{}, ErrNotFound
	}
	return o, err
}

// AssignSession stores the gateway session id on a pending order that has
// no session yet. Conditional so a stale re-initiation cannot overwrite a
// live session.
func (s *Store) AssignSession(ctx context.Context, orderID, sessionID string) error {
	res := s.db.WithContext(ctx).Model(&Order{}).
		Where("id = ? AND status = ? AND gateway_session_id IS NULL", orderID, StatusPending).
		Updates(map[string]any{
			"gateway_session_id": sessionID,
			"updated_at":         time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return ErrNotPending
	}
	return nil
}

// ClearSession detaches a dead gateway session from a pending order so a
// resumed initiation can attach a fresh one.
func (s *Store) ClearSession(ctx context.Context, orderID string) error {
	return s.db.WithContext(ctx).Model(&Order{}).
		Where("id = ? AND status = ?", orderID, StatusPending).
		Updates(map[string]any{
			"gateway_session_id": nil,
			"updated_at":         time.Now(),
		}).Error
}

// MarkPaid is the compare-and-swap terminal transition. It reports whether
// this caller won the pending row; a concurrent duplicate reconciliation
// observes won=false and must re-read.
func (s *Store) MarkPaid(ctx context.Context, orderID, transID string) (won bool, err error) {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&Order{}).
		Where("id = ? AND status = ?", orderID, StatusPending).
		Updates(map[string]any{
			"status":                 StatusPaid,
			"payment_status":         PaymentSuccess,
			"gateway_transaction_id": transID,
			"fail_reason":            nil,
			"paid_at":                &now,
			"updated_at":             now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkFailed transitions pending → failed, keeping a reason code for
// observability. transID may be empty when the callback never carried one.
func (s *Store) MarkFailed(ctx context.Context, orderID, transID, reason string) (won bool, err error) {
	updates := map[string]any{
		"status":         StatusFailed,
		"payment_status": PaymentFailed,
		"fail_reason":    reason,
		"updated_at":     time.Now(),
	}
	if transID != "" {
		updates["gateway_transaction_id"] = transID
	}
	res := s.db.WithContext(ctx).Model(&Order{}).
		Where("id = ? AND status = ?", orderID, StatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Cancel is the orchestrator-driven abort path; never reached via the
// gateway callback.
func (s *Store) Cancel(ctx context.Context, orderID string) (won bool, err error) {
	res := s.db.WithContext(ctx).Model(&Order{}).
		Where("id = ? AND status = ?", orderID, StatusPending).
		Updates(map[string]any{
			"status":     StatusCancelled,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
