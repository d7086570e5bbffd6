package orders

import (
	"time"

	"gorm.io/datatypes"
)

// Order lifecycle. Terminal states are permanent audit records; rows are
// never deleted.
const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Gateway-level outcome, kept separate from the order lifecycle so
// fulfilment state is not conflated with payment state.
const (
	PaymentNone    = "none"
	PaymentSuccess = "success"
	PaymentFailed  = "failed"
)

type Order struct {
	ID     string `gorm:"type:char(36);primaryKey"`
	Status string `gorm:"type:varchar(32);not null;index:ix_orders_status"`

	// TotalAmount is in the store currency unit (toman). Conversion to the
	// gateway's minor unit happens at the gateway call site.
	TotalAmount int64 `gorm:"not null"`

	PaymentStatus string `gorm:"type:varchar(32);not null"`

	// GatewaySessionID (id_get) is assigned at initiate time; absent until
	// initiate succeeds. At most one active session per order.
	GatewaySessionID *string `gorm:"type:varchar(64);uniqueIndex:ux_orders_gateway_session_id"`

	// GatewayTransactionID (trans_id) arrives only on the callback redirect.
	GatewayTransactionID *string `gorm:"type:varchar(128)"`

	FailReason *string `gorm:"type:varchar(64)"`

	ShippingAddressJSON datatypes.JSON `gorm:"type:json"`

	CreatedAt time.Time  `gorm:"type:datetime(3);not null"`
	UpdatedAt time.Time  `gorm:"type:datetime(3);not null"`
	PaidAt    *time.Time `gorm:"type:datetime(3)"`
}

func (Order) TableName() string { return "orders" }

// Terminal reports whether the order left pending.
func (o Order) Terminal() bool { return o.Status != StatusPending }

type OrderItem struct {
	ID        string `gorm:"type:char(36);primaryKey"`
	OrderID   string `gorm:"type:char(36);not null;index:ix_order_items_order_id"`
	ProductID string `gorm:"type:varchar(64);not null"`
	Quantity  int    `gorm:"not null"`

	// UnitPrice is captured at checkout time; later catalog price changes
	// never touch an in-flight order.
	UnitPrice int64 `gorm:"not null"`
	LineTotal int64 `gorm:"not null"`

	CreatedAt time.Time `gorm:"type:datetime(3);not null"`
}

func (OrderItem) TableName() string { return "order_items" }
