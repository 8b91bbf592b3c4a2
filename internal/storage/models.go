package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// TriggerEvent is the audit record of one remediation: the sustained
// violation that fired, the processes terminated, and whether the alert went
// out. Only trigger events are persisted; raw metric samples never are.
type TriggerEvent struct {
	ID          int64
	TriggeredAt time.Time
	Currency    string
	Delta       decimal.Decimal
	Bound       decimal.Decimal
	HeldSeconds int64
	Process     string
	KilledPIDs  []int64
	FailedPIDs  []int64
	Notified    bool
	CreatedAt   time.Time
}
