package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type InternalOrderStatus string

const (
	InternalOrderStatusDraft        InternalOrderStatus = "draft"
	InternalOrderStatusRequested    InternalOrderStatus = "requested"
	InternalOrderStatusApproved     InternalOrderStatus = "approved"
	InternalOrderStatusScheduled    InternalOrderStatus = "scheduled"
	InternalOrderStatusInProduction InternalOrderStatus = "in_production"
	InternalOrderStatusQualityCheck InternalOrderStatus = "quality_check"
	InternalOrderStatusReady        InternalOrderStatus = "ready"
	InternalOrderStatusCompleted    InternalOrderStatus = "completed"
	InternalOrderStatusDelivered    InternalOrderStatus = "delivered"
	InternalOrderStatusCancelled    InternalOrderStatus = "cancelled"
)

func (e *InternalOrderStatus) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = InternalOrderStatus(s)
	case string:
		*e = InternalOrderStatus(s)
	default:
		return fmt.Errorf("unsupported scan type for InternalOrderStatus: %T", src)
	}
	return nil
}

// AllInternalOrderStatusValues lists every status in lifecycle order.
func AllInternalOrderStatusValues() []InternalOrderStatus {
	return []InternalOrderStatus{
		InternalOrderStatusDraft,
		InternalOrderStatusRequested,
		InternalOrderStatusApproved,
		InternalOrderStatusScheduled,
		InternalOrderStatusInProduction,
		InternalOrderStatusQualityCheck,
		InternalOrderStatusReady,
		InternalOrderStatusCompleted,
		InternalOrderStatusDelivered,
		InternalOrderStatusCancelled,
	}
}

func (e InternalOrderStatus) Valid() bool {
	switch e {
	case InternalOrderStatusDraft,
		InternalOrderStatusRequested,
		InternalOrderStatusApproved,
		InternalOrderStatusScheduled,
		InternalOrderStatusInProduction,
		InternalOrderStatusQualityCheck,
		InternalOrderStatusReady,
		InternalOrderStatusCompleted,
		InternalOrderStatusDelivered,
		InternalOrderStatusCancelled:
		return true
	}
	return false
}

type OrderPriority string

const (
	OrderPriorityLow    OrderPriority = "low"
	OrderPriorityNormal OrderPriority = "normal"
	OrderPriorityHigh   OrderPriority = "high"
	OrderPriorityUrgent OrderPriority = "urgent"
)

func (e *OrderPriority) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = OrderPriority(s)
	case string:
		*e = OrderPriority(s)
	default:
		return fmt.Errorf("unsupported scan type for OrderPriority: %T", src)
	}
	return nil
}

// Rank orders priorities by urgency; unknown values rank below low.
func (e OrderPriority) Rank() int {
	switch e {
	case OrderPriorityLow:
		return 1
	case OrderPriorityNormal:
		return 2
	case OrderPriorityHigh:
		return 3
	case OrderPriorityUrgent:
		return 4
	}
	return 0
}

func (e OrderPriority) Valid() bool {
	return e.Rank() > 0
}

type InternalOrderSource string

const (
	InternalOrderSourceCafe         InternalOrderSource = "cafe"
	InternalOrderSourceRestaurant   InternalOrderSource = "restaurant"
	InternalOrderSourceFrontOfHouse InternalOrderSource = "front_of_house"
	InternalOrderSourceCatering     InternalOrderSource = "catering"
	InternalOrderSourceRetail       InternalOrderSource = "retail"
	InternalOrderSourceEvents       InternalOrderSource = "events"
)

func (e *InternalOrderSource) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = InternalOrderSource(s)
	case string:
		*e = InternalOrderSource(s)
	default:
		return fmt.Errorf("unsupported scan type for InternalOrderSource: %T", src)
	}
	return nil
}

func (e InternalOrderSource) Valid() bool {
	switch e {
	case InternalOrderSourceCafe,
		InternalOrderSourceRestaurant,
		InternalOrderSourceFrontOfHouse,
		InternalOrderSourceCatering,
		InternalOrderSourceRetail,
		InternalOrderSourceEvents:
		return true
	}
	return false
}

type RecurrenceFrequency string

const (
	RecurrenceFrequencyDaily   RecurrenceFrequency = "daily"
	RecurrenceFrequencyWeekly  RecurrenceFrequency = "weekly"
	RecurrenceFrequencyMonthly RecurrenceFrequency = "monthly"
)

func (e RecurrenceFrequency) Valid() bool {
	switch e {
	case RecurrenceFrequencyDaily, RecurrenceFrequencyWeekly, RecurrenceFrequencyMonthly:
		return true
	}
	return false
}

type CustomerOrderStatus string

const (
	CustomerOrderStatusPending   CustomerOrderStatus = "pending"
	CustomerOrderStatusConfirmed CustomerOrderStatus = "confirmed"
	CustomerOrderStatusPreparing CustomerOrderStatus = "preparing"
	CustomerOrderStatusReady     CustomerOrderStatus = "ready"
	CustomerOrderStatusCompleted CustomerOrderStatus = "completed"
	CustomerOrderStatusCancelled CustomerOrderStatus = "cancelled"
)

func (e *CustomerOrderStatus) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = CustomerOrderStatus(s)
	case string:
		*e = CustomerOrderStatus(s)
	default:
		return fmt.Errorf("unsupported scan type for CustomerOrderStatus: %T", src)
	}
	return nil
}

type ScheduleStatus string

const (
	ScheduleStatusPlanned    ScheduleStatus = "planned"
	ScheduleStatusInProgress ScheduleStatus = "in_progress"
	ScheduleStatusDone       ScheduleStatus = "done"
	ScheduleStatusCancelled  ScheduleStatus = "cancelled"
)

func (e *ScheduleStatus) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = ScheduleStatus(s)
	case string:
		*e = ScheduleStatus(s)
	default:
		return fmt.Errorf("unsupported scan type for ScheduleStatus: %T", src)
	}
	return nil
}

type User struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	Email        string
	PasswordHash string
	FullName     string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
}

type Product struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	Name            string
	PrepTimeMinutes pgtype.Numeric
	RecipeID        pgtype.UUID
	IsActive        bool
	CreatedAt       time.Time
}

type Recipe struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	Name            string
	Description     pgtype.Text
	YieldQuantity   pgtype.Numeric
	YieldUnit       string
	PrepTimeMinutes int32
	CookTimeMinutes int32
	CostPerUnit     pgtype.Numeric
	Instructions    pgtype.Text
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type RecipeIngredient struct {
	ID        uuid.UUID
	RecipeID  uuid.UUID
	Name      string
	Quantity  pgtype.Numeric
	Unit      string
	Cost      pgtype.Numeric
	SortOrder int32
}

type InternalOrder struct {
	ID                  uuid.UUID
	TenantID            uuid.UUID
	OrderNumber         string
	Source              InternalOrderSource
	Status              InternalOrderStatus
	Priority            OrderPriority
	RequesterName       string
	RequesterEmail      pgtype.Text
	Department          string
	NeededBy            pgtype.Date
	ProductionDate      pgtype.Date
	ProductionShift     pgtype.Text
	BatchNumber         pgtype.Text
	AssignedTo          pgtype.Text
	Workstation         pgtype.Text
	TargetQuantity      pgtype.Int4
	ActualQuantity      pgtype.Int4
	WasteQuantity       pgtype.Int4
	QualityNotes        pgtype.Text
	RecurrenceFrequency pgtype.Text
	RecurrenceNextDate  pgtype.Date
	RecurrenceEndDate   pgtype.Date
	Notes               pgtype.Text
	CompletedAt         pgtype.Timestamptz
	CreatedBy           uuid.UUID
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type InternalOrderItem struct {
	ID             uuid.UUID
	OrderID        uuid.UUID
	ProductID      uuid.UUID
	ProductName    string
	Quantity       int32
	UnitCost       pgtype.Numeric
	Customizations pgtype.Text
	Instructions   pgtype.Text
}

type ProductionSchedule struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	InternalOrderID uuid.UUID
	ProductionDate  pgtype.Date
	Shift           pgtype.Text
	Status          ScheduleStatus
	Notes           pgtype.Text
	CreatedBy       uuid.UUID
	CreatedAt       time.Time
}

type ProductionScheduleItem struct {
	ID         uuid.UUID
	ScheduleID uuid.UUID
	ProductID  uuid.UUID
	RecipeID   uuid.UUID
	Quantity   int32
}

type OrderLock struct {
	TenantID   uuid.UUID
	OrderKind  string
	OrderID    uuid.UUID
	HolderID   uuid.UUID
	HolderName string
	SessionID  string
	AcquiredAt time.Time
	ExpiresAt  time.Time
}
