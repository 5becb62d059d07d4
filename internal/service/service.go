package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/ovenly/api/internal/lock"
	"github.com/shopspring/decimal"
)

// Errors shared by the services. Handlers map them to status codes.
var (
	ErrNotFound                = errors.New("not found")
	ErrRecipeMissingForProduct = errors.New("product has no linked recipe")
	ErrStatusConflict          = errors.New("order status changed concurrently")

	ErrEmptyItems         = errors.New("items are required")
	ErrInvalidQuantity    = errors.New("quantity must be > 0")
	ErrInvalidProductID   = errors.New("invalid product_id")
	ErrProductNotFound    = errors.New("product not found in tenant")
	ErrInvalidSource      = errors.New("invalid source")
	ErrInvalidPriority    = errors.New("invalid priority")
	ErrRequesterRequired  = errors.New("requester_name is required")
	ErrDepartmentRequired = errors.New("department is required")
	ErrNeededByRequired   = errors.New("needed_by is required")
	ErrInvalidRecurrence  = errors.New("invalid recurrence")
	ErrInvalidShift       = errors.New("invalid production shift")
	ErrInvalidUnitCost    = errors.New("invalid unit_cost")
	ErrProductionDate     = errors.New("production_date is required")
	ErrOrderClosed        = errors.New("order is closed for edits")
	ErrNotDeletable       = errors.New("order cannot be deleted in its current status")
	ErrUseSchedule        = errors.New("use schedule production to move an approved order to scheduled")
	ErrOutcomeNotAllowed  = errors.New("production outcome can only be recorded once production has started")
	ErrNegativeQuantity   = errors.New("quantities must not be negative")
)

// RecipeMissingError names the product blocking a production schedule.
type RecipeMissingError struct {
	ProductID   uuid.UUID
	ProductName string
}

func (e *RecipeMissingError) Error() string {
	return fmt.Sprintf("product %q has no linked recipe", e.ProductName)
}

func (e *RecipeMissingError) Is(target error) bool {
	return target == ErrRecipeMissingForProduct
}

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Locker is the part of the lock manager the services need.
// Satisfied by *lock.Manager.
type Locker interface {
	Require(ctx context.Context, key lock.Key, holder lock.Holder) (lock.Lock, error)
	Release(ctx context.Context, key lock.Key, holder lock.Holder) error
}

// Actor is the authenticated staff member performing an operation.
type Actor struct {
	TenantID  uuid.UUID
	UserID    uuid.UUID
	Name      string
	SessionID string
}

func (a Actor) Holder() lock.Holder {
	return lock.Holder{UserID: a.UserID, Name: a.Name, SessionID: a.SessionID}
}

func internalKey(tenantID, orderID uuid.UUID) lock.Key {
	return lock.Key{TenantID: tenantID, Kind: lock.KindInternal, OrderID: orderID}
}

// isUniqueViolation checks for a pgconn 23505 on the named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
	}
	return false
}

// notFound converts pgx.ErrNoRows to ErrNotFound and wraps anything else.
func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", what, err)
}

// --- pgtype conversions ---

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func numericToNullDecimal(n pgtype.Numeric) decimal.NullDecimal {
	if !n.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(numericToDecimal(n))
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

func int4OrNull(v *int32) pgtype.Int4 {
	if v == nil {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: *v, Valid: true}
}

// dateOf keeps only the calendar date of t.
func dateOf(t time.Time) pgtype.Date {
	y, m, d := t.Date()
	return pgtype.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}
}

func dateOrNull(t *time.Time) pgtype.Date {
	if t == nil {
		return pgtype.Date{}
	}
	return dateOf(*t)
}

func datePtr(d pgtype.Date) *time.Time {
	if !d.Valid {
		return nil
	}
	t := d.Time
	return &t
}
