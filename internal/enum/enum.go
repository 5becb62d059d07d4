package enum

// ── Group A: Roles (CHECK constrained in DB) ──

const (
	UserRoleOwner   = "OWNER"
	UserRoleManager = "MANAGER"
	UserRoleBaker   = "BAKER"
	UserRoleStaff   = "STAFF"
)

// ── Group B: Event types (no DB constraint) ──

const (
	EventInternalOrderCreated       = "internal_order.created"
	EventInternalOrderUpdated       = "internal_order.updated"
	EventInternalOrderStatusChanged = "internal_order.status_changed"
	EventInternalOrderScheduled     = "internal_order.scheduled"
	EventInternalOrderDeleted       = "internal_order.deleted"
	EventLockAcquired               = "lock.acquired"
	EventLockReleased               = "lock.released"
)

// ── Group C: Production shifts (configurable labels) ──

const (
	ShiftEarly   = "EARLY"
	ShiftMorning = "MORNING"
	ShiftLate    = "LATE"
	ShiftNight   = "NIGHT"
)

// ValidShift reports whether s is one of the known shift labels.
func ValidShift(s string) bool {
	switch s {
	case ShiftEarly, ShiftMorning, ShiftLate, ShiftNight:
		return true
	}
	return false
}
