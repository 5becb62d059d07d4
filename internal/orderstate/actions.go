package orderstate

import "github.com/ovenly/api/internal/database"

// Action is a next step offered to staff for an order.
type Action struct {
	Target Status `json:"target"`
	Label  string `json:"label"`
	// Endpoint is "status" for a plain transition or "schedule" when the move
	// goes through schedule production.
	Endpoint string `json:"endpoint"`
}

const (
	EndpointStatus   = "status"
	EndpointSchedule = "schedule"
)

// NextActions lists what staff can do with an order in s. Every status has a
// case; terminal ones return nil.
func NextActions(s Status) []Action {
	cancel := Action{Target: database.InternalOrderStatusCancelled, Label: "Cancel", Endpoint: EndpointStatus}

	switch s {
	case database.InternalOrderStatusDraft:
		return []Action{
			{Target: database.InternalOrderStatusRequested, Label: "Submit request", Endpoint: EndpointStatus},
			cancel,
		}
	case database.InternalOrderStatusRequested:
		return []Action{
			{Target: database.InternalOrderStatusApproved, Label: "Approve", Endpoint: EndpointStatus},
			cancel,
		}
	case database.InternalOrderStatusApproved:
		return []Action{
			{Target: database.InternalOrderStatusScheduled, Label: "Schedule production", Endpoint: EndpointSchedule},
			cancel,
		}
	case database.InternalOrderStatusScheduled:
		return []Action{
			{Target: database.InternalOrderStatusInProduction, Label: "Start production", Endpoint: EndpointStatus},
			cancel,
		}
	case database.InternalOrderStatusInProduction:
		return []Action{
			{Target: database.InternalOrderStatusQualityCheck, Label: "Send to quality check", Endpoint: EndpointStatus},
			cancel,
		}
	case database.InternalOrderStatusQualityCheck:
		return []Action{
			{Target: database.InternalOrderStatusReady, Label: "Pass quality check", Endpoint: EndpointStatus},
			{Target: database.InternalOrderStatusInProduction, Label: "Return to production", Endpoint: EndpointStatus},
			cancel,
		}
	case database.InternalOrderStatusReady:
		return []Action{
			{Target: database.InternalOrderStatusCompleted, Label: "Mark completed", Endpoint: EndpointStatus},
			{Target: database.InternalOrderStatusDelivered, Label: "Mark delivered", Endpoint: EndpointStatus},
			cancel,
		}
	case database.InternalOrderStatusCompleted:
		return []Action{
			{Target: database.InternalOrderStatusDelivered, Label: "Mark delivered", Endpoint: EndpointStatus},
		}
	case database.InternalOrderStatusDelivered, database.InternalOrderStatusCancelled:
		return nil
	}
	return nil
}
