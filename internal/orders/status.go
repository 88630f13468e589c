package orders

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusDisputed  Status = "disputed"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"

	// Presentation-only states. They are accepted on the wire but no
	// transition below ever enters them.
	StatusProcessing     Status = "processing"
	StatusReadyForPickup Status = "ready_for_pickup"
	StatusPickedUp       Status = "picked_up"
)

var allStatuses = []Status{
	StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusDisputed,
	StatusCancelled, StatusRefunded, StatusProcessing, StatusReadyForPickup, StatusPickedUp,
}

func ParseStatus(s string) (Status, bool) {
	for _, st := range allStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Terminal reports whether no action can move an order out of s.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled || s == StatusRefunded
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

type Action string

const (
	ActionConfirm          Action = "confirm"
	ActionReject           Action = "reject"
	ActionCancel           Action = "cancel"
	ActionShip             Action = "ship"
	ActionBuyerConfirm     Action = "buyer_confirm"
	ActionAutoConfirm      Action = "auto_confirm"
	ActionDispute          Action = "dispute"
	ActionResolveDelivered Action = "resolve_delivered"
	ActionResolveRefunded  Action = "resolve_refunded"
)

var AllActions = []Action{
	ActionConfirm, ActionReject, ActionCancel, ActionShip, ActionBuyerConfirm,
	ActionAutoConfirm, ActionDispute, ActionResolveDelivered, ActionResolveRefunded,
}

type rule struct {
	to      Status
	release bool
	arm     bool
	disarm  bool
}

var transitions = map[Status]map[Action]rule{
	StatusPending: {
		ActionConfirm: {to: StatusConfirmed},
		ActionReject:  {to: StatusCancelled, release: true},
		ActionCancel:  {to: StatusCancelled, release: true},
	},
	StatusConfirmed: {
		ActionCancel: {to: StatusCancelled, release: true},
		ActionShip:   {to: StatusShipped, arm: true},
	},
	StatusShipped: {
		ActionBuyerConfirm: {to: StatusDelivered, disarm: true},
		ActionAutoConfirm:  {to: StatusDelivered, disarm: true},
		ActionDispute:      {to: StatusDisputed, disarm: true},
	},
	StatusDisputed: {
		ActionResolveDelivered: {to: StatusDelivered},
		ActionResolveRefunded:  {to: StatusRefunded, release: true},
	},
	StatusDelivered: {},
	StatusCancelled: {},
	StatusRefunded:  {},
}

func CanTransition(from Status, a Action) bool {
	_, ok := transitions[from][a]
	return ok
}
