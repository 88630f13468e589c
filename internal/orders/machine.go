package orders

import "time"

const DefaultAutoConfirmAfter = 7 * 24 * time.Hour

// Effect is the outcome of a legal transition: the target status plus the
// side effects the caller must carry out in the same unit of work.
type Effect struct {
	Action  Action
	From    Status
	To      Status
	Release bool // return the order quantity to the stock ledger
	Arm     bool // set shipped_at and auto_confirm_at
	Disarm  bool // clear auto_confirm_at
}

// Machine holds no state of its own; it only decides.
type Machine struct {
	AutoConfirmAfter time.Duration
}

func (m Machine) window() time.Duration {
	if m.AutoConfirmAfter <= 0 {
		return DefaultAutoConfirmAfter
	}
	return m.AutoConfirmAfter
}

// Next validates action a against the current state of o.
func (m Machine) Next(o *Order, a Action, now time.Time) (Effect, error) {
	r, ok := transitions[o.Status][a]
	if !ok {
		return Effect{}, &TransitionError{OrderID: o.ID, From: o.Status, Action: a}
	}
	if a == ActionAutoConfirm && (o.AutoConfirmAt == nil || now.Before(*o.AutoConfirmAt)) {
		return Effect{}, &TransitionError{OrderID: o.ID, From: o.Status, Action: a, Reason: "deadline not reached"}
	}
	return Effect{
		Action:  a,
		From:    o.Status,
		To:      r.to,
		Release: r.release,
		Arm:     r.arm,
		Disarm:  r.disarm,
	}, nil
}

// Apply returns a copy of o with e applied. note is the reason for
// reject/cancel/dispute and the tracking number for ship.
func (m Machine) Apply(o Order, e Effect, now time.Time, note string) Order {
	o.Status = e.To
	switch e.Action {
	case ActionReject, ActionCancel:
		o.CancelReason = note
	case ActionShip:
		o.TrackingNo = note
	case ActionDispute:
		o.DisputeReason = note
	}
	if e.Arm {
		shipped := now
		deadline := now.Add(m.window())
		o.ShippedAt = &shipped
		o.AutoConfirmAt = &deadline
	}
	if e.Disarm {
		o.AutoConfirmAt = nil
	}
	if e.To == StatusDelivered {
		delivered := now
		o.DeliveredAt = &delivered
	}
	o.Version++
	o.UpdatedAt = now
	return o
}
