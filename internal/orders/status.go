package orders

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusPaid       Status = "paid"
	StatusShipped    Status = "shipped"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusProcessing: true, StatusPaid: true, StatusCancelled: true},
	StatusProcessing: {StatusPaid: true, StatusShipped: true, StatusCancelled: true, StatusPending: true},
	StatusPaid:       {StatusShipped: true, StatusCancelled: true, StatusPending: true},
	StatusShipped:    {StatusCompleted: true, StatusCancelled: true},
	StatusCompleted:  {StatusCancelled: true},
	StatusCancelled:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Settled reports whether the order counts as paid for.
func (s Status) Settled() bool {
	switch s {
	case StatusPaid, StatusProcessing, StatusShipped, StatusCompleted:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending        PaymentStatus = "pending"
	PaymentRequiresAction PaymentStatus = "requires_action"
	PaymentCompleted      PaymentStatus = "completed"
	PaymentFailed         PaymentStatus = "failed"
	PaymentCancelled      PaymentStatus = "cancelled"
	PaymentRefunded       PaymentStatus = "refunded"
)

// Awaiting reports whether the payment still waits for the processor.
func (s PaymentStatus) Awaiting() bool {
	return s == PaymentPending || s == PaymentRequiresAction
}

type PaymentMethod string

const (
	MethodOffline PaymentMethod = "offline"
	MethodManual  PaymentMethod = "manual"
	MethodStripe  PaymentMethod = "stripe"
)
