package model

// DeliveryStatus classifies the result of one delivery.
type DeliveryStatus int

// Delivery statuses. Server errors (5xx) and transport errors are always
// retryable; client errors (4xx) are always terminal.
const (
	DeliverySuccess DeliveryStatus = iota
	DeliveryRetryable
	DeliveryTerminal
)

// DeliveryOutcome is the tri-state result of sending one batch.
type DeliveryOutcome struct {
	Status DeliveryStatus
	Reason string
}

// Success reports a delivered batch.
func Success() DeliveryOutcome {
	return DeliveryOutcome{Status: DeliverySuccess}
}

// RetryableFailure reports a presumed-transient failure.
func RetryableFailure(reason string) DeliveryOutcome {
	return DeliveryOutcome{Status: DeliveryRetryable, Reason: reason}
}

// TerminalFailure reports a failure retrying cannot fix.
func TerminalFailure(reason string) DeliveryOutcome {
	return DeliveryOutcome{Status: DeliveryTerminal, Reason: reason}
}

// IsSuccess reports whether the batch was delivered.
func (o DeliveryOutcome) IsSuccess() bool { return o.Status == DeliverySuccess }

// IsRetryable reports whether the batch should be spooled for a later pass.
func (o DeliveryOutcome) IsRetryable() bool { return o.Status == DeliveryRetryable }

// IsTerminal reports whether resending the same payload is pointless.
func (o DeliveryOutcome) IsTerminal() bool { return o.Status == DeliveryTerminal }

// String renders the outcome for logs.
func (o DeliveryOutcome) String() string {
	switch o.Status {
	case DeliverySuccess:
		return "success"
	case DeliveryRetryable:
		return "retryable: " + o.Reason
	default:
		return "terminal: " + o.Reason
	}
}
