package gateway

import (
	"fmt"
	"strings"
)

// RejectionError is the gateway refusing an order for a business reason
// (insufficient funds, size caps, halted instrument). It is terminal: the
// same ticket will not fare better on a resubmit, so it is never retried and
// never acknowledged.
type RejectionError struct {
	Reason  string
	Details []string
}

func (e *RejectionError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("order rejected: %s", strings.Join(e.Details, "; "))
	}
	return fmt.Sprintf("order rejected: %s", e.Reason)
}

// ProtocolError is a confirmation handshake that ended without an order id:
// the round bound was hit, a warning outside the suppression set appeared, or
// the gateway answered with a shape the protocol does not recognize.
type ProtocolError struct {
	Reason   string
	Rounds   int
	Warnings []string // every warning code seen during the handshake
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("order confirmation failed after %d rounds: %s", e.Rounds, e.Reason)
	if len(e.Warnings) > 0 {
		msg += fmt.Sprintf(" (warnings %s)", strings.Join(e.Warnings, ","))
	}
	return msg
}
