package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// The order endpoints answer in several shapes: a list whose element carries
// an order id, a list whose element is a confirmation prompt, or an object
// carrying an error. orderReply is the one normalized form the confirmation
// protocol runs on.
type orderReply struct {
	kind     replyKind
	orderID  string
	replyID  string   // confirmation id to acknowledge
	warnings []string // gateway message ids, e.g. "o383"
	texts    []string // human-readable warning texts
	reason   string
	details  []string
}

type replyKind int

const (
	replyPlaced replyKind = iota
	replyConfirm
	replyRejected
)

type replyElement struct {
	OrderID    json.RawMessage `json:"order_id"`
	ID         json.RawMessage `json:"id"`
	Error      string          `json:"error"`
	Messages   []string        `json:"message"`
	MessageIDs []string        `json:"messageIds"`
}

type errorEnvelope struct {
	Error string `json:"error"`
	CQE   *struct {
		Rejections []string `json:"rejections"`
	} `json:"cqe"`
}

// decodeOrderReply normalizes an order-endpoint body. A decode failure means
// the gateway spoke a shape the protocol does not know, which is terminal for
// the attempt.
func decodeOrderReply(body []byte) (orderReply, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return orderReply{}, fmt.Errorf("empty order response")
	}

	switch trimmed[0] {
	case '[':
		var elements []replyElement
		if err := json.Unmarshal(trimmed, &elements); err != nil {
			return orderReply{}, fmt.Errorf("decode order response: %w", err)
		}
		if len(elements) == 0 {
			return orderReply{}, fmt.Errorf("order response carried no elements")
		}
		return normalizeElement(elements[0])
	case '{':
		var envelope errorEnvelope
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return orderReply{}, fmt.Errorf("decode order response: %w", err)
		}
		if envelope.Error != "" {
			return rejectedReply(envelope), nil
		}
		var element replyElement
		if err := json.Unmarshal(trimmed, &element); err != nil {
			return orderReply{}, fmt.Errorf("decode order response: %w", err)
		}
		return normalizeElement(element)
	default:
		return orderReply{}, fmt.Errorf("unrecognized order response shape: %s", excerpt(trimmed))
	}
}

func normalizeElement(el replyElement) (orderReply, error) {
	if el.Error != "" {
		return orderReply{kind: replyRejected, reason: el.Error}, nil
	}
	if id := idString(el.OrderID); id != "" {
		return orderReply{kind: replyPlaced, orderID: id}, nil
	}
	id := idString(el.ID)
	if id == "" {
		return orderReply{}, fmt.Errorf("order response carried neither an order id nor a confirmation id")
	}
	if len(el.MessageIDs) > 0 || len(el.Messages) > 0 {
		return orderReply{
			kind:     replyConfirm,
			replyID:  id,
			warnings: el.MessageIDs,
			texts:    el.Messages,
		}, nil
	}
	// An id with no warning content is a filled submission, whatever the
	// gateway chose to call the field.
	return orderReply{kind: replyPlaced, orderID: id}, nil
}

func rejectedReply(env errorEnvelope) orderReply {
	reply := orderReply{kind: replyRejected, reason: env.Error}
	if env.CQE != nil && len(env.CQE.Rejections) > 0 {
		reply.details = env.CQE.Rejections
	}
	return reply
}

// idString renders an id the gateway sends as either a JSON number or a
// string.
func idString(raw json.RawMessage) string {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return strings.Trim(string(raw), `"`)
}

func excerpt(body []byte) string {
	const max = 120
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
