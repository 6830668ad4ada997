package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/signalsingaravelan/signal-singaravelan/internal/retry"
)

// Side of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Every order this bot places is a market-priced stock order.
const (
	secTypeStock    = "STK"
	orderTypeMarket = "MKT"
)

// OrderTicket describes one market order. Exactly one of Quantity (shares)
// or CashQty (dollars) must be set.
type OrderTicket struct {
	ConID    int
	Side     Side
	Quantity *float64
	CashQty  *float64
	TIF      string
	Exchange string
	Currency string
}

func (t OrderTicket) validate() error {
	if t.ConID <= 0 {
		return fmt.Errorf("order ticket missing conid")
	}
	if t.Side != SideBuy && t.Side != SideSell {
		return fmt.Errorf("unsupported order side %q", t.Side)
	}
	if (t.Quantity == nil) == (t.CashQty == nil) {
		return fmt.Errorf("order ticket must set exactly one of quantity or cash quantity")
	}
	return nil
}

type orderEnvelope struct {
	Orders []orderEntry `json:"orders"`
}

type orderEntry struct {
	ConID     int      `json:"conid"`
	SecType   string   `json:"secType"`
	OrderType string   `json:"orderType"`
	Side      string   `json:"side"`
	TIF       string   `json:"tif"`
	Exchange  string   `json:"exchange,omitempty"`
	Currency  string   `json:"currency,omitempty"`
	Quantity  *float64 `json:"quantity,omitempty"`
	CashQty   *float64 `json:"cashQty,omitempty"`
}

// PlaceOrder submits the ticket and drives the confirmation handshake until
// the gateway yields an order id, rejects the order, or the handshake gives
// up. Rejections come back as *RejectionError, handshake failures as
// *ProtocolError.
func (c *Client) PlaceOrder(ctx context.Context, accountID string, ticket OrderTicket) (string, error) {
	if err := ticket.validate(); err != nil {
		return "", err
	}
	entry := orderEntry{
		ConID:     ticket.ConID,
		SecType:   secTypeStock,
		OrderType: orderTypeMarket,
		Side:      string(ticket.Side),
		TIF:       ticket.TIF,
		Exchange:  ticket.Exchange,
		Currency:  ticket.Currency,
		Quantity:  ticket.Quantity,
		CashQty:   ticket.CashQty,
	}
	c.log.Info("submitting order",
		"account_id", accountID,
		"conid", ticket.ConID,
		"side", ticket.Side,
		"quantity", floatOrNil(ticket.Quantity),
		"cash_qty", floatOrNil(ticket.CashQty),
		"tif", ticket.TIF)

	path := "/iserver/account/" + accountID + "/orders"
	reply, err := c.postOrder(ctx, "submit order", path, orderEnvelope{Orders: []orderEntry{entry}})
	if err != nil {
		return "", err
	}
	return c.confirmLoop(ctx, reply)
}

// confirmLoop walks the reply chain, acknowledging one confirmation prompt
// per round as long as every warning code on it is in the suppression set.
func (c *Client) confirmLoop(ctx context.Context, reply orderReply) (string, error) {
	var seen []string
	for round := 0; ; round++ {
		switch reply.kind {
		case replyPlaced:
			c.log.Info("order placed", "order_id", reply.orderID, "confirm_rounds", round)
			return reply.orderID, nil

		case replyRejected:
			err := &RejectionError{Reason: reply.reason, Details: reply.details}
			c.log.Error("order rejected", "reason", reply.reason, "details", reply.details)
			return "", err

		case replyConfirm:
			seen = append(seen, reply.warnings...)
			if round >= c.maxRounds {
				err := &ProtocolError{Reason: "confirmation rounds exhausted", Rounds: round, Warnings: seen}
				c.log.Error("order confirmation exhausted", "rounds", round, "warnings", seen)
				return "", err
			}
			if len(reply.warnings) == 0 {
				err := &ProtocolError{Reason: "confirmation prompt without warning codes", Rounds: round, Warnings: seen}
				c.log.Error("order confirmation halted", "texts", reply.texts)
				return "", err
			}
			if unknown := c.unsuppressedWarnings(reply.warnings); len(unknown) > 0 {
				err := &ProtocolError{Reason: "unsupported order warnings", Rounds: round, Warnings: unknown}
				c.log.Error("order confirmation halted", "unknown_warnings", unknown, "texts", reply.texts)
				return "", err
			}
			c.log.Info("acknowledging order warnings",
				"reply_id", reply.replyID, "warnings", reply.warnings, "round", round+1)
			next, err := c.postOrder(ctx, "confirm order", "/iserver/reply/"+reply.replyID, map[string]bool{"confirmed": true})
			if err != nil {
				return "", err
			}
			reply = next

		default:
			return "", fmt.Errorf("unexpected order reply kind %d", reply.kind)
		}
	}
}

func (c *Client) unsuppressedWarnings(warnings []string) []string {
	var unknown []string
	for _, id := range warnings {
		if _, ok := c.suppressed[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	return unknown
}

// postOrder performs one order-endpoint POST under the retry policy and
// normalizes the reply. A rejection is a decoded answer, not an error, so it
// is never retried.
func (c *Client) postOrder(ctx context.Context, op, path string, payload any) (orderReply, error) {
	return retry.Do(ctx, c.log, c.policy, op, func() (orderReply, error) {
		status, body, err := c.do(ctx, http.MethodPost, path, payload)
		if err != nil {
			return orderReply{}, err
		}
		if status >= http.StatusInternalServerError {
			return orderReply{}, fmt.Errorf("gateway returned status %d for %s", status, path)
		}
		reply, err := decodeOrderReply(body)
		if err != nil {
			return orderReply{}, retry.Permanent(fmt.Errorf("%s: status %d: %w", op, status, err))
		}
		return reply, nil
	})
}

func floatOrNil(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
