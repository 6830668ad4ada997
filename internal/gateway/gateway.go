// Package gateway speaks the brokerage's local Client Portal REST API: a
// self-signed HTTPS endpoint on localhost whose session is authenticated out
// of band. Reads go through the retry policy; order placement additionally
// runs the confirmation handshake.
package gateway

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/signalsingaravelan/signal-singaravelan/internal/retry"

	"github.com/shopspring/decimal"
)

// DefaultBaseURL is the gateway's standard local endpoint.
const DefaultBaseURL = "https://127.0.0.1:5000/v1/api"

// DefaultMaxConfirmRounds bounds the confirmation handshake for one order.
const DefaultMaxConfirmRounds = 5

// DefaultSuppressedWarnings lists the order warnings the bot acknowledges
// without operator review.
func DefaultSuppressedWarnings() []string {
	return []string{
		"o354", // missing market data subscription
		"o382", // order size exceeds the size limit
		"o383", // order value exceeds the value limit
		"o403", // cash quantity order notice
	}
}

// Options configures one gateway session.
type Options struct {
	BaseURL string
	// The local gateway serves a self-signed certificate.
	InsecureSkipVerify bool
	Timeout            time.Duration
	Retry              retry.Policy
	SuppressedWarnings []string
	MaxConfirmRounds   int
}

// Client is one session against the local gateway. It caches the account id
// after the first lookup. Not safe for concurrent use; the bot runs one
// decision cycle at a time.
type Client struct {
	baseURL     string
	http        *http.Client
	log         *slog.Logger
	policy      retry.Policy
	suppressed  map[string]struct{}
	suppressIDs []string
	maxRounds   int
	accountID   string
	initialized bool
}

func New(opts Options, log *slog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxConfirmRounds <= 0 {
		opts.MaxConfirmRounds = DefaultMaxConfirmRounds
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.DefaultPolicy()
	}
	if len(opts.SuppressedWarnings) == 0 {
		opts.SuppressedWarnings = DefaultSuppressedWarnings()
	}

	suppressed := make(map[string]struct{}, len(opts.SuppressedWarnings))
	for _, id := range opts.SuppressedWarnings {
		suppressed[id] = struct{}{}
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: opts.InsecureSkipVerify},
	}
	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		http:        &http.Client{Transport: transport, Timeout: opts.Timeout},
		log:         log.With("component", "gateway"),
		policy:      opts.Retry,
		suppressed:  suppressed,
		suppressIDs: opts.SuppressedWarnings,
		maxRounds:   opts.MaxConfirmRounds,
	}
}

// Initialize verifies gateway authentication and registers the warning
// suppression set. Later calls are no-ops.
func (c *Client) Initialize(ctx context.Context) error {
	if c.initialized {
		return nil
	}
	if err := c.checkAuth(ctx); err != nil {
		return err
	}
	if err := c.suppressWarnings(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

func (c *Client) checkAuth(ctx context.Context) error {
	_, err := retry.Do(ctx, c.log, c.policy, "check gateway auth", func() (bool, error) {
		var status struct {
			Authenticated bool `json:"authenticated"`
		}
		if err := c.requestJSON(ctx, http.MethodGet, "/iserver/auth/status", nil, &status); err != nil {
			return false, err
		}
		if !status.Authenticated {
			// The gateway answers before its brokerage session is up.
			return false, fmt.Errorf("gateway session not authenticated")
		}
		return true, nil
	})
	if err != nil {
		return err
	}
	c.log.Info("gateway session authenticated")
	return nil
}

func (c *Client) suppressWarnings(ctx context.Context) error {
	payload := map[string][]string{"messageIds": c.suppressIDs}
	_, err := retry.Do(ctx, c.log, c.policy, "register warning suppression", func() (string, error) {
		var reply struct {
			Status string `json:"status"`
		}
		if err := c.requestJSON(ctx, http.MethodPost, "/iserver/questions/suppress", payload, &reply); err != nil {
			return "", err
		}
		if reply.Status != "submitted" {
			return "", fmt.Errorf("suppression not accepted: status %q", reply.Status)
		}
		return reply.Status, nil
	})
	if err != nil {
		return err
	}
	c.log.Info("order warnings suppressed", "message_ids", c.suppressIDs)
	return nil
}

// AccountID returns the session's brokerage account, cached after the first
// lookup.
func (c *Client) AccountID(ctx context.Context) (string, error) {
	if c.accountID != "" {
		return c.accountID, nil
	}
	id, err := retry.Do(ctx, c.log, c.policy, "fetch account id", func() (string, error) {
		var reply struct {
			Accounts []string `json:"accounts"`
		}
		if err := c.requestJSON(ctx, http.MethodGet, "/iserver/accounts", nil, &reply); err != nil {
			return "", err
		}
		if len(reply.Accounts) == 0 {
			return "", retry.Permanent(fmt.Errorf("gateway reported no accounts"))
		}
		return reply.Accounts[0], nil
	})
	if err != nil {
		return "", err
	}
	c.accountID = id
	c.log.Info("account resolved", "account_id", id)
	return id, nil
}

// AvailableCash reads the funds available for trading from the account
// summary.
func (c *Client) AvailableCash(ctx context.Context, accountID string) (decimal.Decimal, error) {
	return c.summaryAmount(ctx, accountID, "availableFunds", "fetch available cash")
}

// Balance reads the account's net liquidation value.
func (c *Client) Balance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	return c.summaryAmount(ctx, accountID, "netLiquidation", "fetch account balance")
}

func (c *Client) summaryAmount(ctx context.Context, accountID, field, op string) (decimal.Decimal, error) {
	amount, err := retry.Do(ctx, c.log, c.policy, op, func() (decimal.Decimal, error) {
		var summary map[string]json.RawMessage
		if err := c.requestJSON(ctx, http.MethodGet, "/iserver/account/"+accountID+"/summary", nil, &summary); err != nil {
			return decimal.Zero, err
		}
		raw, ok := summary[field]
		if !ok {
			return decimal.Zero, retry.Permanent(fmt.Errorf("account summary missing %q", field))
		}
		value, err := parseAmount(raw)
		if err != nil {
			return decimal.Zero, retry.Permanent(fmt.Errorf("account summary %q: %w", field, err))
		}
		return value, nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	c.log.Info("account summary read", "field", field, "amount", amount)
	return amount, nil
}

// ContractID resolves the conid for a stock symbol: exact symbol match on a
// SMART-routed stock first, then any stock entry.
func (c *Client) ContractID(ctx context.Context, symbol string) (int, error) {
	type contract struct {
		ConID    int    `json:"conid"`
		Symbol   string `json:"symbol"`
		SecType  string `json:"secType"`
		Exchange string `json:"exchange"`
	}
	conid, err := retry.Do(ctx, c.log, c.policy, "resolve contract", func() (int, error) {
		var contracts []contract
		if err := c.requestJSON(ctx, http.MethodPost, "/iserver/secdef/search", map[string]string{"symbol": symbol}, &contracts); err != nil {
			return 0, err
		}
		for _, ct := range contracts {
			if ct.Symbol == symbol && ct.SecType == "STK" && ct.Exchange == "SMART" {
				return ct.ConID, nil
			}
		}
		for _, ct := range contracts {
			if ct.SecType == "STK" {
				return ct.ConID, nil
			}
		}
		return 0, retry.Permanent(fmt.Errorf("no stock contract found for %q", symbol))
	})
	if err != nil {
		return 0, err
	}
	c.log.Info("contract resolved", "symbol", symbol, "conid", conid)
	return conid, nil
}

// Market data snapshot field codes.
const (
	fieldLast       = "31"
	fieldMark       = "7635"
	fieldPriorClose = "7741"
)

// Price returns a trade price for the contract: the last price, falling back
// to mark and then prior close when the session has nothing fresher.
func (c *Client) Price(ctx context.Context, conid int) (decimal.Decimal, error) {
	path := fmt.Sprintf("/iserver/marketdata/snapshot?conids=%d&fields=%s,%s,%s",
		conid, fieldLast, fieldMark, fieldPriorClose)
	price, err := retry.Do(ctx, c.log, c.policy, "fetch price", func() (decimal.Decimal, error) {
		var rows []map[string]json.RawMessage
		if err := c.requestJSON(ctx, http.MethodGet, path, nil, &rows); err != nil {
			return decimal.Zero, err
		}
		if len(rows) == 0 {
			return decimal.Zero, fmt.Errorf("snapshot returned no rows")
		}
		for _, field := range []string{fieldLast, fieldMark, fieldPriorClose} {
			raw, ok := rows[0][field]
			if !ok {
				continue
			}
			value, err := parsePrice(raw)
			if err != nil {
				continue
			}
			return value, nil
		}
		// Snapshots need a round or two to warm up after the first request
		// for a contract.
		return decimal.Zero, fmt.Errorf("snapshot carried no usable price for conid %d", conid)
	})
	if err != nil {
		return decimal.Zero, err
	}
	c.log.Info("price fetched", "conid", conid, "price", price)
	return price, nil
}

// Position returns the signed share position for the contract, zero when the
// account holds none.
func (c *Client) Position(ctx context.Context, accountID string, conid int) (decimal.Decimal, error) {
	path := fmt.Sprintf("/portfolio/%s/positions/0", accountID)
	position, err := retry.Do(ctx, c.log, c.policy, "fetch position", func() (decimal.Decimal, error) {
		var rows []struct {
			ConID    int             `json:"conid"`
			Position json.RawMessage `json:"position"`
		}
		if err := c.requestJSON(ctx, http.MethodGet, path, nil, &rows); err != nil {
			return decimal.Zero, err
		}
		for _, row := range rows {
			if row.ConID == conid {
				qty, err := parseAmount(row.Position)
				if err != nil {
					return decimal.Zero, retry.Permanent(fmt.Errorf("position for conid %d: %w", conid, err))
				}
				return qty, nil
			}
		}
		return decimal.Zero, nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	c.log.Info("position fetched", "conid", conid, "position", position)
	return position, nil
}

// requestJSON performs one request and decodes the body. Transport failures
// and 5xx answers are plain errors the retry policy may take another run at;
// other failures are permanent.
func (c *Client) requestJSON(ctx context.Context, method, path string, payload, out any) error {
	status, body, err := c.do(ctx, method, path, payload)
	if err != nil {
		return err
	}
	if status >= http.StatusInternalServerError {
		return fmt.Errorf("gateway returned status %d for %s", status, path)
	}
	if status != http.StatusOK {
		return retry.Permanent(fmt.Errorf("gateway returned status %d for %s: %s", status, path, excerpt(body)))
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return retry.Permanent(fmt.Errorf("decode %s response: %w", path, err))
		}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	// The gateway drops requests without a user agent.
	req.Header.Set("User-Agent", "signal-singaravelan")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read %s %s response: %w", method, path, err)
	}
	return resp.StatusCode, data, nil
}

// parseAmount accepts a bare number, a numeric string (optionally with
// currency text), or an {"amount": ...} wrapper.
func parseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	var number float64
	if err := json.Unmarshal(raw, &number); err == nil {
		return decimal.NewFromFloat(number), nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return parseAmountString(text)
	}
	var wrapper struct {
		Amount json.RawMessage `json:"amount"`
	}
	if err := json.Unmarshal(raw, &wrapper); err == nil && len(wrapper.Amount) > 0 {
		return parseAmount(wrapper.Amount)
	}
	return decimal.Zero, fmt.Errorf("unparseable amount %s", excerpt(raw))
}

func parseAmountString(text string) (decimal.Decimal, error) {
	// Ledger strings can look like "1,000.50 USD".
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, ' '); i > 0 {
		text = text[:i]
	}
	text = strings.ReplaceAll(text, ",", "")
	value, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparseable amount %q", text)
	}
	return value, nil
}

// parsePrice handles snapshot values that arrive as numbers or as strings,
// optionally carrying a C (prior close) or H (halted) marker.
func parsePrice(raw json.RawMessage) (decimal.Decimal, error) {
	var number float64
	if err := json.Unmarshal(raw, &number); err == nil {
		return decimal.NewFromFloat(number), nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return decimal.Zero, fmt.Errorf("unparseable price %s", excerpt(raw))
	}
	text = strings.TrimSpace(strings.TrimLeft(text, "CH"))
	if text == "" {
		return decimal.Zero, fmt.Errorf("empty price value")
	}
	value, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparseable price %q", text)
	}
	return value, nil
}
