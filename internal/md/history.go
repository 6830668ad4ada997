package md

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const dateLayout = "2006-01-02"

// HistoryClient downloads daily bars from a CSV quote endpoint with a
// Date,Open,High,Low,Close,Volume header and oldest row first.
type HistoryClient struct {
	url    string
	client *http.Client
	log    *slog.Logger
}

func NewHistoryClient(url string, timeout time.Duration, log *slog.Logger) *HistoryClient {
	return &HistoryClient{
		url:    url,
		client: &http.Client{Timeout: timeout},
		log:    log.With("component", "md"),
	}
}

// DailyBars fetches and parses the full daily history.
func (c *HistoryClient) DailyBars(ctx context.Context) ([]Bar, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build history request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch daily history: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("history endpoint returned status %d", resp.StatusCode)
	}

	bars, err := parseDaily(resp.Body)
	if err != nil {
		return nil, err
	}
	c.log.Info("daily history fetched", "rows", len(bars),
		"first", bars[0].Date.Format(dateLayout), "last", bars[len(bars)-1].Date.Format(dateLayout))
	return bars, nil
}

func parseDaily(r io.Reader) ([]Bar, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read history header: %w", err)
	}
	if len(header) < 6 || header[0] != "Date" {
		return nil, fmt.Errorf("unexpected history header: %v", header)
	}

	var bars []Bar
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read history row %d: %w", len(bars)+2, err)
		}
		bar, err := parseRow(record)
		if err != nil {
			return nil, fmt.Errorf("history row %d: %w", len(bars)+2, err)
		}
		bars = append(bars, bar)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("history endpoint returned no rows")
	}
	return bars, nil
}

func parseRow(record []string) (Bar, error) {
	if len(record) < 6 {
		return Bar{}, fmt.Errorf("have %d fields, want 6", len(record))
	}
	date, err := time.Parse(dateLayout, record[0])
	if err != nil {
		return Bar{}, fmt.Errorf("parse date %q: %w", record[0], err)
	}
	var values [5]float64
	for i, raw := range record[1:6] {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Bar{}, fmt.Errorf("parse field %q: %w", raw, err)
		}
		values[i] = v
	}
	return Bar{
		Date:   date,
		Open:   values[0],
		High:   values[1],
		Low:    values[2],
		Close:  values[3],
		Volume: values[4],
	}, nil
}
