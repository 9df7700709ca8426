// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Command crank settles yesterday's auction and drains its refund queue.
// It is meant to run on a schedule shortly after the day boundary: it
// ensures the day row exists, settles it (retrying while the day is still
// too early to close), then submits refund batches until every loser is
// paid or the runtime cap is hit. Every step is idempotent, so a crashed
// or overlapping run is harmless.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"

	"github.com/danielhkuo/dayvault/models"
)

type options struct {
	apiURL        string
	cranker       string
	accountKey    string
	retryWindow   time.Duration
	retryInterval time.Duration
	maxBatchSize  int
	maxRuntime    time.Duration
}

func parseOptions(args []string) (options, error) {
	fs := flag.NewFlagSet("crank", flag.ContinueOnError)
	opts := options{
		apiURL:        envOr("DAYVAULT_API_URL", "http://localhost:3320"),
		cranker:       os.Getenv("CRANKER_ADDRESS"),
		accountKey:    os.Getenv("CRANKER_ACCOUNT_KEY"),
		retryWindow:   time.Duration(envIntOr("RETRY_WINDOW_SECONDS", 1800)) * time.Second,
		retryInterval: time.Duration(envIntOr("RETRY_INTERVAL_SECONDS", 45)) * time.Second,
		maxBatchSize:  envIntOr("MAX_BATCH_SIZE", 20),
		maxRuntime:    time.Duration(envIntOr("MAX_RUNTIME_SECONDS", 780)) * time.Second,
	}

	fs.StringVar(&opts.apiURL, "api", opts.apiURL, "Base URL of the auction API")
	fs.StringVar(&opts.cranker, "cranker", opts.cranker, "Cranker account address (receives refund fees)")
	fs.StringVar(&opts.accountKey, "account-key", opts.accountKey, "Spending key for the cranker account")
	fs.IntVar(&opts.maxBatchSize, "batch-size", opts.maxBatchSize, "Bidders per refund batch")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.cranker == "" {
		return options{}, errors.New("cranker address is required (CRANKER_ADDRESS or -cranker)")
	}
	if opts.accountKey == "" {
		return options{}, errors.New("cranker account key is required (CRANKER_ACCOUNT_KEY or -account-key)")
	}
	if opts.maxBatchSize <= 0 {
		return options{}, errors.New("batch size must be positive")
	}
	return opts, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// apiError is a non-2xx response carrying the service's failure code
type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

func isCode(err error, code string) bool {
	var apiErr *apiError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

type client struct {
	base string
	http *http.Client
}

func (c *client) do(method, path string, headers map[string]string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var fail models.ErrorResponse
		_ = json.Unmarshal(raw, &fail)
		msg := fail.Message
		if msg == "" {
			msg = fail.Error
		}
		return &apiError{Status: resp.StatusCode, Code: fail.Code, Message: msg}
	}

	if out != nil {
		return json.Unmarshal(raw, out)
	}
	return nil
}

func (c *client) getDay(dayIndex int64) (models.AuctionDay, error) {
	var day models.AuctionDay
	err := c.do(http.MethodGet, fmt.Sprintf("/days/%d", dayIndex), nil, nil, &day)
	return day, err
}

func (c *client) getReceipts(dayIndex int64) (models.DayReceipts, error) {
	var receipts models.DayReceipts
	err := c.do(http.MethodGet, fmt.Sprintf("/days/%d/receipts", dayIndex), nil, nil, &receipts)
	return receipts, err
}

func (c *client) getConfig() (models.Config, error) {
	var config models.Config
	err := c.do(http.MethodGet, "/config", nil, nil, &config)
	return config, err
}

// maybeInitDay ensures the day row exists. Failures are logged, not
// fatal: settlement works as long as someone else already created it.
func maybeInitDay(c *client, dayIndex int64) {
	err := c.do(http.MethodPost, "/days", nil, models.InitDayRequest{DayIndex: dayIndex}, nil)
	if err != nil {
		slog.Warn("init_day failed", "day_index", dayIndex, "error", err)
		return
	}
	slog.Info("init_day: ensured day", "day_index", dayIndex)
}

// settleWithRetry closes the day, retrying while it reports too_early.
// An already_finalized response means another cranker won the race.
func settleWithRetry(c *client, dayIndex int64, recipient string, window, interval time.Duration) error {
	body := models.SettleDayRequest{Recipient: recipient}
	start := time.Now()
	attempt := 0

	for {
		attempt++
		var result models.SettleDayResponse
		err := c.do(http.MethodPost, fmt.Sprintf("/days/%d/settle", dayIndex), nil, body, &result)
		if err == nil {
			slog.Info("settle_day: success",
				"day_index", dayIndex,
				"winner", result.Winner,
				"highest_bid", humanize.Comma(result.HighestBid),
				"refund_pool", humanize.Comma(result.RefundPoolRemaining),
				"fee_pool", humanize.Comma(result.FeePoolRemaining),
			)
			return nil
		}
		if isCode(err, models.CodeAlreadyFinalized) {
			slog.Info("settle_day: already finalized", "day_index", dayIndex)
			return nil
		}
		if isCode(err, models.CodeTooEarly) {
			if time.Since(start) > window {
				return fmt.Errorf("settle_day: too early beyond retry window: %w", err)
			}
			slog.Info("settle_day: too early, retrying", "day_index", dayIndex)
			time.Sleep(interval)
			continue
		}
		if time.Since(start) > window {
			return err
		}
		backoff := interval * time.Duration(attempt)
		if backoff > time.Minute {
			backoff = time.Minute
		}
		slog.Warn("settle_day: retrying after error", "day_index", dayIndex, "error", err)
		time.Sleep(backoff)
	}
}

// refundLosers drains the day's refund queue in batches. A failed batch
// is skipped, not fatal; the next run will pick its bidders up again.
func refundLosers(c *client, opts options, dayIndex int64) error {
	day, err := c.getDay(dayIndex)
	if err != nil {
		return fmt.Errorf("refunds: failed to load day %d: %w", dayIndex, err)
	}
	if day.Status != models.DayStatusFinalized {
		slog.Info("refunds: day not finalized, skipping", "day_index", dayIndex)
		return nil
	}
	if day.RefundCountTotal > 0 && day.RefundCountCompleted >= day.RefundCountTotal {
		slog.Info("refunds: already completed", "day_index", dayIndex)
		return nil
	}

	listing, err := c.getReceipts(dayIndex)
	if err != nil {
		return fmt.Errorf("refunds: failed to list receipts: %w", err)
	}

	var losers []models.BidReceipt
	for _, receipt := range listing.Receipts {
		if receipt.Refunded {
			continue
		}
		if receipt.Bidder == day.Winner {
			continue
		}
		losers = append(losers, receipt)
	}
	if len(losers) == 0 {
		slog.Info("refunds: no losers to refund", "day_index", dayIndex)
		return nil
	}

	headers := map[string]string{"X-Account-Key": opts.accountKey}
	start := time.Now()
	totalRefunded := 0

	for i := 0; i < len(losers); i += opts.maxBatchSize {
		if time.Since(start) > opts.maxRuntime {
			slog.Warn("refunds: max runtime reached, stopping", "day_index", dayIndex)
			break
		}

		end := i + opts.maxBatchSize
		if end > len(losers) {
			end = len(losers)
		}
		batch := losers[i:end]

		req := models.RefundBatchRequest{Cranker: opts.cranker}
		for _, receipt := range batch {
			req.Bidders = append(req.Bidders, receipt.Bidder)
			req.Refs = append(req.Refs, receipt.Address, receipt.Bidder)
		}

		var result models.RefundBatchResponse
		err := c.do(http.MethodPost, fmt.Sprintf("/days/%d/refunds", dayIndex), headers, req, &result)
		if err != nil {
			slog.Warn("refunds: batch failed", "day_index", dayIndex, "error", err)
			continue
		}
		totalRefunded += result.Processed
		slog.Info("refunds: processed batch",
			"processed", result.Processed,
			"skipped", result.Skipped,
			"completed", fmt.Sprintf("%d/%d", result.RefundCountCompleted, result.RefundCountTotal),
			"refund_pool", humanize.Comma(result.RefundPoolRemaining),
			"fee_pool", humanize.Comma(result.FeePoolRemaining),
		)
	}

	slog.Info("refunds: done", "day_index", dayIndex, "bidders_processed", totalRefunded)
	return nil
}

func run(opts options) error {
	c := &client{base: opts.apiURL, http: &http.Client{Timeout: 30 * time.Second}}

	targetDay := models.DayIndexAt(time.Now()) - 1
	slog.Info("starting settlement", "day_index", targetDay)

	config, err := c.getConfig()
	if err != nil {
		return fmt.Errorf("failed to load auction config: %w", err)
	}

	if _, err := c.getDay(targetDay); isCode(err, models.CodeDayNotFound) {
		maybeInitDay(c, targetDay)
	} else if err != nil {
		return fmt.Errorf("failed to load day %d: %w", targetDay, err)
	}

	if err := settleWithRetry(c, targetDay, config.Recipient, opts.retryWindow, opts.retryInterval); err != nil {
		return err
	}

	return refundLosers(c, opts, targetDay)
}

func main() {
	_ = godotenv.Load()

	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	if err := run(opts); err != nil {
		slog.Error("crank failed", "error", err)
		os.Exit(1)
	}
}
