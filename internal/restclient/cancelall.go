// Package restclient issues the one synchronous REST call this engine ever
// makes: a best-effort cancel-all at startup, before the WebSocket sessions
// come up, so a crashed prior run's resting orders don't linger.
package restclient

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"hftmaker/internal/signer"
)

// clockSkewBackdateMs backs the timestamp off by 6 seconds, matching the
// original engine's safety margin against clock drift on this one call.
const clockSkewBackdateMs = 6000

const recvWindow = 20000

// Client wraps a resty client configured with a 10s timeout and up to 3
// retries on transport errors or 5xx responses.
type Client struct {
	http   *resty.Client
	signer *signer.Signer
	apiKey string
	logger *slog.Logger
}

// New builds a Client targeting baseURL.
func New(baseURL, apiKey string, sign *signer.Signer, logger *slog.Logger) *Client {
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &Client{http: http, signer: sign, apiKey: apiKey, logger: logger}
}

// cancelAllResponse mirrors the fields of the venue's cancel-all response
// this client actually inspects.
type cancelAllResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
}

// CancelAll issues POST /v5/order/cancel-all for symbol. It is best-effort:
// any failure is logged and swallowed, since a missing cancel-all at
// startup only risks stale resting orders, not an unsafe state for the
// engine itself.
func (c *Client) CancelAll(ctx context.Context, nowMs uint64, symbol string) {
	ts := nowMs - clockSkewBackdateMs
	body := fmt.Sprintf(`{"category":"linear","symbol":%q}`, symbol)

	var sig [signer.HexLen]byte
	c.signer.SignRequest(ts, c.apiKey, recvWindow, []byte(body), &sig)

	var result cancelAllResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-BAPI-API-KEY", c.apiKey).
		SetHeader("X-BAPI-TIMESTAMP", fmt.Sprintf("%d", ts)).
		SetHeader("X-BAPI-SIGN", string(sig[:])).
		SetHeader("X-BAPI-RECV-WINDOW", fmt.Sprintf("%d", recvWindow)).
		SetBody(body).
		SetResult(&result).
		Post("/v5/order/cancel-all")
	if err != nil {
		c.logger.Warn("startup cancel-all failed", "error", err)
		return
	}
	if resp.StatusCode() != 200 || result.RetCode != 0 {
		c.logger.Warn("startup cancel-all rejected", "status", resp.StatusCode(), "retCode", result.RetCode, "retMsg", result.RetMsg)
		return
	}
	c.logger.Info("startup cancel-all succeeded", "symbol", symbol)
}
