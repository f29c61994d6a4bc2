// Package indexer wraps the V2 REST blockchain indexer the collector pulls
// transaction histories from. One client instance is shared per process and
// paces its own requests to stay under the upstream rate limit.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

const (
	DefaultBaseURL = "https://api.etherscan.io/v2/api"

	// Minimum gap enforced before every outbound request.
	requestInterval = 400 * time.Millisecond

	requestTimeout = 30 * time.Second

	DefaultStartBlock = 0
	DefaultEndBlock   = 99999999
	maxOffset         = 10000
)

// IndexerError is returned for upstream rejections: NOTOK responses,
// non-2xx statuses, and malformed payloads.
type IndexerError struct {
	Message string
	Detail  string
}

func (e *IndexerError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("indexer: %s: %s", e.Message, e.Detail)
	}
	return fmt.Sprintf("indexer: %s", e.Message)
}

// RawTransaction mirrors the upstream record shape. All numeric fields
// arrive as decimal strings.
type RawTransaction struct {
	BlockNumber     string `json:"blockNumber"`
	TimeStamp       string `json:"timeStamp"`
	Hash            string `json:"hash"`
	From            string `json:"from"`
	To              string `json:"to"`
	Value           string `json:"value"`
	Input           string `json:"input"`
	MethodID        string `json:"methodId"`
	ContractAddress string `json:"contractAddress"`
	TokenSymbol     string `json:"tokenSymbol"`
	TokenDecimal    string `json:"tokenDecimal"`
	IsError         string `json:"isError"`
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// Client is a rate-limited V2 indexer client safe for concurrent use.
// Concurrent callers serialize on the pacing gate, so the worker pool in
// the collector never exceeds the upstream quota.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client

	mu       sync.Mutex
	lastCall time.Time
	interval time.Duration
	sleep    func(time.Duration)
}

func NewClient(apiKey string) *Client {
	return &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: requestTimeout},
		// Seeding lastCall makes even the first request wait out the
		// interval, matching the upstream's expectation.
		lastCall: time.Now(),
		interval: requestInterval,
		sleep:    time.Sleep,
	}
}

// WithBaseURL points the client at a different upstream. Used by tests and
// self-hosted indexer deployments.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = base
	return c
}

// GetNormalTransactions fetches native-value transactions for an address.
// sort is "asc" or "desc" ("desc" returns newest first).
func (c *Client) GetNormalTransactions(ctx context.Context, chainID int64, address string, startBlock, endBlock int64, sort string) ([]RawTransaction, error) {
	return c.getTxPage(ctx, "txlist", chainID, address, startBlock, endBlock, sort)
}

// GetERC20Transfers fetches token-transfer events for an address.
func (c *Client) GetERC20Transfers(ctx context.Context, chainID int64, address string, startBlock, endBlock int64, sort string) ([]RawTransaction, error) {
	return c.getTxPage(ctx, "tokentx", chainID, address, startBlock, endBlock, sort)
}

func (c *Client) getTxPage(ctx context.Context, action string, chainID int64, address string, startBlock, endBlock int64, sort string) ([]RawTransaction, error) {
	params := url.Values{}
	params.Set("chainid", strconv.FormatInt(chainID, 10))
	params.Set("module", "account")
	params.Set("action", action)
	params.Set("address", address)
	params.Set("startblock", strconv.FormatInt(startBlock, 10))
	params.Set("endblock", strconv.FormatInt(endBlock, 10))
	params.Set("page", "1")
	params.Set("offset", strconv.Itoa(maxOffset))
	params.Set("sort", sort)
	params.Set("apikey", c.apiKey)

	env, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}

	if env.Message == "No transactions found" {
		return nil, nil
	}
	if env.Status != "1" {
		detail := ""
		_ = json.Unmarshal(env.Result, &detail)
		return nil, &IndexerError{Message: env.Message, Detail: detail}
	}

	var txs []RawTransaction
	if err := json.Unmarshal(env.Result, &txs); err != nil {
		return nil, &IndexerError{Message: "malformed result payload", Detail: err.Error()}
	}
	return txs, nil
}

// get applies the pacing gate, issues the request with the caller's
// deadline, and decodes the response envelope.
func (c *Client) get(ctx context.Context, params url.Values) (*envelope, error) {
	c.pace()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("indexer: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &IndexerError{Message: "request failed", Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &IndexerError{Message: fmt.Sprintf("upstream returned HTTP %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &IndexerError{Message: "read body", Detail: err.Error()}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &IndexerError{Message: "malformed response", Detail: err.Error()}
	}

	if env.Status == "0" && env.Message == "NOTOK" {
		var detail string
		_ = json.Unmarshal(env.Result, &detail)
		log.Printf("[Indexer] upstream NOTOK: %s", detail)
	}
	return &env, nil
}

// pace blocks until at least the configured interval has passed since the
// previous request left this client.
func (c *Client) pace() {
	c.mu.Lock()
	now := time.Now()
	wait := c.interval - now.Sub(c.lastCall)
	if wait < 0 {
		wait = 0
	}
	c.lastCall = now.Add(wait)
	c.mu.Unlock()

	if wait > 0 {
		c.sleep(wait)
	}
}
