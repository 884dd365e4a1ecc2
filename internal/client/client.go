// Package client implements the Loop API HTTP client.
//
// The client handles all communication with the Loop backend:
// - POST /api/send_message - Insert a human -> bot message in a thread
// - GET  /api/get_messages - Merged message stream for a viewer
// - POST /api/bot/process  - Bot queue processing (dry-run preview or publish)
// - GET  /api/feed         - Digest-style read path for a loop member
// - POST /api/bot_post_digest - Post a digest as a bot message
// - GET  /health           - Backend/REST reachability probe
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 10 * time.Second

// maxResponseSize limits response body reads to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// Message audience classifications used by the backend.
const (
	AudienceInboxToBot = "inbox_to_bot"
	AudienceBotToUser  = "bot_to_user"
)

// Credential identifies the caller of an authenticated endpoint.
//
// When Token is set, requests carry an Authorization: Bearer header. When only
// ProfileID is set, the legacy simple mode is used and requests carry an
// X-User-Id header instead (the backend accepts either).
type Credential struct {
	Token     string
	ProfileID string
}

// IsZero reports whether no credential material is present.
func (c Credential) IsZero() bool {
	return c.Token == "" && c.ProfileID == ""
}

func (c Credential) apply(req *http.Request) {
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
		return
	}
	if c.ProfileID != "" {
		req.Header.Set("X-User-Id", c.ProfileID)
	}
}

// Client is the Loop API HTTP client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new Loop API client.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// Message is a single message row as returned by the backend.
// Timestamps are RFC3339 strings; callers parse them when ordering matters.
type Message struct {
	ID                 string `json:"id"`
	ThreadID           string `json:"thread_id"`
	CreatedAt          string `json:"created_at"`
	CreatedBy          string `json:"created_by"`
	AuthorMemberID     string `json:"author_member_id,omitempty"`
	Audience           string `json:"audience"`
	RecipientProfileID string `json:"recipient_profile_id,omitempty"`
	Content            string `json:"content"`
}

// SendMessageRequest is the request body for POST /api/send_message.
type SendMessageRequest struct {
	ThreadID string `json:"thread_id"`
	UserID   string `json:"user_id"`
	Content  string `json:"content"`
}

// SendMessage inserts a human -> bot message and returns the inserted row.
func (c *Client) SendMessage(ctx context.Context, cred Credential, req *SendMessageRequest) (*Message, error) {
	var resp Message
	if err := c.post(ctx, "/api/send_message", cred, nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetMessagesRequest is the request parameters for GET /api/get_messages.
type GetMessagesRequest struct {
	ThreadID string
	UserID   string
	Limit    int
}

// GetMessagesResponse is the response from GET /api/get_messages.
type GetMessagesResponse struct {
	OK    bool      `json:"ok"`
	Items []Message `json:"items"`
}

/// GetMessages fetches the merged chronological stream for a viewer:
// their own human->bot posts plus bot->user rows addressed to them.
func (c *Client) GetMessages(ctx context.Context, cred Credential, req *GetMessagesRequest) (*GetMessagesResponse, error) {
	q := url.Values{}
	q.Set("thread_id", req.ThreadID)
	q.Set("user_id", req.UserID)
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}
	var resp GetMessagesResponse
	if err := c.get(ctx, "/api/get_messages", cred, q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BotProcessRequest is the request parameters for POST /api/bot/process.
type BotProcessRequest struct {
	ThreadID string
	Limit    int
	DryRun   bool
}

// BotPreview is a proposed bot message for one recipient (dry-run only).
type BotPreview struct {
	RecipientProfileID string `json:"recipient_profile_id"`
	Content            string `json:"content"`
}

// BotProcessItem describes the handling of one source human message.
type BotProcessItem struct {
	HumanMessageID string       `json:"human_message_id"`
	ThreadID       string       `json:"thread_id"`
	Recipients     []string     `json:"recipients"`
	BotRows        []string     `json:"bot_rows"`
	Previews       []BotPreview `json:"previews"`
	SkippedReason  string       `json:"skipped_reason,omitempty"`
}

// BotProcessStats contains counters from a bot processing run.
type BotProcessStats struct {
	Scanned   int  `json:"scanned"`
	Processed int  `json:"processed"`
	Inserted  int  `json:"inserted"`
	Skipped   int  `json:"skipped"`
	DryRun    bool `json:"dry_run"`
}

// BotProcessResponse is the response from POST /api/bot/process.
type BotProcessResponse struct {
	OK     bool             `json:"ok"`
	Reason string           `json:"reason,omitempty"`
	Stats  BotProcessStats  `json:"stats"`
	Items  []BotProcessItem `json:"items"`
}

// BotProcess drives the bot queue. dry_run=true computes proposed messages
// without persisting them; dry_run=false inserts bot_to_user rows and marks
// the source messages processed. Requires an operator-level credential.
func (c *Client) BotProcess(ctx context.Context, cred Credential, req *BotProcessRequest) (*BotProcessResponse, error) {
	q := url.Values{}
	if req.ThreadID != "" {
		q.Set("thread_id", req.ThreadID)
	}
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}
	q.Set("dry_run", strconv.FormatBool(req.DryRun))
	var resp BotProcessResponse
	if err := c.post(ctx, "/api/bot/process", cred, q, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FeedRequest is the request parameters for GET /api/feed.
type FeedRequest struct {
	LoopID       string
	ForProfileID string
	Preview      bool
}

// FeedResponse is the digest returned by GET /api/feed.
type FeedResponse struct {
	LoopID         string `json:"loop_id"`
	ForProfileID   string `json:"for_profile_id"`
	ItemsCount     int    `json:"items_count"`
	WindowStart    string `json:"window_start,omitempty"`
	WindowEnd      string `json:"window_end,omitempty"`
	DigestText     string `json:"digest_text"`
	LastSeenAtPrev string `json:"last_seen_at_prev,omitempty"`
	LastSeenAtNew  string `json:"last_seen_at_new,omitempty"`
	Engine         string `json:"engine,omitempty"`
}

// Feed fetches the digest read path for a loop member. preview=true leaves
// the member's last-seen pointer untouched on the backend.
func (c *Client) Feed(ctx context.Context, cred Credential, req *FeedRequest) (*FeedResponse, error) {
	q := url.Values{}
	q.Set("loop_id", req.LoopID)
	q.Set("for_profile_id", req.ForProfileID)
	q.Set("preview", strconv.FormatBool(req.Preview))
	var resp FeedResponse
	if err := c.get(ctx, "/api/feed", cred, q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BotPostDigestRequest is the request body for POST /api/bot_post_digest.
type BotPostDigestRequest struct {
	LoopID       string `json:"loop_id"`
	ThreadID     string `json:"thread_id"`
	ForProfileID string `json:"for_profile_id"`
}

// BotPostDigestResponse is the response from POST /api/bot_post_digest.
type BotPostDigestResponse struct {
	OK         bool   `json:"ok"`
	Message    string `json:"message,omitempty"`
	DigestText string `json:"digest_text"`
}

// BotPostDigest asks the backend to post a digest as a bot message.
func (c *Client) BotPostDigest(ctx context.Context, cred Credential, req *BotPostDigestRequest) (*BotPostDigestResponse, error) {
	var resp BotPostDigestResponse
	if err := c.post(ctx, "/api/bot_post_digest", cred, nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HealthResponse is the response from GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	RestOK    bool   `json:"rest_ok"`
	DBOK      bool   `json:"db_ok"`
	LatencyMS int    `json:"latency_ms,omitempty"`
}

// Health probes the backend.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.get(ctx, "/health", Credential{}, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Error represents an error response from the Loop backend.
type Error struct {
	StatusCode int
	Body       string
}

// Detail extracts the backend's "detail" field when the body parses as JSON.
// Returns an empty string otherwise.
func (e *Error) Detail() string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal([]byte(e.Body), &payload); err != nil {
		return ""
	}
	return payload.Detail
}

func (e *Error) Error() string {
	if detail := e.Detail(); detail != "" {
		return fmt.Sprintf("loop api error (status %d): %s", e.StatusCode, detail)
	}
	return fmt.Sprintf("loop api error: unexpected status %d", e.StatusCode)
}

// post sends a POST request and decodes the JSON response.
func (c *Client) post(ctx context.Context, path string, cred Credential, query url.Values, reqBody, respBody any) error {
	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	cred.apply(req)
	if query != nil {
		req.URL.RawQuery = query.Encode()
	}

	return c.do(req, respBody)
}

// get sends a GET request with query parameters and decodes the JSON response.
func (c *Client) get(ctx context.Context, path string, cred Credential, query url.Values, respBody any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	cred.apply(req)
	if query != nil {
		req.URL.RawQuery = query.Encode()
	}

	return c.do(req, respBody)
}

func (c *Client) do(req *http.Request, respBody any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Read maxResponseSize+1 to detect oversized responses while still accepting
	// responses exactly at the limit. If we read more than maxResponseSize, reject.
	respBodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if int64(len(respBodyBytes)) > maxResponseSize {
		return fmt.Errorf("response exceeds maximum size of %d bytes", maxResponseSize)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{
			StatusCode: resp.StatusCode,
			Body:       string(respBodyBytes),
		}
	}

	if err := json.Unmarshal(respBodyBytes, respBody); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}
