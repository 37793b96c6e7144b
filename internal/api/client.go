package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/roach88/threadkeep/internal/model"
)

const defaultTimeout = 30 * time.Second

// Client calls the server API over HTTP.
//
// Thread-safety: Client is safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the client logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateConversationRequest creates a conversation together with the
// owner's member record. Both ids are client-generated.
type CreateConversationRequest struct {
	Conversation model.Conversation `json:"conversation"`
	Member       model.Member       `json:"member"`
}

// ConversationPatch is a partial update of a conversation as seen by the
// calling user. Nil fields are left unchanged; an empty non-nil slice or map
// is sent and clears the field.
type ConversationPatch struct {
	Title           *string         `json:"title,omitempty"`
	Hidden          *bool           `json:"hidden,omitempty"`
	LLMsSelected    []string        `json:"llmsSelected,omitzero"`
	MessageBranches map[string]bool `json:"messageBranches,omitzero"`
}

// CreateConversation creates a conversation on the server.
func (c *Client) CreateConversation(ctx context.Context, req CreateConversationRequest) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/api/conversations", req, nil)
	return err
}

// CreateMessage creates a message on the server.
func (c *Client) CreateMessage(ctx context.Context, msg model.Message) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/api/messages", msg, nil)
	return err
}

// UpdateConversation applies patch to the conversation.
func (c *Client) UpdateConversation(ctx context.Context, patch ConversationPatch, conversationID string) error {
	path := "/api/conversations/" + url.PathEscape(conversationID)
	_, err := c.doRequest(ctx, http.MethodPatch, path, patch, nil)
	return err
}

// Bootstrap returns every delta changed after since, oldest first, as raw
// wire frames. A nil since requests the full snapshot.
func (c *Client) Bootstrap(ctx context.Context, since *time.Time) ([]json.RawMessage, error) {
	var query url.Values
	if since != nil {
		query = url.Values{"since": {since.UTC().Format(time.RFC3339Nano)}}
	}
	data, err := c.doRequest(ctx, http.MethodGet, "/api/bootstrap", nil, query)
	if err != nil {
		return nil, err
	}
	frames, err := decodeJSON[[]json.RawMessage](data)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return frames, nil
}

// ListConversations returns the conversations owned by the caller.
func (c *Client) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/api/conversations", nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[[]model.Conversation](data)
}

// ListMessages returns the messages of the caller's conversations.
func (c *Client) ListMessages(ctx context.Context) ([]model.Message, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/api/messages", nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[[]model.Message](data)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read response: %w", method, path, err)
	}
	c.logger.Debug("api request", "method", method, "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s %s: %w", method, path, newError(resp.StatusCode, data))
	}
	return data, nil
}

func decodeJSON[T any](data []byte) (T, error) {
	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return result, nil
}
