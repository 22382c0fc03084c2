// Package remote talks to the expense cloud functions.
//
// It is a pure transport: it encodes requests, checks the per-route success
// status and decodes responses. Broadcasting changes is the caller's job.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"expensinator/internal/core"
	"expensinator/internal/log"
)

const (
	contentTypeJSON = "application/json"
	contentTypePNG  = "image/png"

	// maxBodyBytes caps what is read from any response.
	maxBodyBytes = 8 << 20
)

// Default confirmation messages, used when the server answers with an empty body.
const (
	MsgExpenseAdded    = "Expense added successfully."
	MsgExpensesUpdated = "Expenses updated successfully."
	MsgExpensesDeleted = "Expenses deleted successfully."
)

var ErrEmptyImage = errors.New("empty image")

// UpdateRequest is the body of a bulk update. The two arrays are sent as
// given; no index correspondence between them is assumed.
type UpdateRequest struct {
	OldExpenseIDs []int64        `json:"oldExpenseIDs"`
	NewExpenses   []core.Expense `json:"newExpenses"`
}

// UploadResponse is returned by the blob upload function.
type UploadResponse struct {
	BlobURL string `json:"blobUrl"`
}

// Client calls the cloud functions relative to a base URL.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	logger     *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient injects the HTTP client, e.g. one using log.Transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for failed calls.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l.WithComponent(log.ComponentRemote) }
}

// NewClient validates baseURL and builds a client. The default HTTP client
// has a 30s timeout.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: missing host", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    u,
		logger:     log.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the resolved base URL.
func (c *Client) BaseURL() string { return c.baseURL.String() }

// ListExpenses fetches every expense.
func (c *Client) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	body, err := c.do(ctx, RouteGetExpenses, nil, "")
	if err != nil {
		return nil, err
	}
	var expenses []core.Expense
	if err := decode(RouteGetExpenses, body, &expenses); err != nil {
		return nil, err
	}
	for i := range expenses {
		expenses[i].EnsureLocalID()
	}
	return expenses, nil
}

// ListCategories fetches the categories.
func (c *Client) ListCategories(ctx context.Context) ([]core.Category, error) {
	body, err := c.do(ctx, RouteGetCategories, nil, "")
	if err != nil {
		return nil, err
	}
	var categories []core.Category
	if err := decode(RouteGetCategories, body, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// AddExpense creates one expense. Only 201 is success.
func (c *Client) AddExpense(ctx context.Context, e core.Expense) (string, error) {
	body, err := c.doJSON(ctx, RouteAddExpense, e)
	if err != nil {
		return "", err
	}
	return message(body, MsgExpenseAdded), nil
}

// UpdateExpenses replaces oldIDs with newExpenses in one request. Only 200 is success.
func (c *Client) UpdateExpenses(ctx context.Context, oldIDs []int64, newExpenses []core.Expense) (string, error) {
	req := UpdateRequest{OldExpenseIDs: oldIDs, NewExpenses: newExpenses}
	if req.OldExpenseIDs == nil {
		req.OldExpenseIDs = []int64{}
	}
	if req.NewExpenses == nil {
		req.NewExpenses = []core.Expense{}
	}
	body, err := c.doJSON(ctx, RouteUpdateExpenses, req)
	if err != nil {
		return "", err
	}
	return message(body, MsgExpensesUpdated), nil
}

// DeleteExpenses removes the given expenses; the full records travel in the
// DELETE body. Only 200 is success.
func (c *Client) DeleteExpenses(ctx context.Context, expenses []core.Expense) (string, error) {
	if expenses == nil {
		expenses = []core.Expense{}
	}
	body, err := c.doJSON(ctx, RouteDeleteExpenses, expenses)
	if err != nil {
		return "", err
	}
	return message(body, MsgExpensesDeleted), nil
}

// UploadReceipt stores image bytes in the blob store and returns their public URL.
func (c *Client) UploadReceipt(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", &TransportError{Operation: RouteUploadReceipt.Operation, Err: ErrEmptyImage}
	}
	body, err := c.do(ctx, RouteUploadReceipt, bytes.NewReader(image), contentTypePNG)
	if err != nil {
		return "", err
	}
	var resp UploadResponse
	if err := decode(RouteUploadReceipt, body, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.BlobURL) == "" {
		return "", &DecodingError{Operation: RouteUploadReceipt.Operation, Err: errors.New("missing blobUrl")}
	}
	return resp.BlobURL, nil
}

func (c *Client) doJSON(ctx context.Context, route Route, payload any) ([]byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, &TransportError{Operation: route.Operation, Err: fmt.Errorf("encode request: %w", err)}
	}
	return c.do(ctx, route, bytes.NewReader(b), contentTypeJSON)
}

func (c *Client) do(ctx context.Context, route Route, body io.Reader, contentType string) ([]byte, error) {
	ref, err := url.Parse(route.Path)
	if err != nil {
		return nil, &TransportError{Operation: route.Operation, Err: err}
	}
	target := c.baseURL.ResolveReference(ref)

	req, err := http.NewRequestWithContext(ctx, route.Method, target.String(), body)
	if err != nil {
		return nil, &TransportError{Operation: route.Operation, Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", contentTypeJSON)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "Cloud function unreachable",
			log.NewFields().
				WithOperation(route.Operation).
				WithErrorType(log.ErrorTypeNetwork).
				WithError(err).
				ToSlice()...)
		return nil, &TransportError{Operation: route.Operation, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &TransportError{Operation: route.Operation, Err: fmt.Errorf("read response: %w", err)}
	}

	if !route.Success(resp.StatusCode) {
		c.logger.WarnContext(ctx, "Cloud function returned failure status",
			log.NewFields().
				WithOperation(route.Operation).
				WithErrorType(log.ErrorTypeRemote).
				WithHTTPResponse(resp.StatusCode, 0, false).
				With(log.FieldBody, string(data)).
				ToSlice()...)
		return nil, &RemoteOperationFailedError{
			Operation:  route.Operation,
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}
	return data, nil
}

func decode(route Route, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return &DecodingError{Operation: route.Operation, Err: err}
	}
	return nil
}

func message(body []byte, fallback string) string {
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return msg
	}
	return fallback
}
