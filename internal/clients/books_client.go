// internal/clients/books_client.go
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"bookshelf/internal/books"
	"bookshelf/internal/history"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// APIError is a fail or error envelope returned by the server.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Status, e.StatusCode, e.Message)
}

// Unwrap maps the server's message back onto the matching books sentinel so
// callers can use errors.Is across the wire.
func (e *APIError) Unwrap() error {
	for _, sentinel := range knownErrors {
		if sentinel.Error() == e.Message {
			return sentinel
		}
	}
	return nil
}

var knownErrors = []error{
	books.ErrInvalidPayload,
	books.ErrInvalidQuery,
	books.ErrNameRequired,
	books.ErrReadPageExceedsPageCount,
	books.ErrNegativeCount,
	books.ErrBookNotFound,
	books.ErrIDNotFound,
	books.ErrAddFailed,
	books.ErrUpdateFailed,
	books.ErrDeleteFailed,
	books.ErrListFailed,
	books.ErrGetFailed,
	books.ErrHistoryFailed,
}

// BooksClient talks to a bookshelf server. It implements books.Service.
type BooksClient struct {
	baseURL    string
	httpClient *http.Client
}

var _ books.Service = (*BooksClient)(nil)

// NewBooksClient returns a client for the server at baseURL. A nil
// httpClient gets one with a traced transport.
func NewBooksClient(baseURL string, httpClient *http.Client) *BooksClient {
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &BooksClient{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *BooksClient) AddBook(ctx context.Context, p books.Payload) (string, error) {
	var data struct {
		BookID string `json:"bookId"`
	}
	if err := c.do(ctx, http.MethodPost, "/books", p, &data); err != nil {
		return "", err
	}
	return data.BookID, nil
}

func (c *BooksClient) ListBooks(ctx context.Context, f books.Filter) ([]books.Listing, error) {
	path := "/books"
	if q := f.Values().Encode(); q != "" {
		path += "?" + q
	}
	var data struct {
		Books []books.Listing `json:"books"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}
	return data.Books, nil
}

func (c *BooksClient) GetBook(ctx context.Context, id string) (*books.Book, error) {
	var data struct {
		Book books.Book `json:"book"`
	}
	if err := c.do(ctx, http.MethodGet, "/books/"+url.PathEscape(id), nil, &data); err != nil {
		return nil, err
	}
	return &data.Book, nil
}

func (c *BooksClient) UpdateBook(ctx context.Context, id string, p books.Payload) error {
	return c.do(ctx, http.MethodPut, "/books/"+url.PathEscape(id), p, nil)
}

func (c *BooksClient) DeleteBook(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/books/"+url.PathEscape(id), nil, nil)
}

func (c *BooksClient) History(ctx context.Context, id string) ([]history.Event, error) {
	var data struct {
		Events []history.Event `json:"events"`
	}
	if err := c.do(ctx, http.MethodGet, "/books/"+url.PathEscape(id)+"/history", nil, &data); err != nil {
		return nil, err
	}
	return data.Events, nil
}

func (c *BooksClient) Changes(ctx context.Context, after int64, limit int) ([]history.Event, error) {
	q := url.Values{}
	q.Set("after", strconv.FormatInt(after, 10))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var data books.ChangesPage
	if err := c.do(ctx, http.MethodGet, "/history?"+q.Encode(), nil, &data); err != nil {
		return nil, err
	}
	return data.Events, nil
}

func (c *BooksClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return &APIError{StatusCode: resp.StatusCode, Status: books.StatusError, Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest || env.Status != books.StatusSuccess {
		return &APIError{StatusCode: resp.StatusCode, Status: env.Status, Message: env.Message}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	return nil
}

// IsNotFound reports whether err is a not-found answer from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
