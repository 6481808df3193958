// internal/clients/library_client.go
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

	"librarium/internal/catalog"
	"librarium/internal/domain"
	"librarium/internal/httpapi"
	"librarium/internal/membership"
)

// APIError is a non-success response decoded from the error envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("librarium: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// StatusOf returns the HTTP status carried by an *APIError, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// ListOptions selects a page of a listing. Nil fields are left to the server defaults.
type ListOptions struct {
	Skip  *int
	Limit *int
}

func (o *ListOptions) values() url.Values {
	q := url.Values{}
	if o == nil {
		return q
	}
	if o.Skip != nil {
		q.Set("skip", strconv.Itoa(*o.Skip))
	}
	if o.Limit != nil {
		q.Set("limit", strconv.Itoa(*o.Limit))
	}
	return q
}

type LibraryClient struct {
	baseURL string
	http    *http.Client
}

// NewLibraryClient talks to the API at baseURL. A nil httpClient uses http.DefaultClient.
func NewLibraryClient(baseURL string, httpClient *http.Client) *LibraryClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &LibraryClient{baseURL: baseURL, http: httpClient}
}

func (c *LibraryClient) Health(ctx context.Context) error {
	var out map[string]string
	return c.do(ctx, http.MethodGet, "/health", nil, nil, http.StatusOK, &out)
}

// ---------- users ----------

func (c *LibraryClient) CreateUser(ctx context.Context, name, email string) (*domain.User, error) {
	var user domain.User
	req := membership.CreateUserRequest{Name: name, Email: email}
	if err := c.do(ctx, http.MethodPost, "/users", nil, req, http.StatusCreated, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *LibraryClient) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var user domain.User
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/users/%d", id), nil, nil, http.StatusOK, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *LibraryClient) ListUsers(ctx context.Context, opts *ListOptions) ([]*domain.User, error) {
	var users []*domain.User
	if err := c.do(ctx, http.MethodGet, "/users", opts.values(), nil, http.StatusOK, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *LibraryClient) UpdateUser(ctx context.Context, id int64, update membership.UserUpdate) (*domain.User, error) {
	var user domain.User
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/users/%d", id), nil, update, http.StatusOK, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUserLoans lists a user's loans. A nil activeOnly returns every loan.
func (c *LibraryClient) ListUserLoans(ctx context.Context, userID int64, activeOnly *bool) ([]*domain.Loan, error) {
	q := url.Values{}
	if activeOnly != nil {
		q.Set("active_only", strconv.FormatBool(*activeOnly))
	}
	var loans []*domain.Loan
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/users/%d/loans", userID), q, nil, http.StatusOK, &loans); err != nil {
		return nil, err
	}
	return loans, nil
}

// ---------- books ----------

// CreateBook adds a title. A nil totalCopies lets the server apply its default.
func (c *LibraryClient) CreateBook(ctx context.Context, title, author string, totalCopies *int) (*domain.Book, error) {
	var book domain.Book
	req := catalog.CreateBookRequest{Title: title, Author: author, TotalCopies: totalCopies}
	if err := c.do(ctx, http.MethodPost, "/books", nil, req, http.StatusCreated, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

func (c *LibraryClient) GetBook(ctx context.Context, id int64) (*domain.Book, error) {
	var book domain.Book
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/books/%d", id), nil, nil, http.StatusOK, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

func (c *LibraryClient) ListBooks(ctx context.Context, opts *ListOptions) ([]*domain.Book, error) {
	var books []*domain.Book
	if err := c.do(ctx, http.MethodGet, "/books", opts.values(), nil, http.StatusOK, &books); err != nil {
		return nil, err
	}
	return books, nil
}

func (c *LibraryClient) UpdateBook(ctx context.Context, id int64, update catalog.BookUpdate) (*domain.Book, error) {
	var book domain.Book
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/books/%d", id), nil, update, http.StatusOK, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

func (c *LibraryClient) Availability(ctx context.Context, id int64) (*domain.Availability, error) {
	var a domain.Availability
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/books/%d/availability", id), nil, nil, http.StatusOK, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// ---------- loans ----------

func (c *LibraryClient) Borrow(ctx context.Context, userID, bookID int64) (*domain.Loan, error) {
	var loan domain.Loan
	req := map[string]int64{"user_id": userID, "book_id": bookID}
	if err := c.do(ctx, http.MethodPost, "/loans", nil, req, http.StatusCreated, &loan); err != nil {
		return nil, err
	}
	return &loan, nil
}

func (c *LibraryClient) Return(ctx context.Context, loanID int64) (*domain.Loan, error) {
	var loan domain.Loan
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/loans/%d/return", loanID), nil, nil, http.StatusOK, &loan); err != nil {
		return nil, err
	}
	return &loan, nil
}

func (c *LibraryClient) GetLoan(ctx context.Context, id int64) (*domain.Loan, error) {
	var loan domain.Loan
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/loans/%d", id), nil, nil, http.StatusOK, &loan); err != nil {
		return nil, err
	}
	return &loan, nil
}

// ListLoans lists loans filtered by status ("", all, active or overdue).
func (c *LibraryClient) ListLoans(ctx context.Context, status domain.LoanStatus, opts *ListOptions) ([]*domain.Loan, error) {
	q := opts.values()
	if status != "" {
		q.Set("status", string(status))
	}
	var loans []*domain.Loan
	if err := c.do(ctx, http.MethodGet, "/loans", q, nil, http.StatusOK, &loans); err != nil {
		return nil, err
	}
	return loans, nil
}

func (c *LibraryClient) LoanEvents(ctx context.Context, loanID int64) ([]domain.Event, error) {
	var events []domain.Event
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/loans/%d/events", loanID), nil, nil, http.StatusOK, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// ExportLoansCSV returns the raw CSV export.
func (c *LibraryClient) ExportLoansCSV(ctx context.Context) ([]byte, error) {
	resp, err := c.send(ctx, http.MethodGet, "/loans/export/csv", nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read export: %w", err)
	}
	return data, nil
}

func (c *LibraryClient) do(ctx context.Context, method, path string, query url.Values, body any, want int, out any) error {
	resp, err := c.send(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *LibraryClient) send(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	return resp, nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var envelope httpapi.ErrorBody
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		apiErr.Message = fmt.Sprintf("unexpected status code: %d", resp.StatusCode)
		return apiErr
	}
	apiErr.Code = envelope.Error.Code
	apiErr.Message = envelope.Error.Message
	apiErr.Details = envelope.Error.Details
	return apiErr
}
