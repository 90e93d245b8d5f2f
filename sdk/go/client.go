package donortracksdk

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
	"time"
)

// Client is a minimal donortrack HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	// ActorID is sent as X-Actor-Id when no token is set.
	ActorID    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/api",
		Timeout:  10 * time.Second,
	}
}

type Event struct {
	ID          int64  `json:"event_id"`
	Name        string `json:"name"`
	Location    string `json:"location"`
	Date        string `json:"date"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

type Donor struct {
	ID               int64   `json:"donor_id,omitempty"`
	FirstName        string  `json:"first_name,omitempty"`
	NickName         string  `json:"nick_name,omitempty"`
	LastName         string  `json:"last_name,omitempty"`
	PMM              string  `json:"pmm"`
	OrganizationName string  `json:"organization_name,omitempty"`
	City             string  `json:"city,omitempty"`
	TotalDonations   float64 `json:"total_donations,omitempty"`
	CreatedAt        string  `json:"created_at,omitempty"`
}

type Task struct {
	ID        int64   `json:"task_id"`
	EventID   int64   `json:"event_id"`
	DonorID   int64   `json:"donor_id"`
	Status    string  `json:"status"`
	Reason    *string `json:"reason"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

// TaskRow is a task joined with its donor.
type TaskRow struct {
	Task
	FirstName        string  `json:"first_name"`
	NickName         string  `json:"nick_name"`
	LastName         string  `json:"last_name"`
	PMM              string  `json:"pmm"`
	OrganizationName string  `json:"organization_name"`
	City             string  `json:"city"`
	TotalDonations   float64 `json:"total_donations"`
}

type PMMSummary struct {
	PMM            string `json:"pmm"`
	PendingCount   int    `json:"pending_count"`
	CompletedCount int    `json:"completed_count"`
	ApprovedCount  int    `json:"approved_count"`
	RejectedCount  int    `json:"rejected_count"`
}

type Activity struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type ActivityPage struct {
	Items      []Activity `json:"items"`
	NextCursor int64      `json:"next_cursor"`
}

type SetupResult struct {
	EventID       int64   `json:"event_id"`
	DonorIDs      []int64 `json:"donor_ids"`
	TaskIDs       []int64 `json:"task_ids"`
	CreatedDonors int     `json:"created_donors"`
	ReusedDonors  int     `json:"reused_donors"`
	Skipped       []struct {
		Row    int    `json:"row"`
		Reason string `json:"reason"`
	} `json:"skipped"`
}

// APIError wraps non-2xx responses. Code and Message come from the error
// envelope when the body carries one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.StatusCode == http.StatusNotFound
}

type idResponse struct {
	ID  int64   `json:"id"`
	IDs []int64 `json:"ids"`
}

// Login exchanges a username for a bearer token and keeps it on the client.
func (c *Client) Login(ctx context.Context, username string) ([]string, error) {
	var resp struct {
		Token string   `json:"token"`
		Roles []string `json:"roles"`
	}
	if err := c.do(ctx, http.MethodPost, "auth/login", map[string]string{"username": username}, &resp); err != nil {
		return nil, err
	}
	c.BearerToken = resp.Token
	return resp.Roles, nil
}

func (c *Client) CreateEvent(ctx context.Context, name, location, date, description string) (int64, error) {
	body := map[string]string{"name": name}
	if location != "" {
		body["location"] = location
	}
	if date != "" {
		body["date"] = date
	}
	if description != "" {
		body["description"] = description
	}
	var resp idResponse
	err := c.do(ctx, http.MethodPost, "events", body, &resp)
	return resp.ID, err
}

func (c *Client) ListEvents(ctx context.Context) ([]Event, error) {
	var resp []Event
	err := c.do(ctx, http.MethodGet, "events", nil, &resp)
	return resp, err
}

func (c *Client) GetEvent(ctx context.Context, id int64) (Event, error) {
	var resp Event
	err := c.do(ctx, http.MethodGet, "events/"+strconv.FormatInt(id, 10), nil, &resp)
	return resp, err
}

// SetupEvent creates an event and invites the upstream donors of its cities.
func (c *Client) SetupEvent(ctx context.Context, name, location string, cities []string, limit int) (SetupResult, error) {
	body := map[string]any{
		"event": map[string]string{"name": name, "location": location},
		"limit": limit,
	}
	if len(cities) > 0 {
		body["cities"] = cities
	}
	var resp SetupResult
	err := c.do(ctx, http.MethodPost, "events/setup", body, &resp)
	return resp, err
}

func (c *Client) CreateDonor(ctx context.Context, d Donor) (int64, error) {
	d.ID, d.CreatedAt = 0, ""
	var resp idResponse
	err := c.do(ctx, http.MethodPost, "donors", d, &resp)
	return resp.ID, err
}

func (c *Client) CreateDonors(ctx context.Context, donors []Donor) ([]int64, error) {
	for i := range donors {
		donors[i].ID, donors[i].CreatedAt = 0, ""
	}
	var resp idResponse
	err := c.do(ctx, http.MethodPost, "donors/batch", donors, &resp)
	return resp.IDs, err
}

func (c *Client) ListDonors(ctx context.Context) ([]Donor, error) {
	var resp []Donor
	err := c.do(ctx, http.MethodGet, "donors", nil, &resp)
	return resp, err
}

func (c *Client) FindDonor(ctx context.Context, firstName, lastName string) (Donor, error) {
	q := url.Values{"first_name": {firstName}, "last_name": {lastName}}
	var resp Donor
	err := c.do(ctx, http.MethodGet, "donors/find?"+q.Encode(), nil, &resp)
	return resp, err
}

func (c *Client) CreateTasks(ctx context.Context, eventID int64, donorIDs []int64) ([]int64, error) {
	var resp idResponse
	err := c.do(ctx, http.MethodPost, "tasks", map[string]any{"event_id": eventID, "donor_ids": donorIDs}, &resp)
	return resp.IDs, err
}

// Approve moves a task to approved.
func (c *Client) Approve(ctx context.Context, taskID int64) (Task, error) {
	return c.updateStatus(ctx, taskID, "approved", nil)
}

// Reject moves a task to rejected, recording reason when non-empty.
func (c *Client) Reject(ctx context.Context, taskID int64, reason string) (Task, error) {
	return c.updateStatus(ctx, taskID, "rejected", &reason)
}

func (c *Client) updateStatus(ctx context.Context, taskID int64, status string, reason *string) (Task, error) {
	body := map[string]any{"task_id": taskID, "status": status}
	if reason != nil {
		body["reason"] = *reason
	}
	var resp Task
	err := c.do(ctx, http.MethodPut, "tasks/status", body, &resp)
	return resp, err
}

func (c *Client) ListTasks(ctx context.Context) ([]TaskRow, error) {
	var resp []TaskRow
	err := c.do(ctx, http.MethodGet, "tasks", nil, &resp)
	return resp, err
}

func (c *Client) EventTasks(ctx context.Context, eventID int64) ([]TaskRow, error) {
	var resp []TaskRow
	err := c.do(ctx, http.MethodGet, "events/"+strconv.FormatInt(eventID, 10)+"/tasks", nil, &resp)
	return resp, err
}

func (c *Client) PMMTasks(ctx context.Context, pmm string) ([]TaskRow, error) {
	var resp []TaskRow
	err := c.do(ctx, http.MethodGet, "pmms/"+url.PathEscape(pmm)+"/tasks", nil, &resp)
	return resp, err
}

func (c *Client) PMMSummaries(ctx context.Context) ([]PMMSummary, error) {
	var resp []PMMSummary
	err := c.do(ctx, http.MethodGet, "pmms/summary", nil, &resp)
	return resp, err
}

// ActivityPage returns up to limit entries after cursor.
func (c *Client) ActivityPage(ctx context.Context, limit int, cursor int64) (ActivityPage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor > 0 {
		q.Set("after", strconv.FormatInt(cursor, 10))
	}
	endpoint := "activity"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp ActivityPage
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.ActorID != "":
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code, apiErr.Message = env.Error.Code, env.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
