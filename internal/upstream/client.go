// Package upstream talks to the external donor-data service. Responses are
// header/row tables; DonorFromRow is the only place that knows their layout.
package upstream

import (
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

const DefaultBaseURL = "https://bc-cancer-faux.onrender.com"

// ErrNoCities is returned by SearchByCities when called without any city.
var ErrNoCities = errors.New("at least one city must be provided")

// Client is a read-only client for the donor-data service.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{BaseURL: baseURL, HTTPClient: &http.Client{Timeout: timeout}, Timeout: timeout}
}

// Table is the service's positional response format.
type Table struct {
	Headers []string `json:"headers"`
	Data    [][]any  `json:"data"`
}

type City struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Error is any failure to get a usable answer from the service: transport
// errors (StatusCode 0), non-2xx responses and undecodable bodies.
type Error struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream error: %v", e.Err)
	}
	return fmt.Sprintf("upstream error: status=%d body=%s", e.StatusCode, e.Body)
}

func (e *Error) Unwrap() error { return e.Err }

// Donors returns the first limit donors of the service's full list.
func (c *Client) Donors(ctx context.Context, limit int) (Table, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(normLimit(limit)))
	var t Table
	err := c.get(ctx, "donors", q, &t)
	return t, err
}

// Cities lists the cities known to the service, numbered in response order.
func (c *Client) Cities(ctx context.Context) ([]City, error) {
	var t Table
	if err := c.get(ctx, "cities", url.Values{}, &t); err != nil {
		return nil, err
	}
	res := make([]City, 0, len(t.Data))
	for i, row := range t.Data {
		if len(row) == 0 {
			continue
		}
		res = append(res, City{ID: i, Name: cellString(row[0])})
	}
	return res, nil
}

// SearchByCities returns up to limit candidate donors located in any of cities.
func (c *Client) SearchByCities(ctx context.Context, cities []string, limit int) (Table, error) {
	q := url.Values{}
	for _, city := range cities {
		if city = strings.TrimSpace(city); city != "" {
			q.Add("cities", city)
		}
	}
	if len(q["cities"]) == 0 {
		return Table{}, ErrNoCities
	}
	q.Set("limit", strconv.Itoa(normLimit(limit)))
	var t Table
	err := c.get(ctx, "event", q, &t)
	return t, err
}

func normLimit(limit int) int {
	if limit <= 0 {
		return 1
	}
	return limit
}

func (c *Client) get(ctx context.Context, endpoint string, q url.Values, out any) error {
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: c.Timeout}
	}
	q.Set("format", "json")
	u := strings.TrimRight(c.BaseURL, "/") + "/" + endpoint + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return &Error{Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &Error{StatusCode: resp.StatusCode, Body: string(b)}
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return &Error{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode %s: %w", endpoint, err)}
	}
	return nil
}
