// Package adminapi is a client for the remote course platform admin API:
// manual order creation and the course and customer directories.
package adminapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/Shivanand-hulikatti/course-backoffice/internal/httpretry"
	"github.com/Shivanand-hulikatti/course-backoffice/internal/model"
)

const (
	pathManualRegistration = "/v1/admin-user/manual-course-registration"
	pathCourseList         = "/v1/admin-user/get-course-list"
	pathUserList           = "/v1/admin-user/get-users/list"

	maxBodyBytes = 1 << 20
)

// Config holds the settings needed to reach the admin API.
type Config struct {
	BaseURL string

	// Token is a static bearer token. It is ignored when ClientID is set.
	Token string

	// Client-credentials flow.
	TokenURL     string
	ClientID     string
	ClientSecret string

	Timeout    time.Duration
	MaxRetries int
}

// Client talks to the admin API.
type Client struct {
	baseURL string
	http    httpretry.HTTPDoer
}

// New builds a Client whose requests carry a bearer token from cfg.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("adminapi: base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("adminapi: parse base url: %w", err)
	}

	var hc *http.Client
	switch {
	case cfg.ClientID != "":
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		hc = cc.Client(ctx)
	case cfg.Token != "":
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}))
	default:
		hc = &http.Client{}
	}
	hc.Timeout = cfg.Timeout
	if hc.Timeout <= 0 {
		hc.Timeout = 30 * time.Second
	}

	return NewWithDoer(cfg.BaseURL, httpretry.NewRetryClient(hc, cfg.MaxRetries, httpretry.WithLogger(logger))), nil
}

// NewWithDoer builds a Client on top of an existing HTTPDoer.
func NewWithDoer(baseURL string, doer httpretry.HTTPDoer) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: doer}
}

// RemoteError is returned when the admin API answers with a non-2xx status.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("admin api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("admin api: status %d: %s", e.StatusCode, e.Message)
}

// Rejected returns the status and the message provided by the service, if any.
func (e *RemoteError) Rejected() (int, string) { return e.StatusCode, e.Message }

// NetworkError is returned when a request could not complete.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("admin api: %s: %v", e.Op, e.Err) }

func (e *NetworkError) Unwrap() error { return e.Err }

// CreateManualRegistration posts a registration. 200 and 201 are success.
func (c *Client) CreateManualRegistration(ctx context.Context, req model.RegistrationRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode registration: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, pathManualRegistration, nil, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	return nil
}

type courseListResponse struct {
	Courses []struct {
		ID        string `json:"_id"`
		BasicInfo struct {
			Title     string `json:"title"`
			Thumbnail string `json:"thumbnail"`
		} `json:"basicInfo"`
		Pricing struct {
			Amount float64 `json:"amount"`
		} `json:"pricing"`
	} `json:"courses"`
	Total int `json:"total"`
}

// ListCourses queries the course directory.
func (c *Client) ListCourses(ctx context.Context, f model.CourseFilter) (*model.CoursePage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(f.Page))
	q.Set("perPage", strconv.Itoa(f.PerPage))
	q.Set("orderBy", f.OrderBy)
	q.Set("searchText", f.SearchText)
	q.Set("basicStatus", f.BasicStatus)
	q.Set("status", f.Status)

	var raw courseListResponse
	if err := c.getJSON(ctx, pathCourseList, q, &raw); err != nil {
		return nil, err
	}

	page := &model.CoursePage{Courses: make([]model.CourseSummary, 0, len(raw.Courses)), Total: raw.Total}
	for _, rc := range raw.Courses {
		title := rc.BasicInfo.Title
		if title == "" {
			title = "Untitled"
		}
		page.Courses = append(page.Courses, model.CourseSummary{
			ID:        rc.ID,
			Title:     title,
			Thumbnail: rc.BasicInfo.Thumbnail,
			Price:     rc.Pricing.Amount,
		})
	}
	if page.Total == 0 {
		page.Total = len(page.Courses)
	}
	return page, nil
}

type userListResponse struct {
	Users []struct {
		ID        string `json:"_id"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
		Phones    []struct {
			Number string `json:"number"`
		} `json:"phones"`
	} `json:"users"`
	TotalUsers int `json:"totalUsers"`
}

// ListCustomers queries the customer directory.
func (c *Client) ListCustomers(ctx context.Context, f model.CustomerFilter) (*model.CustomerPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(f.Page))
	q.Set("perpage", strconv.Itoa(f.PerPage))
	if f.Search != "" {
		q.Set("searchText", f.Search)
	}

	var raw userListResponse
	if err := c.getJSON(ctx, pathUserList, q, &raw); err != nil {
		return nil, err
	}

	page := &model.CustomerPage{Customers: make([]model.CustomerSummary, 0, len(raw.Users)), Total: raw.TotalUsers}
	for _, u := range raw.Users {
		cs := model.CustomerSummary{
			ID:        u.ID,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Email:     u.Email,
		}
		for _, p := range u.Phones {
			if p.Number != "" {
				cs.Phones = append(cs.Phones, p.Number)
			}
		}
		page.Customers = append(page.Customers, cs)
	}
	return page, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, dst any) error {
	resp, err := c.do(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// do sends the request and turns non-2xx answers into *RemoteError and
// transport failures into *NetworkError. The caller closes the body.
func (c *Client) do(ctx context.Context, method, path string, q url.Values, body []byte) (*http.Response, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: method + " " + path, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, &RemoteError{StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	return resp, nil
}

// errorMessage extracts "message" or "error" from a JSON error body.
func errorMessage(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, maxBodyBytes))
	if err != nil || len(b) == 0 {
		return ""
	}
	var env struct {
		Message json.RawMessage `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return ""
	}
	for _, raw := range []json.RawMessage{env.Message, env.Error} {
		if msg := stringOrList(raw); msg != "" {
			return msg
		}
	}
	return ""
}

// Some endpoints report validation failures as a list of strings.
func stringOrList(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, "; ")
	}
	return ""
}
