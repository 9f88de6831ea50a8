// Package sdk provides the client-side library for the Celerix CRM.
// It supports both remote connections to crmd over HTTP and a local embedded mode.
package sdk

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

	"go.uber.org/zap"

	"github.com/celerix-dev/celerix-crm/pkg/schema"
)

// Headers understood by crmd. They mirror what the identity provider sets in front of it.
const (
	headerPrincipalID    = "X-Principal-Id"
	headerPrincipalEmail = "X-Principal-Email"
	headerPrincipalName  = "X-Principal-Name"
)

const attempts = 3

// Client is a remote client for crmd, bound to one principal.
// It implements the CRM interface.
type Client struct {
	base      string
	principal schema.Principal
	http      *http.Client
	log       *zap.SugaredLogger
	backoff   func(attempt int) time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithLogger reports retries to log.
func WithLogger(log *zap.SugaredLogger) ClientOption {
	return func(c *Client) { c.log = log }
}

// RemoteError is a non-2xx answer from crmd. It unwraps to the matching schema sentinel.
type RemoteError struct {
	Status  int
	Message string
	Field   string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("crmd: %s", http.StatusText(e.Status))
	}
	return "crmd: " + e.Message
}

func (e *RemoteError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return schema.ErrValidation
	case http.StatusUnauthorized:
		return schema.ErrUnauthenticated
	case http.StatusForbidden:
		return schema.ErrPermissionDenied
	case http.StatusNotFound:
		return schema.ErrNotFound
	}
	return nil
}

// Connect checks that crmd answers at addr and returns a client acting as p.
// addr is a base URL; a bare host:port is taken as http.
func Connect(addr string, p schema.Principal, opts ...ClientOption) (*Client, error) {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	c := &Client{
		base:      strings.TrimRight(addr, "/"),
		principal: p,
		http:      &http.Client{Timeout: 30 * time.Second},
		log:       zap.NewNop().Sugar(),
		backoff:   func(i int) time.Duration { return time.Duration((i+1)*200) * time.Millisecond },
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.do(http.MethodGet, "/healthz", nil, nil, nil); err != nil {
		return nil, fmt.Errorf("connect %s: %w", c.base, err)
	}
	return c, nil
}

// retryable reports whether a request may be sent again. Creates are never
// retried because the server assigns their ids.
func retryable(method, path string) bool {
	if method != http.MethodPost {
		return true
	}
	return strings.HasSuffix(path, "/stage") || strings.HasSuffix(path, "/complete")
}

func (c *Client) do(method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return err
		}
	}
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var err error
	for i := 0; i < attempts; i++ {
		var resp *http.Response
		resp, err = c.send(method, target, payload)
		if err == nil {
			if resp.StatusCode >= 500 && resp.StatusCode != http.StatusInternalServerError {
				err = decodeError(resp)
			} else {
				return decode(resp, out)
			}
		}
		if !retryable(method, path) {
			return err
		}

		c.log.Warnw("request failed, retrying", "attempt", i+1, "method", method, "path", path, "error", err)
		time.Sleep(c.backoff(i))
	}
	return fmt.Errorf("failed after %d attempts. last error: %w", attempts, err)
}

func (c *Client) send(method, target string, payload []byte) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, target, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(headerPrincipalID, c.principal.ID)
	if c.principal.Email != "" {
		req.Header.Set(headerPrincipalEmail, c.principal.Email)
	}
	if c.principal.NameHint != "" {
		req.Header.Set(headerPrincipalName, c.principal.NameHint)
	}
	return c.http.Do(req)
}

func decode(resp *http.Response, out any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
		Field string `json:"field"`
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if json.Unmarshal(raw, &body) != nil {
		body.Error = strings.TrimSpace(string(raw))
	}
	return &RemoteError{Status: resp.StatusCode, Message: body.Error, Field: body.Field}
}

func escape(id string) string {
	return url.PathEscape(id)
}

func (c *Client) Me() (schema.Identity, error) {
	var out schema.Identity
	err := c.do(http.MethodGet, "/api/me", nil, nil, &out)
	return out, err
}

func (c *Client) Company() (schema.Company, error) {
	var out schema.Company
	err := c.do(http.MethodGet, "/api/company", nil, nil, &out)
	return out, err
}

func (c *Client) ListProspects(f schema.ProspectFilter) ([]schema.Prospect, error) {
	q := url.Values{}
	setIf(q, "stage", string(f.Stage))
	setIf(q, "priority", string(f.Priority))
	setIf(q, "owner", f.OwnerID)
	setIf(q, "q", f.Query)
	var out []schema.Prospect
	err := c.do(http.MethodGet, "/api/prospects", q, nil, &out)
	return out, err
}

func (c *Client) SaveProspect(in schema.ProspectInput) (schema.Prospect, error) {
	var out schema.Prospect
	var err error
	if in.ID != "" {
		err = c.do(http.MethodPut, "/api/prospects/"+escape(in.ID), nil, in, &out)
	} else {
		err = c.do(http.MethodPost, "/api/prospects", nil, in, &out)
	}
	return out, err
}

func (c *Client) DeleteProspect(id string) error {
	return c.do(http.MethodDelete, "/api/prospects/"+escape(id), nil, nil, nil)
}

func (c *Client) MoveStage(id string, stage schema.Stage) (schema.Prospect, error) {
	var out schema.Prospect
	body := map[string]schema.Stage{"stage": stage}
	err := c.do(http.MethodPost, "/api/prospects/"+escape(id)+"/stage", nil, body, &out)
	return out, err
}

func (c *Client) ListActivities(f schema.ActivityFilter) ([]schema.Activity, error) {
	q := url.Values{}
	setIf(q, "prospectId", f.ProspectID)
	setIf(q, "owner", f.OwnerID)
	if f.Completed != nil {
		q.Set("completed", strconv.FormatBool(*f.Completed))
	}
	var out []schema.Activity
	err := c.do(http.MethodGet, "/api/activities", q, nil, &out)
	return out, err
}

func (c *Client) SaveActivity(in schema.ActivityInput) (schema.Activity, error) {
	var out schema.Activity
	var err error
	if in.ID != "" {
		err = c.do(http.MethodPut, "/api/activities/"+escape(in.ID), nil, in, &out)
	} else {
		err = c.do(http.MethodPost, "/api/activities", nil, in, &out)
	}
	return out, err
}

func (c *Client) DeleteActivity(id string) error {
	return c.do(http.MethodDelete, "/api/activities/"+escape(id), nil, nil, nil)
}

func (c *Client) CompleteActivity(id string, completed bool) (schema.Activity, error) {
	var out schema.Activity
	body := map[string]bool{"completed": completed}
	err := c.do(http.MethodPost, "/api/activities/"+escape(id)+"/complete", nil, body, &out)
	return out, err
}

func (c *Client) ListOpportunities(f schema.OpportunityFilter) ([]schema.Opportunity, error) {
	q := url.Values{}
	setIf(q, "funnel", string(f.FunnelType))
	setIf(q, "owner", f.OwnerID)
	var out []schema.Opportunity
	err := c.do(http.MethodGet, "/api/opportunities", q, nil, &out)
	return out, err
}

func (c *Client) CreateOpportunity(in schema.OpportunityInput) (schema.Opportunity, error) {
	var out schema.Opportunity
	err := c.do(http.MethodPost, "/api/opportunities", nil, in, &out)
	return out, err
}

func (c *Client) TeamStats() ([]schema.TeamMemberStat, error) {
	var out []schema.TeamMemberStat
	err := c.do(http.MethodGet, "/api/team/stats", nil, nil, &out)
	return out, err
}

func (c *Client) Ranking() (schema.Ranking, error) {
	var out schema.Ranking
	err := c.do(http.MethodGet, "/api/ranking", nil, nil, &out)
	return out, err
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func setIf(q url.Values, key, val string) {
	if val != "" {
		q.Set(key, val)
	}
}

var _ CRM = (*Client)(nil)

// IsRemote reports whether err came from crmd rather than the transport.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}
