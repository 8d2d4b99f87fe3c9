// Package client is a Go client of the activities API.
//
// Every response re-anchors the client's Clock on the server time, so that stages can be resolved locally
// between requests without trusting the local wall clock.
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
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/jukwaa/core"
	"github.com/trezcool/jukwaa/core/activity"
	"github.com/trezcool/jukwaa/core/clocksync"
	"github.com/trezcool/jukwaa/core/stage"
)

// Client is a minimal activities API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
	Clock       *clocksync.Clock
	Logger      core.Logger // optional
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
		Clock:   clocksync.New(nil),
	}
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// IsStatus reports whether `err` is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// ListOptions filters ListActivities. Zero values are ignored.
type ListOptions struct {
	Search    string
	AuthorID  string
	Stage     string // key of the current stage
	StartFrom time.Time
	StartTo   time.Time
	Ordering  []string // eg. "title", "-start_date"
}

func (opts ListOptions) query() string {
	q := url.Values{}
	if opts.Search != "" {
		q.Set("search", opts.Search)
	}
	if opts.AuthorID != "" {
		q.Set("author", opts.AuthorID)
	}
	if opts.Stage != "" {
		q.Set("stage", opts.Stage)
	}
	if !opts.StartFrom.IsZero() {
		q.Set("start_from", stage.FormatTime(opts.StartFrom))
	}
	if !opts.StartTo.IsZero() {
		q.Set("start_to", stage.FormatTime(opts.StartTo))
	}
	if len(opts.Ordering) > 0 {
		q.Set("ordering", strings.Join(opts.Ordering, ","))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// ServerTime fetches the server time, anchoring the clock on it.
func (c *Client) ServerTime(ctx context.Context) (time.Time, error) {
	var resp struct {
		ServerTime time.Time `json:"serverTime"`
	}
	h, err := c.do(ctx, http.MethodGet, "v1/time", nil, nil, &resp)
	if err != nil {
		return time.Time{}, err
	}
	c.sync(h, resp.ServerTime)
	return resp.ServerTime, nil
}

// CreateActivity creates an activity; the caller must be authenticated.
func (c *Client) CreateActivity(ctx context.Context, na activity.NewActivity) (activity.View, error) {
	return c.doView(ctx, http.MethodPost, "v1/activities", nil, na)
}

// UpdateActivity updates an activity. A positive `ifVersion` is sent as If-Match:
// the update then fails with a 412 APIError if someone else updated the activity first.
func (c *Client) UpdateActivity(ctx context.Context, id string, ua activity.UpdateActivity, ifVersion int) (activity.View, error) {
	var header http.Header
	if ifVersion > 0 {
		header = http.Header{}
		header.Set("If-Match", `"`+strconv.Itoa(ifVersion)+`"`)
	}
	return c.doView(ctx, http.MethodPut, "v1/activities/"+url.PathEscape(id), header, ua)
}

func (c *Client) GetActivity(ctx context.Context, id string) (activity.View, error) {
	return c.doView(ctx, http.MethodGet, "v1/activities/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ListActivities(ctx context.Context, opts ListOptions) ([]activity.View, error) {
	var resp struct {
		Results    []activity.View `json:"results"`
		ServerTime time.Time       `json:"serverTime"`
	}
	h, err := c.do(ctx, http.MethodGet, "v1/activities"+opts.query(), nil, nil, &resp)
	if err != nil {
		return nil, err
	}
	c.sync(h, resp.ServerTime)
	return resp.Results, nil
}

func (c *Client) DeleteActivity(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "v1/activities/"+url.PathEscape(id), nil, nil, nil)
	return err
}

// PreviewTimeline has the server validate & resolve a timeline draft, without saving it.
func (c *Client) PreviewTimeline(ctx context.Context, pr activity.PreviewRequest) (activity.View, error) {
	return c.doView(ctx, http.MethodPost, "v1/timelines/preview", nil, pr)
}

func (c *Client) doView(ctx context.Context, method, endpoint string, header http.Header, body interface{}) (activity.View, error) {
	var view activity.View
	h, err := c.do(ctx, method, endpoint, header, body, &view)
	if err != nil {
		return activity.View{}, err
	}
	c.sync(h, view.ServerTime)
	return view, nil
}

// sync anchors the clock on the X-Server-Time header, falling back to the body's server time.
// A stale offset is only logged: the previous estimate stays usable.
func (c *Client) sync(h http.Header, bodyTime time.Time) {
	err := c.Clock.AnchorHeader(h)
	if err != nil && !bodyTime.IsZero() {
		err = c.Clock.Anchor(bodyTime)
	}
	if err != nil && c.Logger != nil {
		c.Logger.Warn("clock not re-anchored", err)
	}
}

func (c *Client) do(
	ctx context.Context,
	method, endpoint string,
	header http.Header,
	body, out interface{},
) (http.Header, error) {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	if c.Clock == nil {
		c.Clock = clocksync.New(nil)
	}
	u := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, errors.Wrap(err, "encoding request body")
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, u, &buf)
	if err != nil {
		return nil, err
	}
	for k := range header {
		req.Header.Set(k, header.Get(k))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		c.sync(resp.Header, time.Time{})
		b, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, errors.Wrapf(err, "decoding %s %s response", method, endpoint)
		}
	}
	return resp.Header, nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
