package sdk

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

	"github.com/rajasatyajit/TransitDisruptions/internal/models"
)

// AdminSecretHeader carries the admin secret on admin requests.
const AdminSecretHeader = "X-Admin-Secret"

type Client struct {
	BaseURL     string
	AdminSecret string
	HTTP        *http.Client
}

func New(baseURL, adminSecret string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &Client{BaseURL: baseURL, AdminSecret: adminSecret, HTTP: http.DefaultClient}
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Statistics mirrors the summary block of the API.
type Statistics struct {
	Count    int     `json:"count"`
	Earliest *string `json:"earliest"`
	Latest   *string `json:"latest"`
}

// ClassifyResult is the response of Classify.
type ClassifyResult struct {
	Outcomes []models.Outcome         `json:"outcomes"`
	Events   []models.DisruptionEvent `json:"events"`
	Failures []struct {
		MessageID uint64 `json:"message_id"`
		Text      string `json:"text"`
		Error     string `json:"error"`
	} `json:"failures"`
	Summary Statistics `json:"summary"`
}

// IngestRun is one source's result from TriggerIngest.
type IngestRun struct {
	RunID   string `json:"run_id"`
	Source  string `json:"source"`
	Fetched int    `json:"fetched"`
	New     int    `json:"new"`
	Events  int    `json:"events"`
	Error   string `json:"error,omitempty"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.AdminSecret != "" {
		req.Header.Set(AdminSecretHeader, c.AdminSecret)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode/100 != 2 {
		var e struct {
			Message string `json:"message"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, &e) != nil || e.Message == "" {
			e.Message = string(bytes.TrimSpace(data))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: e.Message}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Events lists stored events matching q.
func (c *Client) Events(ctx context.Context, q models.EventQuery) ([]models.DisruptionEvent, error) {
	v := url.Values{}
	for _, k := range q.Kinds {
		v.Add("kind", string(k))
	}
	for _, r := range q.Routes {
		v.Add("route", r)
	}
	for _, id := range q.MessageIDs {
		v.Add("message_id", strconv.FormatUint(id, 10))
	}
	if !q.Since.IsZero() {
		v.Set("since", q.Since.Format(time.RFC3339))
	}
	if !q.Until.IsZero() {
		v.Set("until", q.Until.Format(time.RFC3339))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}

	var out struct {
		Data []models.DisruptionEvent `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/events", v, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// Event fetches one event by id.
func (c *Client) Event(ctx context.Context, id string) (*models.DisruptionEvent, error) {
	var out models.DisruptionEvent
	if err := c.do(ctx, http.MethodGet, "/v1/events/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Classify runs messages through the extractor without storing anything.
func (c *Client) Classify(ctx context.Context, msgs []models.Message) (*ClassifyResult, error) {
	var out ClassifyResult
	body := map[string]any{"messages": msgs}
	if err := c.do(ctx, http.MethodPost, "/v1/classify", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TriggerIngest runs the pipeline once. Requires AdminSecret.
func (c *Client) TriggerIngest(ctx context.Context) ([]IngestRun, error) {
	var out struct {
		Runs []IngestRun `json:"runs"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/admin/ingest", nil, nil, &out); err != nil {
		return out.Runs, err
	}
	return out.Runs, nil
}
