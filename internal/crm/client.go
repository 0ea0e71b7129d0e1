package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	ObjectDeals     = "deals"
	ObjectLineItems = "line_items"
	ObjectProducts  = "products"

	DefaultBaseURL = "https://api.hubapi.com"
)

// Client is the subset of the CRM API the line-item aggregation consumes.
// All methods are reads.
type Client interface {
	GetDeal(ctx context.Context, id string, properties, associations []string) (*Deal, error)
	GetAssociations(ctx context.Context, id, toObjectType string) ([]string, error)
	BatchRead(ctx context.Context, objectType string, ids, properties []string) ([]json.RawMessage, error)
}

// Deal is a deal record with associations keyed by object type
// ("line_items", "companies", ...).
type Deal struct {
	ID           string
	Properties   map[string]string
	Associations map[string][]string
}

// Observer is told about every finished CRM call; err is nil on success.
type Observer func(op string, err error)

// HTTPClient talks to the CRM REST API with a private-app bearer token.
type HTTPClient struct {
	BaseURL  string
	Token    string
	HTTP     *http.Client
	Logger   *zap.Logger
	Observer Observer
}

func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: timeout},
		Logger:  zap.NewNop(),
	}
}

func (c *HTTPClient) GetDeal(ctx context.Context, id string, properties, associations []string) (deal *Deal, err error) {
	defer c.observe("deal", &err)

	u, err := url.Parse(c.BaseURL + "/crm/v3/objects/deals/" + url.PathEscape(id))
	if err != nil {
		return nil, fmt.Errorf("crm: deal: build url: %w", err)
	}
	q := u.Query()
	if len(properties) > 0 {
		q.Set("properties", strings.Join(properties, ","))
	}
	if len(associations) > 0 {
		q.Set("associations", strings.Join(associations, ","))
	}
	u.RawQuery = q.Encode()

	body, err := c.do(ctx, "deal", http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	deal = &Deal{
		ID:           body.Get("id").String(),
		Properties:   make(map[string]string),
		Associations: make(map[string][]string),
	}
	body.Get("properties").ForEach(func(k, v gjson.Result) bool {
		deal.Properties[k.String()] = v.String()
		return true
	})
	body.Get("associations").ForEach(func(k, v gjson.Result) bool {
		// v3 keys associations by plural label ("line items"), v4 by type ("line_items")
		key := strings.ReplaceAll(strings.ToLower(k.String()), " ", "_")
		deal.Associations[key] = append(deal.Associations[key], resultIDs(v.Get("results"))...)
		return true
	})
	return deal, nil
}

func (c *HTTPClient) GetAssociations(ctx context.Context, id, toObjectType string) (ids []string, err error) {
	defer c.observe("associations", &err)

	endpoint := fmt.Sprintf("%s/crm/v4/objects/deals/%s/associations/%s",
		c.BaseURL, url.PathEscape(id), url.PathEscape(toObjectType))

	body, err := c.do(ctx, "associations", http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return resultIDs(body.Get("results")), nil
}

type batchReadRequest struct {
	Properties []string     `json:"properties"`
	Inputs     []batchInput `json:"inputs"`
}

type batchInput struct {
	ID string `json:"id"`
}

// BatchRead returns the raw records in the order the CRM sent them; record
// level decoding is left to the caller.
func (c *HTTPClient) BatchRead(ctx context.Context, objectType string, ids, properties []string) (records []json.RawMessage, err error) {
	defer c.observe("batch_read", &err)

	req := batchReadRequest{Properties: properties, Inputs: make([]batchInput, 0, len(ids))}
	for _, id := range ids {
		req.Inputs = append(req.Inputs, batchInput{ID: id})
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("crm: batch_read: encode: %w", err)
	}

	endpoint := fmt.Sprintf("%s/crm/v3/objects/%s/batch/read", c.BaseURL, url.PathEscape(objectType))
	body, err := c.do(ctx, "batch_read", http.MethodPost, endpoint, payload)
	if err != nil {
		return nil, err
	}

	results := body.Get("results")
	records = make([]json.RawMessage, 0, len(results.Array()))
	results.ForEach(func(_, v gjson.Result) bool {
		records = append(records, json.RawMessage(v.Raw))
		return true
	})
	return records, nil
}

func (c *HTTPClient) do(ctx context.Context, op, method, endpoint string, payload []byte) (gjson.Result, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("crm: %s: build request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("crm: %s: request: %w", op, err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return gjson.Result{}, fmt.Errorf("crm: %s: read body: %w", op, err)
	}

	c.logger().Debug("crm call",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return gjson.Result{}, newAPIError(op, resp, body)
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("%w (%s)", ErrDecode, op)
	}
	return gjson.ParseBytes(body), nil
}

func newAPIError(op string, resp *http.Response, body []byte) *APIError {
	apiErr := &APIError{
		Op:            op,
		Status:        resp.StatusCode,
		CorrelationID: resp.Header.Get("X-Request-Id"),
	}
	if gjson.ValidBytes(body) {
		parsed := gjson.ParseBytes(body)
		apiErr.Category = parsed.Get("category").String()
		apiErr.Message = parsed.Get("message").String()
		if id := parsed.Get("correlationId").String(); id != "" {
			apiErr.CorrelationID = id
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

// resultIDs reads [{id}] or [{toObjectId}] entries; ids may be numbers or strings.
func resultIDs(results gjson.Result) []string {
	var ids []string
	results.ForEach(func(_, v gjson.Result) bool {
		id := v.Get("id")
		if !id.Exists() {
			id = v.Get("toObjectId")
		}
		if s := strings.TrimSpace(id.String()); s != "" {
			ids = append(ids, s)
		}
		return true
	})
	return ids
}

func (c *HTTPClient) observe(op string, err *error) {
	if c.Observer != nil {
		c.Observer(op, *err)
	}
}

func (c *HTTPClient) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
