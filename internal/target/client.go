package target

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

	"go.uber.org/zap"

	"org-restore/internal/model"
)

// Config holds the connection settings of a target org.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client talks to the target org's REST API: object describes, user
// queries and composite batch writes. Call-level failures worth retrying
// (network errors, timeouts, 408/429/5xx) come back as
// model.TransportError; per-record rejections are carried in the
// WriteResult list and are never retried.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a client. A zero Timeout defaults to 30s.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if _, err := url.Parse(base); err != nil || base == "" {
		return nil, fmt.Errorf("invalid target URL %q", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: base,
		token:   cfg.Token,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
			Timeout: timeout,
		},
		logger: logger,
	}, nil
}

type describeResponse struct {
	Name        string `json:"name"`
	Fields      []struct {
		Name             string   `json:"name"`
		Type             string   `json:"type"`
		Label            string   `json:"label"`
		Createable       bool     `json:"createable"`
		Updateable       bool     `json:"updateable"`
		Nillable         bool     `json:"nillable"`
		DefaultedOnCreate bool    `json:"defaultedOnCreate"`
		ExternalID       bool     `json:"externalId"`
		Unique           bool     `json:"unique"`
		NameField        bool     `json:"nameField"`
		ReferenceTo      []string `json:"referenceTo"`
		RelationshipName string   `json:"relationshipName"`
		PicklistValues   []struct {
			Value  string `json:"value"`
			Active bool   `json:"active"`
		} `json:"picklistValues"`
	} `json:"fields"`
	RecordTypes []struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		DeveloperName string `json:"developerName"`
		Default       bool   `json:"defaultRecordTypeMapping"`
	} `json:"recordTypeInfos"`
}

// Describe fetches the target object's metadata: fields with their
// createable/updateable flags, active picklist value sets and record
// types.
func (c *Client) Describe(ctx context.Context, objectName string) (*model.ObjectMetadata, error) {
	var resp describeResponse
	if err := c.get(ctx, "/objects/"+url.PathEscape(objectName)+"/describe", &resp); err != nil {
		return nil, err
	}

	meta := &model.ObjectMetadata{ObjectName: objectName}
	for _, f := range resp.Fields {
		fi := model.FieldInfo{
			Name:             f.Name,
			Type:             f.Type,
			Label:            f.Label,
			Createable:       f.Createable,
			Updateable:       f.Updateable,
			Required:         !f.Nillable && !f.DefaultedOnCreate && f.Createable,
			ExternalID:       f.ExternalID,
			Unique:           f.Unique,
			NameField:        f.NameField,
			ReferenceTo:      f.ReferenceTo,
			RelationshipName: f.RelationshipName,
		}
		for _, pv := range f.PicklistValues {
			if pv.Active {
				fi.PicklistValues = append(fi.PicklistValues, pv.Value)
			}
		}
		meta.Fields = append(meta.Fields, fi)
	}
	for _, rt := range resp.RecordTypes {
		meta.RecordTypes = append(meta.RecordTypes, model.RecordTypeInfo{
			ID:            rt.ID,
			Name:          rt.Name,
			DeveloperName: rt.DeveloperName,
			IsDefault:     rt.Default,
		})
	}
	return meta, nil
}

// RecordTypes fetches just the record types of an object.
func (c *Client) RecordTypes(ctx context.Context, objectName string) ([]model.RecordTypeInfo, error) {
	meta, err := c.Describe(ctx, objectName)
	if err != nil {
		return nil, err
	}
	return meta.RecordTypes, nil
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Active   bool   `json:"active"`
}

// ActiveUsers fetches the active users of the target org.
func (c *Client) ActiveUsers(ctx context.Context) ([]model.UserInfo, error) {
	var resp struct {
		Users []userResponse `json:"users"`
	}
	if err := c.get(ctx, "/users?active=true", &resp); err != nil {
		return nil, err
	}
	users := make([]model.UserInfo, 0, len(resp.Users))
	for _, u := range resp.Users {
		users = append(users, model.UserInfo{
			ID:       u.ID,
			Username: u.Username,
			Name:     u.Name,
			Email:    u.Email,
			Active:   u.Active,
		})
	}
	return users, nil
}

// RunningUser fetches the user the client is authenticated as.
func (c *Client) RunningUser(ctx context.Context) (model.UserInfo, error) {
	var resp userResponse
	if err := c.get(ctx, "/users/me", &resp); err != nil {
		return model.UserInfo{}, err
	}
	return model.UserInfo{
		ID:       resp.ID,
		Username: resp.Username,
		Name:     resp.Name,
		Email:    resp.Email,
		Active:   resp.Active,
	}, nil
}

type batchRecord struct {
	SourceID string            `json:"sourceId"`
	Fields   map[string]string `json:"fields"`
}

type batchResponse struct {
	Results []struct {
		SourceID string `json:"sourceId"`
		ID       string `json:"id"`
		Success  bool   `json:"success"`
		Errors   []struct {
			StatusCode string `json:"statusCode"`
			Message    string `json:"message"`
		} `json:"errors"`
	} `json:"results"`
}

// WriteBatch submits one batch of up to the API's batch ceiling.
// Insert is a POST; update and upsert are PATCH calls, upsert keyed on
// externalIDField. Empty field values are omitted from the payload, so a
// transformation that cleared a value effectively drops the field.
func (c *Client) WriteBatch(ctx context.Context, objectName string, mode model.RestoreMode, externalIDField string, records []model.TransformedRecord) ([]model.WriteResult, error) {
	path := "/objects/" + url.PathEscape(objectName) + "/batch"
	method := http.MethodPost
	switch mode {
	case model.ModeUpdate:
		method = http.MethodPatch
	case model.ModeUpsert:
		if externalIDField != "" {
			method = http.MethodPatch
			path += "/" + url.PathEscape(externalIDField)
		}
	}

	payload := struct {
		Records []batchRecord `json:"records"`
	}{Records: make([]batchRecord, 0, len(records))}
	for _, rec := range records {
		br := batchRecord{SourceID: rec.SourceID, Fields: make(map[string]string, len(rec.Fields))}
		for _, f := range rec.Fields {
			if f.Value == "" {
				continue
			}
			br.Fields[f.Name] = f.Value
		}
		payload.Records = append(payload.Records, br)
	}

	var resp batchResponse
	if err := c.do(ctx, method, path, payload, &resp); err != nil {
		return nil, err
	}

	results := make([]model.WriteResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		wr := model.WriteResult{SourceID: r.SourceID, TargetID: r.ID, Success: r.Success}
		if !r.Success {
			var msgs []string
			for _, e := range r.Errors {
				msgs = append(msgs, fmt.Sprintf("[%s] %s", ClassifyWriteError(e.StatusCode), e.Message))
			}
			if len(msgs) == 0 {
				msgs = append(msgs, "rejected without error detail")
			}
			wr.Error = strings.Join(msgs, "; ")
		}
		results = append(results, wr)
	}
	return results, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	op := fmt.Sprintf("%s %s", method, path)

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &model.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &model.TransportError{Op: op, Err: err}
	}

	if resp.StatusCode >= 400 {
		err := fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(string(data), 300))
		if isRetryableStatus(resp.StatusCode) {
			return &model.TransportError{Op: op, Err: err}
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%s: failed to decode response: %w", op, err)
		}
	}
	return nil
}

func isRetryableStatus(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// ClassifyWriteError maps an API status code to a readable category for
// summaries.
func ClassifyWriteError(statusCode string) string {
	switch strings.ToUpper(statusCode) {
	case "REQUIRED_FIELD_MISSING":
		return "missing required field"
	case "INVALID_OR_NULL_FOR_RESTRICTED_PICKLIST", "INVALID_PICKLIST_VALUE":
		return "invalid picklist value"
	case "INVALID_CROSS_REFERENCE_KEY", "INVALID_FIELD_FOR_INSERT_UPDATE", "MALFORMED_ID":
		return "bad reference"
	case "DUPLICATE_VALUE", "DUPLICATES_DETECTED":
		return "duplicate"
	case "INSUFFICIENT_ACCESS_OR_READONLY", "INSUFFICIENT_ACCESS":
		return "insufficient access"
	case "STRING_TOO_LONG":
		return "value too long"
	case "":
		return "error"
	default:
		return strings.ToLower(strings.ReplaceAll(statusCode, "_", " "))
	}
}
