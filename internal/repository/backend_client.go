package repository

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

	"github.com/noah-isme/swim-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/swim-scheduler-api/pkg/errors"
	"github.com/noah-isme/swim-scheduler-api/pkg/middleware/requestid"
)

const (
	tenantHeader     = "X-Tenant-ID"
	maxErrorBodySize = 4 << 10
)

// BackendObserver receives timing for every outbound call.
type BackendObserver interface {
	ObserveBackendCall(operation, outcome string, duration time.Duration)
}

// BackendClient talks to the swim-school REST backend. Tenant and token are
// forwarded per call and never interpreted.
type BackendClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	observer   BackendObserver
}

// NewBackendClient constructs the client. A nil httpClient gets a 15s timeout.
func NewBackendClient(baseURL string, httpClient *http.Client, logger *zap.Logger, observer BackendObserver) *BackendClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackendClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
		observer:   observer,
	}
}

// ListSlots returns every slot configured for the tenant.
func (c *BackendClient) ListSlots(ctx context.Context, creds models.BackendCredentials) ([]models.Slot, error) {
	raw, err := c.do(ctx, "list_slots", creds, http.MethodGet, "/slots", nil, nil)
	if err != nil {
		return nil, err
	}
	var slots []models.Slot
	if err := decodeList(raw, &slots); err != nil {
		return nil, err
	}
	return slots, nil
}

// ListInstructors returns staff members holding the given role.
func (c *BackendClient) ListInstructors(ctx context.Context, creds models.BackendCredentials, role string) ([]models.Instructor, error) {
	query := url.Values{}
	if role != "" {
		query.Set("role", role)
	}
	raw, err := c.do(ctx, "list_instructors", creds, http.MethodGet, "/instructors", query, nil)
	if err != nil {
		return nil, err
	}
	var instructors []models.Instructor
	if err := decodeList(raw, &instructors); err != nil {
		return nil, err
	}
	return instructors, nil
}

// GetClassroom loads a class together with its course.
func (c *BackendClient) GetClassroom(ctx context.Context, creds models.BackendCredentials, classID string) (*models.Classroom, error) {
	raw, err := c.do(ctx, "get_classroom", creds, http.MethodGet, "/classrooms/"+url.PathEscape(classID), nil, nil)
	if err != nil {
		return nil, err
	}
	raw = unwrapData(raw)
	var classroom models.Classroom
	if err := json.Unmarshal(raw, &classroom); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDataShape.Code, appErrors.ErrDataShape.Status, "classroom payload is malformed")
	}
	if classroom.ID == "" {
		classroom.ID = classID
	}
	return &classroom, nil
}

// AutoSchedulePreview asks the backend to lay out sessions for each request.
// The result holds one session list per request, in request order.
func (c *BackendClient) AutoSchedulePreview(ctx context.Context, creds models.BackendCredentials, requests []models.AutoScheduleRequest) ([][]models.RawPreviewSession, error) {
	raw, err := c.do(ctx, "auto_schedule_preview", creds, http.MethodPost, "/schedules/auto-schedule/preview", nil, requests)
	if err != nil {
		return nil, err
	}
	var batches []json.RawMessage
	if err := decodeList(raw, &batches); err != nil {
		return nil, err
	}
	result := make([][]models.RawPreviewSession, 0, len(batches))
	for i, batch := range batches {
		if !isJSONArray(batch) {
			return nil, appErrors.Clone(appErrors.ErrDataShape, fmt.Sprintf("preview batch %d is not a list", i))
		}
		var sessions []models.RawPreviewSession
		if err := json.Unmarshal(batch, &sessions); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrDataShape.Code, appErrors.ErrDataShape.Status, fmt.Sprintf("preview batch %d is malformed", i))
		}
		result = append(result, sessions)
	}
	return result, nil
}

// AvailablePools returns one candidate list per queried session, in order.
func (c *BackendClient) AvailablePools(ctx context.Context, creds models.BackendCredentials, sessions []models.PoolQuery) ([][]models.Pool, error) {
	body := map[string]any{"sessions": sessions}
	raw, err := c.do(ctx, "available_pools", creds, http.MethodPost, "/pools/available", nil, body)
	if err != nil {
		return nil, err
	}
	var pools [][]models.Pool
	if err := decodeList(raw, &pools); err != nil {
		return nil, err
	}
	return pools, nil
}

// DateRangeSchedule lists persisted schedule entries between two dates inclusive.
func (c *BackendClient) DateRangeSchedule(ctx context.Context, creds models.BackendCredentials, startDate, endDate string) ([]models.ExistingSchedule, error) {
	query := url.Values{}
	query.Set("startDate", startDate)
	query.Set("endDate", endDate)
	raw, err := c.do(ctx, "date_range_schedule", creds, http.MethodGet, "/schedules/date-range", query, nil)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Events []models.ExistingSchedule `json:"events"`
	}
	if err := json.Unmarshal(unwrapData(raw), &payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDataShape.Code, appErrors.ErrDataShape.Status, "schedule range payload is malformed")
	}
	return payload.Events, nil
}

// AddClassToSchedule persists the finalised sessions.
func (c *BackendClient) AddClassToSchedule(ctx context.Context, creds models.BackendCredentials, tuples []models.ScheduleTuple) error {
	_, err := c.do(ctx, "add_class_to_schedule", creds, http.MethodPost, "/schedules", nil, tuples)
	return err
}

func (c *BackendClient) do(ctx context.Context, operation string, creds models.BackendCredentials, method, path string, query url.Values, body any) (json.RawMessage, error) {
	start := time.Now()
	raw, err := c.roundTrip(ctx, creds, method, path, query, body)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		c.logger.Warn("backend call failed",
			zap.String("operation", operation),
			zap.String("tenant_id", creds.TenantID),
			zap.Error(err),
		)
	}
	if c.observer != nil {
		c.observer.ObserveBackendCall(operation, outcome, time.Since(start))
	}
	return raw, err
}

func (c *BackendClient) roundTrip(ctx context.Context, creds models.BackendCredentials, method, path string, query url.Values, body any) (json.RawMessage, error) {
	if c.baseURL == "" {
		return nil, appErrors.Clone(appErrors.ErrInternal, "scheduling backend URL is not configured")
	}
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode backend request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build backend request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if creds.Token != "" {
		req.Header.Set("Authorization", "Bearer "+creds.Token)
	}
	if creds.TenantID != "" {
		req.Header.Set(tenantHeader, creds.TenantID)
	}
	if reqID := requestid.FromContext(ctx); reqID != "" {
		req.Header.Set(requestid.HeaderKey, reqID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBackend.Code, appErrors.ErrBackend.Status, fmt.Sprintf("%s %s failed", method, path))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(method, path, resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBackend.Code, appErrors.ErrBackend.Status, fmt.Sprintf("failed to read %s %s response", method, path))
	}
	return json.RawMessage(bytes.TrimSpace(raw)), nil
}

func statusError(method, path string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	message := backendMessage(raw)
	cause := fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	switch resp.StatusCode {
	case http.StatusNotFound:
		if message == "" {
			message = "requested resource not found on scheduling backend"
		}
		return appErrors.Wrap(cause, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, message)
	case http.StatusUnauthorized:
		if message == "" {
			message = "scheduling backend rejected the credentials"
		}
		return appErrors.Wrap(cause, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, message)
	case http.StatusForbidden:
		if message == "" {
			message = appErrors.ErrForbidden.Message
		}
		return appErrors.Wrap(cause, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, message)
	}
	if message == "" {
		message = appErrors.ErrBackend.Message
	}
	return appErrors.Wrap(cause, appErrors.ErrBackend.Code, appErrors.ErrBackend.Status, message)
}

func backendMessage(raw []byte) string {
	var payload struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	var text string
	if err := json.Unmarshal(payload.Error, &text); err == nil {
		return text
	}
	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload.Error, &nested); err == nil {
		return nested.Message
	}
	return ""
}

// decodeList accepts a bare array or a {"data": [...]} envelope.
func decodeList(raw json.RawMessage, dest any) error {
	raw = unwrapData(raw)
	if !isJSONArray(raw) {
		return appErrors.Clone(appErrors.ErrDataShape, "expected a list from the scheduling backend")
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return appErrors.Wrap(err, appErrors.ErrDataShape.Code, appErrors.ErrDataShape.Status, "list payload is malformed")
	}
	return nil
}

func unwrapData(raw json.RawMessage) json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return raw
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.Data) == 0 {
		return raw
	}
	return bytes.TrimSpace(envelope.Data)
}

func isJSONArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}
