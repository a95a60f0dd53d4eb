// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package testcenter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"os/user"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.chromium.org/luci/common/clock"
)

// Default REST transport configuration values
const (
	DefaultRESTPort         = 80
	DefaultOperationTimeout = 120 * time.Second
	DefaultPrettyPrintLogs  = true
	DefaultUser             = "testcenter"
)

// SessionHeader carries the server session id on every request
const SessionHeader = "X-STC-API-Session"

// Security limits for JSON processing and logging
const (
	MaxJSONSizeForLogging = 1 * 1024 * 1024 // 1MB limit to prevent ReDoS attacks
	MaxSensitiveFields    = 1000            // Max redaction operations to prevent DoS
)

// Logging message constants
const (
	JSONTooLargeMessage     = "[JSON TOO LARGE FOR LOGGING]"
	JSONTooManySensitiveMsg = "[JSON CONTAINS TOO MANY SENSITIVE FIELDS]"
)

// sensitiveFields are JSON field names whose values never reach the logs
var sensitiveFields = []string{"password", "secret", "key", "community", "token", "auth"}

// defaultRedactionPatterns contains regex patterns for redacting sensitive data in logs
var defaultRedactionPatterns = func() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(sensitiveFields))
	for _, f := range sensitiveFields {
		patterns = append(patterns, regexp.MustCompile(`"`+f+`"\s*:\s*"[^"]*"`))
	}
	return patterns
}()

// sessionlessCommands are lab-server commands the REST server handles
// itself; they are answered locally with no result
var sessionlessCommands = map[string]bool{
	"cstestsessionconnect":    true,
	"cstestsessiondisconnect": true,
}

// RESTTransport talks to the automation REST server under /stcapi/.
//
// The server session is created (or joined) lazily on the first call and
// its id is sent with every request. Safe for concurrent use; the remote
// server serializes commands per session.
type RESTTransport struct {
	// Connection parameters
	Server       string
	Port         int
	User         string
	SessionName  string
	Join         bool
	KillExisting bool
	UseTLS       bool

	// OperationTimeout bounds every HTTP request
	OperationTimeout time.Duration

	// PollInterval is the sleep between sequencer state polls in Wait
	PollInterval time.Duration

	httpClient *http.Client
	baseURL    string

	mu        sync.Mutex
	sessionID string

	// types records object types learned from create and children reads
	types map[string]string

	logger            Logger
	prettyPrintLogs   bool
	redactionPatterns []*regexp.Regexp
}

// NewRESTTransport creates a REST transport for server.
//
// No request is sent until the first operation (lazy session).
//
// Example:
//
//	transport, err := testcenter.NewRESTTransport("10.0.0.10",
//	    testcenter.ServerPort(8888),
//	    testcenter.SessionName("regression"),
//	    testcenter.KillExisting(true))
func NewRESTTransport(server string, opts ...func(*RESTTransport)) (*RESTTransport, error) {
	t := &RESTTransport{
		Server:            server,
		Port:              DefaultRESTPort,
		User:              defaultUser(),
		SessionName:       "session-" + uuid.NewString()[:8],
		OperationTimeout:  DefaultOperationTimeout,
		PollInterval:      DefaultPollInterval,
		httpClient:        &http.Client{},
		types:             map[string]string{},
		logger:            &NoOpLogger{},
		prettyPrintLogs:   DefaultPrettyPrintLogs,
		redactionPatterns: defaultRedactionPatterns,
	}

	for _, opt := range opts {
		opt(t)
	}

	if err := t.validateConfig(); err != nil {
		return nil, err
	}

	scheme := "http"
	if t.UseTLS {
		scheme = "https"
	}
	t.baseURL = fmt.Sprintf("%s://%s:%d/stcapi/", scheme, t.Server, t.Port)
	return t, nil
}

func defaultUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return DefaultUser
}

func (t *RESTTransport) validateConfig() error {
	if strings.TrimSpace(t.Server) == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if t.Port < 1 || t.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", t.Port)
	}
	if strings.TrimSpace(t.SessionName) == "" {
		return fmt.Errorf("session name cannot be empty")
	}
	if t.OperationTimeout <= 0 {
		return fmt.Errorf("operation timeout must be positive, got: %v", t.OperationTimeout)
	}
	if t.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got: %v", t.PollInterval)
	}
	return nil
}

func (t *RESTTransport) setLogger(l Logger) {
	t.logger = l
}

// SessionID returns the server session id, or "" before the first call
func (t *RESTTransport) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// ensureSession creates or joins the server session if not done yet
func (t *RESTTransport) ensureSession(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sessionID != "" {
		return t.sessionID, nil
	}

	t.logger.Debug(ctx, "Establishing REST session",
		"server", t.Server,
		"port", t.Port,
		"session", t.SessionName,
		"join", t.Join)

	existing, err := t.listSessions(ctx)
	if err != nil {
		return "", err
	}
	match := ""
	for _, id := range existing {
		if id == t.SessionName || strings.HasPrefix(id, t.SessionName+" - ") {
			match = id
			break
		}
	}

	switch {
	case t.Join:
		if match == "" {
			return "", &Error{Operation: "join session", Message: fmt.Sprintf("session %q not found", t.SessionName)}
		}
		t.sessionID = match
	default:
		if match != "" {
			if !t.KillExisting {
				return "", &Error{Operation: "create session", Message: fmt.Sprintf("session %q already exists", match)}
			}
			if _, err := t.do(ctx, "", http.MethodDelete, "sessions/"+url.PathEscape(match), nil, nil, ""); err != nil {
				return "", err
			}
		}
		body, err := Body{}.Set("userid", t.User).Set("sessionname", t.SessionName).String()
		if err != nil {
			return "", err
		}
		res, err := t.do(ctx, "", http.MethodPost, "sessions/", nil, strings.NewReader(body), "application/json")
		if err != nil {
			return "", err
		}
		id := gjson.Get(res, "session_id").String()
		if id == "" {
			id = t.SessionName + " - " + t.User
		}
		t.sessionID = id
	}

	t.logger.Info(ctx, "REST session established",
		"server", t.Server,
		"session", t.sessionID)
	return t.sessionID, nil
}

func (t *RESTTransport) listSessions(ctx context.Context) ([]string, error) {
	res, err := t.do(ctx, "", http.MethodGet, "sessions/", nil, nil, "")
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, v := range gjson.Parse(res).Array() {
		ids = append(ids, v.String())
	}
	return ids, nil
}

// call runs one request inside the server session
func (t *RESTTransport) call(ctx context.Context, method, path string, query url.Values, body *Body) (string, error) {
	sid, err := t.ensureSession(ctx)
	if err != nil {
		return "", err
	}
	var reader io.Reader
	contentType := ""
	if body != nil {
		data, err := body.Bytes()
		if err != nil {
			return "", err
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}
	return t.do(ctx, sid, method, path, query, reader, contentType)
}

// do sends one HTTP request and returns the response body.
// Status codes >= 400 are returned as *Error.
func (t *RESTTransport) do(ctx context.Context, sid, method, path string, query url.Values, body io.Reader, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.OperationTimeout)
	defer cancel()

	u := t.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var logBody string
	if body != nil && contentType == "application/json" {
		raw, err := io.ReadAll(body)
		if err != nil {
			return "", err
		}
		logBody = string(raw)
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if sid != "" {
		req.Header.Set(SessionHeader, sid)
	}

	t.logger.Debug(ctx, "REST request",
		"method", method,
		"path", path,
		"query", query.Encode(),
		"body", t.prepareJSONForLogging(logBody))

	resp, err := t.httpClient.Do(req)
	if err != nil {
		t.logger.Error(ctx, "REST request failed",
			"method", method,
			"path", path,
			"error", err.Error())
		return "", &Error{Operation: strings.ToLower(method), Message: "request failed", InternalMsg: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	res := string(data)

	t.logger.Debug(ctx, "REST response",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"body", t.prepareJSONForLogging(res))

	if resp.StatusCode >= http.StatusBadRequest {
		return "", &Error{
			Operation:   strings.ToLower(method) + " " + strings.TrimSuffix(path, "/"),
			Message:     fmt.Sprintf("%d %s", resp.StatusCode, errorMessage(res)),
			InternalMsg: res,
			StatusCode:  resp.StatusCode,
		}
	}
	return res, nil
}

// errorMessage extracts a short message from an error response body
func errorMessage(body string) string {
	if gjson.Valid(body) {
		for _, key := range []string{"message", "error", "detail"} {
			if v := gjson.Get(body, key); v.Exists() {
				return v.String()
			}
		}
	}
	body = strings.TrimSpace(body)
	if len(body) > MaxLogValueLength {
		body = body[:MaxLogValueLength] + "..."
	}
	return body
}

// valueString flattens a JSON value: arrays are joined with spaces
func valueString(v gjson.Result) string {
	if v.IsArray() {
		items := v.Array()
		tokens := make([]string, 0, len(items))
		for _, item := range items {
			tokens = append(tokens, item.String())
		}
		return strings.Join(tokens, " ")
	}
	return v.String()
}

// objectMap flattens a JSON object into string values
func objectMap(res string) map[string]string {
	out := map[string]string{}
	gjson.Parse(res).ForEach(func(k, v gjson.Result) bool {
		out[k.String()] = valueString(v)
		return true
	})
	return out
}

// Create implements Transport
func (t *RESTTransport) Create(ctx context.Context, objType, parent string, attrs Attrs) (string, error) {
	body := Body{}.Set("object_type", objType).Set("under", parent).SetAttrs(attrs)
	res, err := t.call(ctx, http.MethodPost, "objects/", nil, &body)
	if err != nil {
		return "", err
	}
	handle := gjson.Parse(res).String()
	if h := gjson.Get(res, "handle"); h.Exists() {
		handle = h.String()
	}
	t.learnTypes(objType, handle)
	return handle, nil
}

// learnTypes records objType for every handle
func (t *RESTTransport) learnTypes(objType string, handles ...string) {
	objType = strings.ToLower(objType)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.types == nil {
		t.types = map[string]string{}
	}
	for _, h := range handles {
		if h != "" {
			t.types[h] = objType
		}
	}
}

// learnChildTypes records the types named by "children-<type>" attributes
func (t *RESTTransport) learnChildTypes(attr, value string) {
	if len(attr) <= len(childrenPrefix) || !strings.EqualFold(attr[:len(childrenPrefix)], childrenPrefix) {
		return
	}
	t.learnTypes(attr[len(childrenPrefix):], splitHandles(value)...)
}

const childrenPrefix = "children-"

// HandleType implements TypeReporter. The type is known for objects created
// through this transport and for handles listed by a "children-<type>" read.
func (t *RESTTransport) HandleType(_ context.Context, handle string) (string, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	objType, ok := t.types[handle]
	return objType, ok, nil
}

// Delete implements Transport
func (t *RESTTransport) Delete(ctx context.Context, handle string) error {
	if _, err := t.call(ctx, http.MethodDelete, "objects/"+url.PathEscape(handle), nil, nil); err != nil {
		return err
	}
	t.mu.Lock()
	delete(t.types, handle)
	t.mu.Unlock()
	return nil
}

// Get implements Transport. Array values are joined with a single space.
func (t *RESTTransport) Get(ctx context.Context, handle, attr string) (string, error) {
	res, err := t.call(ctx, http.MethodGet, "objects/"+url.PathEscape(handle), url.Values{attr: {""}}, nil)
	if err != nil {
		return "", err
	}
	v := gjson.Parse(res)
	if v.IsObject() {
		for k, val := range objectMap(res) {
			if strings.EqualFold(k, attr) {
				t.learnChildTypes(attr, val)
				return val, nil
			}
		}
		return valueString(v), nil
	}
	value := valueString(v)
	t.learnChildTypes(attr, value)
	return value, nil
}

// GetAll implements Transport
func (t *RESTTransport) GetAll(ctx context.Context, handle string) (map[string]string, error) {
	res, err := t.call(ctx, http.MethodGet, "objects/"+url.PathEscape(handle), nil, nil)
	if err != nil {
		return nil, err
	}
	attrs := objectMap(res)
	for k, v := range attrs {
		t.learnChildTypes(k, v)
	}
	return attrs, nil
}

// GetList implements Transport
func (t *RESTTransport) GetList(ctx context.Context, handle, attr string) ([]string, error) {
	v, err := t.Get(ctx, handle, attr)
	if err != nil {
		return nil, err
	}
	return splitHandles(v), nil
}

// Config implements Transport
func (t *RESTTransport) Config(ctx context.Context, handle string, attrs Attrs) error {
	body := Body{}.SetAttrs(attrs)
	_, err := t.call(ctx, http.MethodPut, "objects/"+url.PathEscape(handle), nil, &body)
	return err
}

// Perform implements Transport. Lab-server session commands are answered
// locally with a nil result.
func (t *RESTTransport) Perform(ctx context.Context, command string, args Attrs) (CommandResult, error) {
	if sessionlessCommands[strings.ToLower(command)] {
		t.logger.Debug(ctx, "Command handled by REST server session",
			"command", command)
		return nil, nil
	}
	body := Body{}.Set("command", command).SetAttrs(args)
	res, err := t.call(ctx, http.MethodPost, "perform/", nil, &body)
	if err != nil {
		return nil, err
	}
	return CommandResult(objectMap(res)), nil
}

// Subscribe implements Transport with ResultsSubscribe
func (t *RESTTransport) Subscribe(ctx context.Context, args Attrs) (string, error) {
	res, err := t.Perform(ctx, "ResultsSubscribe", args)
	if err != nil {
		return "", err
	}
	return res.Get("ReturnedDataSet"), nil
}

// Unsubscribe implements Transport with ResultDataSetUnsubscribe
func (t *RESTTransport) Unsubscribe(ctx context.Context, handle string) error {
	_, err := t.Perform(ctx, "ResultDataSetUnsubscribe", Attrs{"ResultDataSet": handle})
	return err
}

// Apply implements Transport
func (t *RESTTransport) Apply(ctx context.Context) error {
	_, err := t.call(ctx, http.MethodPut, "apply/", nil, nil)
	return err
}

// Wait implements Transport by polling the sequencer until it is paused or
// idle
func (t *RESTTransport) Wait(ctx context.Context) error {
	sequencers, err := t.GetList(ctx, SystemHandle, "children-sequencer")
	if err != nil || len(sequencers) == 0 {
		return err
	}
	for {
		state, err := t.Get(ctx, sequencers[0], "state")
		if err != nil {
			return err
		}
		if strings.Contains(state, "PAUSE") || strings.Contains(state, "IDLE") {
			return nil
		}
		if tr := clock.Sleep(ctx, t.PollInterval); tr.Incomplete() {
			return tr.Err
		}
	}
}

// EndSession implements SessionCloser. With terminate the server session is
// deleted along with its test session; otherwise the transport only detaches
// and the server session keeps running for a later JoinSession.
func (t *RESTTransport) EndSession(ctx context.Context, terminate bool) error {
	t.mu.Lock()
	sid := t.sessionID
	t.mu.Unlock()
	if sid == "" {
		return nil
	}

	if terminate {
		query := url.Values{"terminate": {"true"}}
		if _, err := t.do(ctx, sid, http.MethodDelete, "sessions/"+url.PathEscape(sid), query, nil, ""); err != nil {
			return err
		}
	}

	t.mu.Lock()
	t.sessionID = ""
	t.mu.Unlock()

	if terminate {
		t.logger.Info(ctx, "REST session ended",
			"session", sid)
	} else {
		t.logger.Info(ctx, "REST session detached",
			"session", sid)
	}
	return nil
}

// Upload implements FileUploader. The file is posted to the session file
// area and its base name is returned for use in commands.
func (t *RESTTransport) Upload(ctx context.Context, path string) (string, error) {
	sid, err := t.ensureSession(ctx)
	if err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	if _, err := t.do(ctx, sid, http.MethodPost, "files/", nil, &buf, w.FormDataContentType()); err != nil {
		return "", err
	}
	return filepath.Base(path), nil
}

// prepareJSONForLogging redacts sensitive data and formats JSON for logging
//
// This method performs security checks and data sanitization:
//  1. Validates JSON size to prevent ReDoS attacks (max 1MB)
//  2. Checks sensitive field count to prevent DoS (max 1000 fields)
//  3. Redacts sensitive data (passwords, secrets, keys, community strings, tokens)
//  4. Pretty-prints JSON if prettyPrintLogs is enabled
//
// Returns the processed JSON string safe for logging.
func (t *RESTTransport) prepareJSONForLogging(jsonStr string) string {
	if jsonStr == "" {
		return ""
	}
	if len(jsonStr) > MaxJSONSizeForLogging {
		return JSONTooLargeMessage
	}

	sensitiveCount := 0
	for _, f := range sensitiveFields {
		sensitiveCount += strings.Count(jsonStr, `"`+f+`"`)
	}
	if sensitiveCount > MaxSensitiveFields {
		t.logger.Warn(context.Background(), "Too many sensitive fields detected",
			"count", sensitiveCount,
			"max", MaxSensitiveFields)
		return JSONTooManySensitiveMsg
	}

	redacted := t.redactSensitiveData(jsonStr)

	if t.prettyPrintLogs {
		var buf bytes.Buffer
		if err := json.Indent(&buf, []byte(redacted), "", "  "); err == nil {
			return buf.String()
		}
	}
	return redacted
}

// redactSensitiveData replaces sensitive values in JSON with [REDACTED]
func (t *RESTTransport) redactSensitiveData(jsonStr string) string {
	result := jsonStr
	for i, pattern := range t.redactionPatterns {
		result = pattern.ReplaceAllString(result, `"`+sensitiveFields[i]+`":"[REDACTED]"`)
	}
	return result
}
