// Package redcap is a client library for the REDCap data-capture API.
//
// The core type is Request: it owns the inputs of a single API call,
// validates them against a static per-operation rule table, performs one
// synchronous form-encoded HTTP POST, and decodes the response according to
// the requested output format. Project builds on Request to offer the
// higher-level operations (record export and import, metadata, file
// transfer) most callers want.
package redcap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"

	"github.com/google/uuid"
)

// Payload is the parameter mapping for one API call. Every operation needs
// token and content entries; the rest of the keys are operation-specific.
type Payload map[string]string

// Result is what an executed request hands back to the caller. Content is
// the decoded body: a []any or map[string]any for json, a string for csv
// and xml, and raw []byte for file exports. Callers branch on the format
// they asked for. Raw always carries the undecoded response body.
type Result struct {
	Content any
	Raw     []byte
	Headers http.Header
}

// Request owns the inputs of a single REDCap API call. A Request is
// immutable after construction and safe to execute concurrently with other
// Requests; it performs exactly one request-response cycle per Execute.
type Request struct {
	endpoint string
	payload  Payload
	op       OperationType
	format   string
	id       string
	logger   *slog.Logger
}

// RequestOption configures a Request at construction time.
type RequestOption func(*Request)

// WithLogger sets the structured logger the request reports to.
func WithLogger(logger *slog.Logger) RequestOption {
	return func(r *Request) {
		r.logger = logger
	}
}

// NewRequest builds a Request for one API call. When op is non-empty the
// payload is validated against the operation's rule immediately, so a
// returned Request is always executable. The response format is resolved
// once, from returnFormat and then format, and never recomputed.
func NewRequest(endpoint string, payload Payload, op OperationType, opts ...RequestOption) (*Request, error) {
	if endpoint == "" {
		return nil, NewConfigurationError("endpoint URL is empty")
	}
	if payload == nil {
		return nil, NewConfigurationError("payload is nil")
	}

	r := &Request{
		endpoint: endpoint,
		payload:  payload,
		op:       op,
		id:       uuid.NewString(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if op != "" {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}

	formatKey := "format"
	if _, ok := payload["returnFormat"]; ok {
		formatKey = "returnFormat"
	}
	format, ok := payload[formatKey]
	if !ok {
		return nil, NewConfigurationError("payload carries neither returnFormat nor format")
	}
	r.format = format

	return r, nil
}

// Format returns the resolved response format.
func (r *Request) Format() string {
	return r.format
}

// Validate checks the payload against the operation's rule: every required
// key must be present and the content discriminator must carry the
// operation's expected value. It never mutates the payload.
func (r *Request) Validate() error {
	rule, ok := validationRules[r.op]
	if !ok {
		return &UnknownOperationError{Type: r.op}
	}

	required := append([]string{"token", "content"}, rule.extra...)
	var missing []string
	for _, key := range required {
		if _, ok := r.payload[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return NewMissingKeysError(missing)
	}

	content, ok := r.payload["content"]
	if !ok {
		// Unreachable while content stays in the required set; kept so a
		// future rule-table edit cannot silently drop the check.
		return NewValidationError("content not in payload")
	}
	if content != rule.content {
		return NewValidationError(rule.mismatch)
	}

	return nil
}

// Execute performs the HTTP exchange and decodes the response body
// according to the resolved format and operation type. The call blocks for
// the duration of the exchange, bounded by ctx and the configured timeout;
// no retries happen here.
func (r *Request) Execute(ctx context.Context, opts ...ExecuteOption) (*Result, error) {
	cfg := newExecuteConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	body, contentType, err := encodeBody(r.payload, cfg.file)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, body)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("building request: %w", err)}
	}
	req.Header.Set("Content-Type", contentType)

	r.logger.Debug("executing REDCap request",
		slog.String("request_id", r.id),
		slog.String("operation", string(r.op)),
		slog.String("format", r.format),
	)

	resp, err := cfg.httpClient().Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("reading response: %w", err)}
	}

	content, err := decode(r.op, r.format, resp.StatusCode, raw)
	if err != nil {
		return nil, err
	}

	return &Result{Content: content, Raw: raw, Headers: resp.Header}, nil
}
