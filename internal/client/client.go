// Package client is the HTTP boundary to the field-sales backend. It speaks
// the three endpoints the session and visit pipeline depend on and
// classifies every failure into the error kinds callers branch on.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/fieldsales/internal/domain"
	apperrors "github.com/utafrali/fieldsales/pkg/errors"
	"github.com/utafrali/fieldsales/pkg/httpclient"
	"github.com/utafrali/fieldsales/pkg/logger"
	"github.com/utafrali/fieldsales/pkg/middleware"
	"github.com/utafrali/fieldsales/pkg/tracing"
)

// Backend paths.
const (
	PathLogin   = "/auth/login"
	PathMe      = "/auth/me"
	PathCheckin = "/agent/checkin"
)

const maxResponseBody = 1 << 20

// HTTPDoer is the interface for executing HTTP requests.
// Both httpclient.Client and httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Client calls the backend API.
type Client struct {
	doer    HTTPDoer
	baseURL string
	logger  *slog.Logger
	tracer  trace.Tracer
}

// New creates a Client rooted at baseURL.
func New(doer HTTPDoer, baseURL string, logger *slog.Logger) *Client {
	return &Client{
		doer:    doer,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		tracer:  tracing.Tracer("github.com/utafrali/fieldsales/internal/client"),
	}
}

// LoginResult is a successful login: the bearer token and, when the
// backend sent one, the user it belongs to.
type LoginResult struct {
	Token string
	User  *domain.User
}

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string       `json:"access_token"`
	User        *domain.User `json:"user"`
}

// Login exchanges phone and password for a bearer token.
//
// A 4xx answer yields an ErrInvalidCredentials error carrying the server's
// message. Anything that prevented an answer (network error, 5xx, open
// breaker) yields an ErrTransient error.
func (c *Client) Login(ctx context.Context, phone, password string) (*LoginResult, error) {
	ctx, span := c.tracer.Start(ctx, "client.Login")
	defer span.End()

	body, err := json.Marshal(loginRequest{Phone: phone, Password: password})
	if err != nil {
		return nil, fmt.Errorf("marshal login request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, PathLogin, "", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.doer.Do(ctx, req)
	if err != nil {
		err = transportError("auth", err)
		tracing.RecordError(span, err)
		return nil, err
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode >= 500 {
		err = httpclient.ParseResponseError(resp, "auth")
		tracing.RecordError(span, err)
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := readMessage(resp)
		if msg == "" {
			msg = "invalid phone or password"
		}
		return nil, apperrors.InvalidCredentials(msg)
	}

	var out loginResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}
	if out.AccessToken == "" {
		return nil, fmt.Errorf("login response carried no access token")
	}

	return &LoginResult{Token: out.AccessToken, User: out.User}, nil
}

// Me fetches the identity behind token.
//
// A 401 yields an ErrUnauthorized error; this is the only authoritative
// rejection. Network errors and 5xx yield ErrTransient errors.
func (c *Client) Me(ctx context.Context, token string) (*domain.User, error) {
	ctx, span := c.tracer.Start(ctx, "client.Me")
	defer span.End()

	req, err := c.newRequest(ctx, http.MethodGet, PathMe, token, http.NoBody)
	if err != nil {
		return nil, err
	}

	resp, err := c.doer.Do(ctx, req)
	if err != nil {
		err = transportError("auth", err)
		tracing.RecordError(span, err)
		return nil, err
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		err = httpclient.ParseResponseError(resp, "auth")
		tracing.RecordError(span, err)
		return nil, err
	}

	var user domain.User
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode identity response: %w", err)
	}
	return &user, nil
}

type checkinResponse struct {
	ID            int64 `json:"id"`
	VisitResponse *struct {
		ID int64 `json:"id"`
	} `json:"visit_response"`
}

// Checkin posts a multipart visit. The request is sent exactly once: a
// multipart upload is not safe to replay. Any non-2xx answer yields an
// ErrSubmission error carrying the server's message.
func (c *Client) Checkin(ctx context.Context, token, contentType string, body []byte) (*domain.VisitResult, error) {
	ctx, span := c.tracer.Start(ctx, "client.Checkin",
		trace.WithAttributes(attribute.Int("upload.bytes", len(body))))
	defer span.End()

	ctx = httpclient.WithoutRetry(ctx)
	req, err := c.newRequest(ctx, http.MethodPost, PathCheckin, token, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.doer.Do(ctx, req)
	if err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) {
			err = apperrors.SubmissionFailure(statusErr.Status, submissionMessage(httpclient.ErrorMessage(statusErr.Body)))
		} else {
			err = transportError("checkin", err)
		}
		tracing.RecordError(span, err)
		return nil, err
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err = apperrors.SubmissionFailure(resp.StatusCode, submissionMessage(readMessage(resp)))
		tracing.RecordError(span, err)
		return nil, err
	}

	var out checkinResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode checkin response: %w", err)
	}

	result := &domain.VisitResult{VisitID: out.ID}
	if out.VisitResponse != nil {
		id := out.VisitResponse.ID
		result.VisitResponseID = &id
	}
	return result, nil
}

// Ping reports whether the backend answers at all. Any HTTP response,
// including an error status, counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, PathMe, "", http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.doer.Do(ctx, req)
	if err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) {
			return fmt.Errorf("backend answered %d", statusErr.Status)
		}
		return fmt.Errorf("reach backend: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("backend answered %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path, token string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", path, err)
	}

	correlationID := logger.CorrelationIDFromContext(ctx)
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	req.Header.Set(middleware.CorrelationHeader, correlationID)
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	tracing.InjectHeaders(ctx, req.Header)
	return req, nil
}

// transportError classifies a failure that produced no usable response.
// Caller cancellation is passed through untouched.
func transportError(service string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if httpclient.Rejected(err) {
		return apperrors.Transient(fmt.Errorf("%s temporarily unavailable: %w", service, err))
	}
	return apperrors.Transient(fmt.Errorf("call %s: %w", service, err))
}

// readMessage consumes an error body and extracts the server's message.
func readMessage(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return ""
	}
	return httpclient.ErrorMessage(body)
}

func submissionMessage(msg string) string {
	if msg == "" {
		return "the visit could not be submitted"
	}
	return msg
}
