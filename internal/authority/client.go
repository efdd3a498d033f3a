// Package authority talks to the remote Exam Authority: eligibility, exam
// definitions, submissions and login.
package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/model"
	"github.com/stemsi/exstem-runner/internal/response"
)

// ErrServiceUnavailable wraps every transport-level failure.
var ErrServiceUnavailable = errors.New("exam authority unavailable")

// APIError is a non-2xx reply. Message is the authority's own wording and is
// shown to the subject verbatim.
type APIError struct {
	StatusCode int
	Code       response.ErrCode
	Message    string
}

func (e *APIError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return e.Message
}

// envelope mirrors response.Response with a deferred data field.
type envelope struct {
	Data     json.RawMessage     `json:"data"`
	Error    *response.ErrorBody `json:"error"`
	Metadata response.Metadata   `json:"metadata"`
}

// HTTPClient is the runner's Exam Authority client.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	credential *Credential
	log        zerolog.Logger
}

func NewHTTPClient(baseURL string, httpClient *http.Client, credential *Credential, log zerolog.Logger) *HTTPClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8050"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if credential == nil {
		credential = NewCredential("")
	}
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: httpClient,
		credential: credential,
		log:        log.With().Str("component", "authority_client").Logger(),
	}
}

// BaseURL returns the authority root, used to derive the WebSocket URL.
func (c *HTTPClient) BaseURL() string { return c.baseURL }

// Credential returns the credential attached to every call.
func (c *HTTPClient) Credential() *Credential { return c.credential }

func examPath(examID, suffix string) string {
	return "/api/v1/student/exams/" + url.PathEscape(examID) + "/" + suffix
}

// Eligibility asks whether the subject may start or resume examID now.
func (c *HTTPClient) Eligibility(ctx context.Context, examID string) (model.EligibilitySnapshot, error) {
	var payload EligibilityPayload
	if err := c.doJSON(ctx, http.MethodGet, examPath(examID, "eligibility"), nil, &payload, true); err != nil {
		return model.EligibilitySnapshot{}, err
	}
	return payload.ToModel(), nil
}

// Definition fetches the exam definition. Only call after a positive
// eligibility check.
func (c *HTTPClient) Definition(ctx context.Context, examID string) (*model.ExamDefinition, error) {
	var payload DefinitionPayload
	if err := c.doJSON(ctx, http.MethodGet, examPath(examID, "definition"), nil, &payload, true); err != nil {
		return nil, err
	}
	def, err := payload.ToModel(examID)
	if err != nil {
		return nil, fmt.Errorf("decode exam definition: %w", err)
	}
	return def, nil
}

// Submit sends one attempt. The authority treats each call as a new attempt.
func (c *HTTPClient) Submit(ctx context.Context, examID string, sub model.Submission) (*model.SubmissionResult, error) {
	req := SubmissionRequest{Answers: sub.Answers, TimeSpent: sub.TimeSpentSeconds}
	if req.Answers == nil {
		req.Answers = model.AnswerMap{}
	}

	var payload SubmissionPayload
	if err := c.doJSON(ctx, http.MethodPost, examPath(examID, "submissions"), req, &payload, true); err != nil {
		return nil, err
	}
	return payload.ToModel(), nil
}

// Login exchanges NISN and password for a token and stores it on the
// client's credential.
func (c *HTTPClient) Login(ctx context.Context, nisn, password string) (string, error) {
	var payload LoginPayload
	req := LoginRequest{NISN: nisn, Password: password}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/auth/student/login", req, &payload, false); err != nil {
		return "", err
	}
	if payload.Token == "" {
		return "", errors.New("login response carried no token")
	}
	c.credential.Set(payload.Token)
	return payload.Token, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, requestBody, responseBody any, authenticated bool) error {
	var body io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	request.Header.Set("Accept", "application/json")
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if authenticated {
		token, err := c.credential.Token()
		if err != nil {
			return err
		}
		request.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(request)
	if err != nil {
		c.log.Warn().Err(err).Str("method", method).Str("path", path).Msg("Authority request failed")
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("Authority request")

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if decodeErr == nil && env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		if apiErr.Message == "" {
			apiErr.Message = resp.Status
		}
		return apiErr
	}

	if decodeErr != nil {
		return fmt.Errorf("decode response envelope: %w", decodeErr)
	}
	if responseBody == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, responseBody); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}
