package api

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

	"quill/internal/jobs"
)

const defaultHTTPTimeout = 30 * time.Second

// HTTPDoer describes the HTTP client used by the contract service client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config describes the contract service client configuration.
type Config struct {
	BaseURL    string
	Token      string
	HTTPClient HTTPDoer
}

// Client wraps the contract service REST API.
type Client struct {
	baseURL *url.URL
	token   string
	http    HTTPDoer
}

// New creates a Client from the supplied configuration.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("api: base url is required")
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("api: parse base url: %w", err)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Client{
		baseURL: baseURL,
		token:   strings.TrimSpace(cfg.Token),
		http:    client,
	}, nil
}

// GenerationState is the generation poll payload. ContractID is populated
// only once the backend reports done.
type GenerationState struct {
	Status     jobs.Status
	ContractID string
}

type reserveRequest struct {
	Filename string `json:"filename"`
}

type reserveResponse struct {
	UploadURL string `json:"upload_url"`
}

type statusResponse struct {
	Status     string `json:"status"`
	ContractID string `json:"contract_id"`
}

// ReserveUpload obtains a one-time upload address for the named recording.
// The returned slot is single-use; a failed transmission must discard it and
// reserve a fresh one.
func (c *Client) ReserveUpload(ctx context.Context, filename string) (string, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return "", Wrap(ErrValidation, "reserve upload", "filename required", nil)
	}
	var out reserveResponse
	if err := c.doJSON(ctx, http.MethodPost, "/contracts/audio/reserve", reserveRequest{Filename: filename}, http.StatusOK, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.UploadURL) == "" {
		return "", Wrap(ErrProtocol, "reserve upload", "empty upload address", nil)
	}
	return out.UploadURL, nil
}

// WriteUpload transmits the payload to a reserved upload address. Success is
// the backend's explicit no-content acknowledgment.
func (c *Client) WriteUpload(ctx context.Context, address string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, address, bytes.NewReader(payload))
	if err != nil {
		return Wrap(ErrValidation, "write upload", "build request", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return Wrap(ErrTransient, "write upload", "transmit payload", err)
	}
	defer drainAndClose(resp.Body)
	if resp.StatusCode != http.StatusNoContent {
		return Wrap(markerForStatus(resp.StatusCode), "write upload", fmt.Sprintf("unexpected response %d", resp.StatusCode), nil)
	}
	return nil
}

// TranscriptionStatus polls the active transcription job.
func (c *Client) TranscriptionStatus(ctx context.Context) (jobs.Status, error) {
	var out statusResponse
	if err := c.doJSON(ctx, http.MethodGet, "/contracts/audio/status", nil, http.StatusOK, &out); err != nil {
		return "", err
	}
	status, ok := jobs.ParseStatus(jobs.KindTranscription, out.Status)
	if !ok {
		return "", Wrap(ErrProtocol, "transcription status", fmt.Sprintf("unrecognized status %q", out.Status), nil)
	}
	return status, nil
}

// RetryTranscription asks the backend to resume a failed transcription.
func (c *Client) RetryTranscription(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/contracts/audio/retry", nil, http.StatusAccepted, nil)
}

// CancelTranscription requests cancellation of the active transcription job.
// Cancellation is asynchronous: the caller keeps polling until the backend
// reports cancelled.
func (c *Client) CancelTranscription(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/contracts/audio/cancel", nil, http.StatusNoContent, nil)
}

// RequestGeneration starts a contract generation job from the completed
// transcription.
func (c *Client) RequestGeneration(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/contracts/generate", nil, http.StatusAccepted, nil)
}

// GenerationStatus polls the active generation job.
func (c *Client) GenerationStatus(ctx context.Context) (GenerationState, error) {
	var out statusResponse
	if err := c.doJSON(ctx, http.MethodGet, "/contracts/generate/status", nil, http.StatusOK, &out); err != nil {
		return GenerationState{}, err
	}
	status, ok := jobs.ParseStatus(jobs.KindGeneration, out.Status)
	if !ok {
		return GenerationState{}, Wrap(ErrProtocol, "generation status", fmt.Sprintf("unrecognized status %q", out.Status), nil)
	}
	return GenerationState{Status: status, ContractID: strings.TrimSpace(out.ContractID)}, nil
}

// CancelGeneration requests cancellation of the active generation job.
func (c *Client) CancelGeneration(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/contracts/generate/cancel", nil, http.StatusNoContent, nil)
}

// Ping verifies the backend is reachable and the token is accepted. A
// not-found response is fine: it just means no job exists yet.
func (c *Client) Ping(ctx context.Context) error {
	err := c.doJSON(ctx, http.MethodGet, "/contracts/audio/status", nil, http.StatusOK, nil)
	if err != nil && errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, wantStatus int, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return Wrap(ErrValidation, path, "encode request", err)
		}
		reader = bytes.NewReader(encoded)
	}

	endpoint := c.baseURL.JoinPath(path).String()
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return Wrap(ErrValidation, path, "build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Wrap(ErrTransient, path, "request failed", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != wantStatus {
		detail := readErrorDetail(resp.Body)
		return Wrap(markerForStatus(resp.StatusCode), path, fmt.Sprintf("unexpected response %d%s", resp.StatusCode, detail), nil)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return Wrap(ErrProtocol, path, "decode response", err)
	}
	return nil
}

func readErrorDetail(body io.Reader) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(io.LimitReader(body, 4096)).Decode(&payload); err != nil {
		return ""
	}
	if strings.TrimSpace(payload.Detail) == "" {
		return ""
	}
	return " (" + payload.Detail + ")"
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 1<<20))
	_ = body.Close()
}
