// Package api is the HTTP client for the Student Performance Analyzer
// service. Every call except Login carries the bearer credential
// supplied by the TokenSource; the client never inspects the token.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"perfview/internal/config"
)

// TokenSource yields the current bearer credential, or "" when no
// session exists. The session manager is the only implementation in
// production; tests stub it.
type TokenSource interface {
	Token() string
}

type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	log     zerolog.Logger
}

func NewClient(cfg config.UpstreamConfig, tokens TokenSource, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		tokens:  tokens,
		log:     log,
	}
}

type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Token    string `json:"token"`
}

// Code is the wire shape of an access code. ExpiresAt stays a string:
// the service emits a naive ISO-8601 timestamp that does not always
// parse as RFC 3339, and display formatting is the caller's concern.
type Code struct {
	Code      string `json:"code"`
	ExpiresAt string `json:"expires_at"`
}

type TopicAverage struct {
	TopicID      int     `json:"topic_id"`
	TopicName    string  `json:"topic_name"`
	AverageScore float64 `json:"average_score"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Code     string `json:"code,omitempty"`
}

type analyticsResponse struct {
	TopicAverages []TopicAverage `json:"topic_averages"`
}

type syllabusResponse struct {
	Message string   `json:"message"`
	Topics  []string `json:"topics"`
}

type answerResponse struct {
	Message string             `json:"message"`
	Scores  map[string]float64 `json:"scores"`
}

func (c *Client) Login(ctx context.Context, username, password, code string) (User, error) {
	var user User
	err := c.call(ctx, http.MethodPost, "/api/auth/login", loginRequest{
		Username: username,
		Password: password,
		Code:     code,
	}, &user)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// CurrentCode returns the active access code, or nil when none exists.
// The service answers with a JSON null in that case; it is not an error.
func (c *Client) CurrentCode(ctx context.Context) (*Code, error) {
	var code *Code
	if err := c.call(ctx, http.MethodGet, "/api/teacher/current-code", nil, &code); err != nil {
		return nil, err
	}
	return code, nil
}

func (c *Client) GenerateCode(ctx context.Context) (Code, error) {
	var code Code
	if err := c.call(ctx, http.MethodPost, "/api/teacher/generate-code", nil, &code); err != nil {
		return Code{}, err
	}
	return code, nil
}

func (c *Client) Analytics(ctx context.Context) ([]TopicAverage, error) {
	var resp analyticsResponse
	if err := c.call(ctx, http.MethodGet, "/api/teacher/analytics", nil, &resp); err != nil {
		return nil, err
	}
	return resp.TopicAverages, nil
}

func (c *Client) UploadSyllabus(ctx context.Context, filename string, file io.Reader) ([]string, error) {
	var resp syllabusResponse
	if err := c.upload(ctx, "/api/teacher/upload-syllabus", filename, file, &resp); err != nil {
		return nil, err
	}
	return resp.Topics, nil
}

func (c *Client) UploadAnswer(ctx context.Context, filename string, file io.Reader) (map[string]float64, error) {
	var resp answerResponse
	if err := c.upload(ctx, "/api/student/upload-answer", filename, file, &resp); err != nil {
		return nil, err
	}
	return resp.Scores, nil
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, out)
}

func (c *Client) upload(ctx context.Context, path, filename string, file io.Reader, out any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("read upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		err := newError(resp.StatusCode, data)
		c.log.Debug().Int("status", resp.StatusCode).Str("path", req.URL.Path).
			Err(err).Msg("upstream rejected request")
		return err
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
