package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BradenHooton/csm/internal/models"
)

// ErrNotLoggedIn is returned when the agent does not accept the credentials
// or cannot be reached during login
var ErrNotLoggedIn = models.Unauthorized(models.KeyNotAuthorized, "You are not authorized to run cli commands.")

// Response is the outcome of a REST call. Data holds the decoded JSON body;
// Raw holds the body of binary downloads.
type Response struct {
	Status int
	Header http.Header
	Data   any
	Raw    []byte
}

// OK reports a 2xx status
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// RestClient talks to the agent's REST API on behalf of one CLI invocation
type RestClient struct {
	baseURL string
	http    *http.Client
	token   string
	logger  *slog.Logger
}

// NewRestClient creates a client for the agent at baseURL
func NewRestClient(baseURL string, timeout time.Duration, logger *slog.Logger) *RestClient {
	return &RestClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (c *RestClient) do(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, []byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, models.ServiceUnavailable(models.KeyAgentUnavailable, "Cannot connect to csm agent's host %s", req.URL.Host)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, models.ServiceUnavailable(models.KeyAgentUnavailable, "Cannot connect to csm agent's host %s", req.URL.Host)
	}
	return resp, data, nil
}

// Login exchanges credentials for a bearer token. Every failure is reported
// as ErrNotLoggedIn.
func (c *RestClient) Login(ctx context.Context, username, password string) error {
	resp, _, err := c.do(ctx, http.MethodPost, apiPrefix+"/login", nil, map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		c.logger.Debug("login request failed", slog.Any("error", err))
		return ErrNotLoggedIn
	}
	scheme, token, ok := strings.Cut(resp.Header.Get("Authorization"), " ")
	if resp.StatusCode != http.StatusOK || !ok || scheme != "Bearer" || token == "" {
		c.logger.Debug("login rejected", slog.Int("status", resp.StatusCode))
		return ErrNotLoggedIn
	}
	c.token = token
	return nil
}

// Logout ends the session. Errors are logged and ignored.
func (c *RestClient) Logout(ctx context.Context) {
	if c.token == "" {
		return
	}
	resp, _, err := c.do(ctx, http.MethodPost, apiPrefix+"/logout", nil, nil)
	if err != nil {
		c.logger.Warn("error while performing logout operation", slog.Any("error", err))
	} else if resp.StatusCode != http.StatusOK {
		c.logger.Warn("logout rejected", slog.Int("status", resp.StatusCode))
	}
	c.token = ""
}

// Permissions returns what the logged in user may do
func (c *RestClient) Permissions(ctx context.Context) (models.Permissions, error) {
	resp, data, err := c.do(ctx, http.MethodGet, apiPrefix+"/permissions", nil, nil)
	if err != nil {
		return nil, err
	}
	var perms models.Permissions
	if resp.StatusCode != http.StatusOK || json.Unmarshal(data, &perms) != nil {
		return nil, models.Forbidden(models.KeyPermissionDenied, "Could not get permissions from server, check session")
	}
	return perms, nil
}

// Call runs cmd against the agent
func (c *RestClient) Call(ctx context.Context, cmd *Command) (*Response, error) {
	r := cmd.Request()
	resp, data, err := c.do(ctx, r.Method, r.Path, r.Query, r.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrNotLoggedIn
	}

	out := &Response{Status: resp.StatusCode, Header: resp.Header}
	if mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mediaType != "application/json" && out.OK() {
		out.Raw = data
		return out, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&out.Data); err != nil {
		return nil, models.InvalidRequest(models.KeyInvalidResponse, "Could not parse the response")
	}
	return out, nil
}

// AttachmentName returns the file name announced by a download response
func (r *Response) AttachmentName() (string, error) {
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Disposition"))
	if err != nil || params["filename"] == "" {
		return "", errors.New("response carries no attachment")
	}
	return params["filename"], nil
}
