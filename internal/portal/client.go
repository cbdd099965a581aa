// Package portal fetches the export bundle from the operations portal.
//
// The portal is an external collaborator: this client signs in, requests
// generation of the configured export, polls until the bundle is ready and
// downloads it into the work directory. The pipeline never talks to the
// portal directly; it only sees the downloaded bundle path.
package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// Client drives the portal's export API.
type Client struct {
	baseURL      *url.URL
	httpClient   *http.Client
	opsID        string
	password     string
	report       string
	pollInterval time.Duration
	pollTimeout  time.Duration
	workDir      string

	token string
}

// Options configures a Client.
type Options struct {
	BaseURL      string
	OpsID        string
	Password     string
	Report       string // export name, e.g. "Packed"
	PollInterval time.Duration
	PollTimeout  time.Duration
	WorkDir      string // where the downloaded bundle lands
}

// New validates opts and returns a Client.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("portal: invalid base url %q", opts.BaseURL)
	}
	if opts.OpsID == "" || opts.Password == "" {
		return nil, fmt.Errorf("portal: ops id and password are required")
	}
	if opts.Report == "" {
		opts.Report = "Packed"
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 10 * time.Second
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 5 * time.Minute
	}

	return &Client{
		baseURL:      base,
		httpClient:   &http.Client{Timeout: 2 * time.Minute},
		opsID:        opts.OpsID,
		password:     opts.Password,
		report:       opts.Report,
		pollInterval: opts.PollInterval,
		pollTimeout:  opts.PollTimeout,
		workDir:      opts.WorkDir,
	}, nil
}

// Fetch runs login → request export → poll → download and returns the local
// path of the downloaded bundle. The file name carries the current hour so
// consecutive hourly runs overwrite their own slot instead of accumulating.
func (c *Client) Fetch(ctx context.Context) (string, error) {
	if err := c.login(ctx); err != nil {
		return "", fmt.Errorf("portal login: %w", err)
	}

	taskID, err := c.requestExport(ctx)
	if err != nil {
		return "", fmt.Errorf("portal export request: %w", err)
	}

	downloadURL, err := c.waitForExport(ctx, taskID)
	if err != nil {
		return "", fmt.Errorf("portal export wait: %w", err)
	}

	dest := filepath.Join(c.workDir, fmt.Sprintf("TO-%s%s.zip", c.report, time.Now().Format("15")))
	if err := c.download(ctx, downloadURL, dest); err != nil {
		return "", fmt.Errorf("portal download: %w", err)
	}
	return dest, nil
}

func (c *Client) login(ctx context.Context) error {
	var resp struct {
		Token string `json:"token"`
	}
	err := c.postJSON(ctx, "/api/auth/login", map[string]string{
		"ops_id":   c.opsID,
		"password": c.password,
	}, &resp)
	if err != nil {
		return err
	}
	if resp.Token == "" {
		return fmt.Errorf("empty token in login response")
	}
	c.token = resp.Token
	return nil
}

func (c *Client) requestExport(ctx context.Context) (string, error) {
	var resp struct {
		TaskID string `json:"task_id"`
	}
	err := c.postJSON(ctx, "/api/to-management/export", map[string]string{
		"report": c.report,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.TaskID == "" {
		return "", fmt.Errorf("empty task id in export response")
	}
	return resp.TaskID, nil
}

// waitForExport polls the task until the portal reports it ready.
func (c *Client) waitForExport(ctx context.Context, taskID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.pollTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		var resp struct {
			Status string `json:"status"`
			URL    string `json:"url"`
		}
		if err := c.getJSON(ctx, "/api/export/tasks/"+url.PathEscape(taskID), &resp); err != nil {
			return "", err
		}
		switch resp.Status {
		case "ready":
			if resp.URL == "" {
				return "", fmt.Errorf("task %s ready without download url", taskID)
			}
			return resp.URL, nil
		case "failed":
			return "", fmt.Errorf("export task %s failed on the portal side", taskID)
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("export task %s not ready: %w", taskID, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) download(ctx context.Context, rawURL, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download status %s", resp.Status)
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	return out.Close()
}

func (c *Client) postJSON(ctx context.Context, path string, body any, into any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, into)
}

func (c *Client) getJSON(ctx context.Context, path string, into any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, into)
}

// newRequest resolves path against the base URL (absolute URLs pass
// through, for download links) and attaches the session token when present.
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	u, err := url.Parse(path)
	if err != nil {
		return nil, err
	}
	target := c.baseURL.ResolveReference(u).String()

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, into any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %s: %s", req.Method, req.URL.Path, resp.Status, snippet)
	}
	if into == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(into)
}
