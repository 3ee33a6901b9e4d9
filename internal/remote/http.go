package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTP is a Backend for a WebDAV-style file endpoint: HEAD to stat, GET to
// read, PUT to write. The locator is the file URL.
type HTTP struct {
	base   string
	client *http.Client
}

var _ Backend = (*HTTP)(nil)

// NewHTTP returns an HTTP backend for files under baseURL. A nil client gets
// a 30s timeout.
func NewHTTP(baseURL string, client *http.Client) (*HTTP, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("remote: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("remote: base url must be http or https: %s", baseURL)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTP{base: strings.TrimRight(baseURL, "/"), client: client}, nil
}

func (h *HTTP) fileURL(name string) string {
	return h.base + "/" + url.PathEscape(name)
}

func (h *HTTP) Find(ctx context.Context, token, name string) (string, bool, error) {
	loc := h.fileURL(name)
	err := h.Stat(ctx, token, loc)
	if IsNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return loc, true, nil
}

func (h *HTTP) Create(ctx context.Context, token, name string) (string, error) {
	loc := h.fileURL(name)
	resp, err := h.do(ctx, "create", http.MethodPut, token, loc, []byte{}, map[string]string{"If-None-Match": "*"})
	if err != nil {
		var re *Error
		// 412: someone created it first, which is just as good.
		if errors.As(err, &re) && re.Status == http.StatusPreconditionFailed {
			return loc, nil
		}
		return "", err
	}
	resp.Body.Close()
	return loc, nil
}

func (h *HTTP) Stat(ctx context.Context, token, loc string) error {
	resp, err := h.do(ctx, "stat", http.MethodHead, token, loc, nil, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (h *HTTP) Read(ctx context.Context, token, loc string) ([]byte, error) {
	resp, err := h.do(ctx, "read", http.MethodGet, token, loc, nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindTransient, Op: "read", Err: err}
	}
	return data, nil
}

func (h *HTTP) Write(ctx context.Context, token, loc string, data []byte) error {
	resp, err := h.do(ctx, "write", http.MethodPut, token, loc, data, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// do sends one request and turns any non-2xx status into an *Error.
func (h *HTTP) do(ctx context.Context, op, method, token, loc string, body []byte, headers map[string]string) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, loc, rd)
	if err != nil {
		return nil, &Error{Kind: KindTransient, Op: op, Err: err}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "text/markdown; charset=utf-8")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindTransient, Op: op, Err: err}
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	text := strings.TrimSpace(string(msg))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return nil, newError(op, resp.StatusCode, errors.New(text))
}
