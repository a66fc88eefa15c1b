package cli

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
	"path/filepath"
	"strings"
	"time"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
	http_transport "github.com/SARVESHVARADKAR123/ledgermsg/internal/transport/http"
)

// APIError is a non-2xx answer from a node.
type APIError struct {
	Status  int
	Code    string
	Message string
	FlowID  string
}

func (e *APIError) Error() string {
	if e.FlowID != "" {
		return fmt.Sprintf("%s (%d): %s [flow %s]", e.Code, e.Status, e.Message, e.FlowID)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// Client talks to one node's HTTP API.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		apiErr := &APIError{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}
		var body http_transport.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&body) == nil && body.Error != "" {
			apiErr.Code, apiErr.Message, apiErr.FlowID = body.Error, body.Message, body.FlowID
		}
		return nil, apiErr
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return 0, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out == nil {
		return resp.StatusCode, nil
	}
	return resp.StatusCode, json.NewDecoder(resp.Body).Decode(out)
}

// Upload sends a file to the node's attachment store and returns its hash.
func (c *Client) Upload(ctx context.Context, path, uploader string) (domain.SecureHash, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return "", err
	}
	if uploader != "" {
		if err := mw.WriteField("uploader", uploader); err != nil {
			return "", err
		}
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/attachments", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	loc := resp.Header.Get("Location")
	return domain.ParseSecureHash(loc[strings.LastIndex(loc, "/")+1:])
}

func (c *Client) Send(ctx context.Context, recipient, contents, attachment string) (*http_transport.FlowResult, bool, error) {
	var out http_transport.FlowResult
	status, err := c.doJSON(ctx, http.MethodPost, "/messages", map[string]string{
		"recipient": recipient, "contents": contents, "attachment": attachment,
	}, &out)
	if err != nil {
		return nil, false, err
	}
	return &out, status == http.StatusAccepted, nil
}

func (c *Client) Reply(ctx context.Context, linearID, contents, attachment string) (*http_transport.FlowResult, bool, error) {
	var out http_transport.FlowResult
	status, err := c.doJSON(ctx, http.MethodPost, "/messages/"+url.PathEscape(linearID)+"/reply", map[string]string{
		"contents": contents, "attachment": attachment,
	}, &out)
	if err != nil {
		return nil, false, err
	}
	return &out, status == http.StatusAccepted, nil
}

func (c *Client) List(ctx context.Context) ([]http_transport.MessageView, error) {
	var out []http_transport.MessageView
	_, err := c.doJSON(ctx, http.MethodGet, "/messages", nil, &out)
	return out, err
}

func (c *Client) Flow(ctx context.Context, id string) (*http_transport.FlowView, error) {
	var out http_transport.FlowView
	if _, err := c.doJSON(ctx, http.MethodGet, "/flows/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Transaction(ctx context.Context, id string) (*domain.SignedTransaction, error) {
	var out domain.SignedTransaction
	if _, err := c.doJSON(ctx, http.MethodGet, "/transactions/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
