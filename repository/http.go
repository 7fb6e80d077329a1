package repository

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/hypertrace/artifact-publisher/utils"
	"github.com/jfrog/gofrog/log"
)

const userAgent = "artifact-publisher"

// httpClient sends authenticated requests to one repository base URL.
// It never retries on its own: file uploads are retried by the staging coordinator,
// and staging transitions must not be retried at all.
type httpClient struct {
	client      *retryablehttp.Client
	baseUrl     string
	credentials Credentials
}

func newHttpClient(baseUrl string, credentials Credentials, options ClientOptions) *httpClient {
	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.HTTPClient.Timeout = options.Timeout
	client.Logger = leveledLogger{}
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if !strings.HasSuffix(baseUrl, "/") {
		baseUrl += "/"
	}
	return &httpClient{client: client, baseUrl: baseUrl, credentials: credentials}
}

func (hc *httpClient) url(path string) string {
	return hc.baseUrl + strings.TrimPrefix(path, "/")
}

// send performs the request and returns the status code and the response body.
func (hc *httpClient) send(ctx context.Context, method, path string, body interface{}, contentType string) (int, []byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, hc.url(path), body)
	if err != nil {
		return 0, nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if !hc.credentials.IsEmpty() {
		req.SetBasicAuth(hc.credentials.Username, hc.credentials.Password)
	}
	log.Debug(fmt.Sprintf("Sending %s %s", method, utils.MaskCredentials(hc.url(path))))
	resp, err := hc.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, respBody, nil
}

// upload PUTs a file and maps failures to *utils.UploadError.
func (hc *httpClient) upload(ctx context.Context, path, remotePath string, content io.Reader, size int64) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPut, hc.url(path), content)
	if err != nil {
		return &utils.UploadError{Path: remotePath, Err: err}
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("User-Agent", userAgent)
	if !hc.credentials.IsEmpty() {
		req.SetBasicAuth(hc.credentials.Username, hc.credentials.Password)
	}
	log.Debug(fmt.Sprintf("Uploading %s (%d bytes)", remotePath, size))
	resp, err := hc.client.Do(req)
	if err != nil {
		// Network failures and timeouts are transient, unless the caller gave up.
		return &utils.UploadError{Path: remotePath, Transient: ctx.Err() == nil, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if isSuccess(resp.StatusCode) {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return utils.NewUploadErrorFromStatus(remotePath, resp.StatusCode, strings.TrimSpace(string(body)))
}

func isSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

// leveledLogger routes retryablehttp messages to the gofrog logger.
type leveledLogger struct{}

func (leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	log.Error(formatLogMessage(msg, keysAndValues))
}

func (leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug(formatLogMessage(msg, keysAndValues))
}

func (leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	log.Debug(formatLogMessage(msg, keysAndValues))
}

func (leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	log.Warn(formatLogMessage(msg, keysAndValues))
}

func formatLogMessage(msg string, keysAndValues []interface{}) string {
	var sb strings.Builder
	sb.WriteString(msg)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		sb.WriteString(fmt.Sprintf(" %v=%v", keysAndValues[i], keysAndValues[i+1]))
	}
	return utils.MaskCredentials(sb.String())
}
