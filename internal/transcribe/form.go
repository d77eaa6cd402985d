package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

// formRequest is one multipart upload of an audio file plus form fields.
type formRequest struct {
	url       string
	fileField string
	audioPath string
	fields    [][2]string // ordered name/value pairs; empty values are skipped
	header    http.Header
}

func (fr *formRequest) field(name, value string) {
	if value != "" {
		fr.fields = append(fr.fields, [2]string{name, value})
	}
}

// postForm sends fr and returns the body of a 200 response. Any other status
// is an error carrying a truncated body.
func postForm(ctx context.Context, client *http.Client, provider string, fr *formRequest) ([]byte, error) {
	f, err := os.Open(fr.audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile(fr.fileField, filepath.Base(fr.audioPath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("copy audio data: %w", err)
	}
	for _, kv := range fr.fields {
		if err := w.WriteField(kv[0], kv[1]); err != nil {
			return nil, fmt.Errorf("write field %s: %w", kv[0], err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fr.url, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range fr.header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s API error (status %d): %s", provider, resp.StatusCode, truncate(body, 512))
	}
	return body, nil
}

// truncate shortens an error body for logs and error messages.
func truncate(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n]) + "..."
}
