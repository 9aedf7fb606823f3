package upload

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/bodgit/patronlink/avatar"
)

const placeholder = "{id}"

// StatusError is returned when the server responds with anything other than
// a 2xx status.
type StatusError struct {
	ID         avatar.ID
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upload: %s: unexpected status %d %s", e.ID, e.StatusCode, http.StatusText(e.StatusCode))
}

// HTTP uploads images with a PUT request to a URL built by replacing "{id}"
// in a template with the identifier. Images can be fetched back with a GET
// request to the same URL.
type HTTP struct {
	client   *http.Client
	template string
}

// NewHTTP returns an HTTP uploader. If client is nil http.DefaultClient is
// used.
func NewHTTP(template string, client *http.Client) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{
		client:   client,
		template: template,
	}
}

func (h *HTTP) url(id avatar.ID) string {
	return strings.ReplaceAll(h.template, placeholder, id.String())
}

// Upload sends file to the server.
func (h *HTTP) Upload(ctx context.Context, id avatar.ID, file string) error {
	b, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	sum := md5.Sum(b)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, h.url(id), bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "image/png")
	req.Header.Set("Content-MD5", base64.StdEncoding.EncodeToString(sum[:]))

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return &StatusError{ID: id, StatusCode: resp.StatusCode}
	}

	return nil
}

// Open fetches the image for id.
func (h *HTTP) Open(ctx context.Context, id avatar.ID) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url(id), nil)
	if err != nil {
		return nil, err
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &StatusError{ID: id, StatusCode: resp.StatusCode}
	}

	return resp.Body, nil
}
