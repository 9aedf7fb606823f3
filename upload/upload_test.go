package upload

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/bodgit/patronlink/avatar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Uploader       = new(Directory)
	_ Uploader       = new(HTTP)
	_ avatar.Fetcher = new(Directory)
	_ avatar.Fetcher = new(HTTP)
)

var testID = avatar.MustParseID("avtr_c38a2f51-2f4b-4d4c-9a57-2d1e0f8e6a11")

func writeImage(t *testing.T, text string) string {
	t.Helper()

	f, err := os.CreateTemp(t.TempDir(), "*.png")
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, avatar.EncodeImage(f, []byte(text), avatar.EmptyID))

	return f.Name()
}

func TestDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	d, err := NewDirectory(dir)
	require.NoError(t, err)

	file := writeImage(t, "Gold.Alice")
	require.NoError(t, d.Upload(context.Background(), testID, file))

	// Replacing an existing image
	file = writeImage(t, "Gold.Alice.Bob")
	require.NoError(t, d.Upload(context.Background(), testID, file))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, testID.String()+".png", entries[0].Name())

	b, err := avatar.DecodeChain(context.Background(), d, testID)
	require.NoError(t, err)
	assert.Equal(t, "Gold.Alice.Bob", string(b))
}

func TestDirectoryCancelled(t *testing.T) {
	d, err := NewDirectory(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = d.Upload(ctx, testID, writeImage(t, "Gold.Alice"))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestHTTP(t *testing.T) {
	var mu sync.Mutex
	stored := make(map[string][]byte)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()

		switch r.Method {
		case http.MethodPut:
			b, err := io.ReadAll(r.Body)
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			sum := md5.Sum(b)
			if r.Header.Get("Content-MD5") != base64.StdEncoding.EncodeToString(sum[:]) || r.Header.Get("Content-Type") != "image/png" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			stored[r.URL.Path] = b
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			b, ok := stored[r.URL.Path]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write(b)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	defer srv.Close()

	h := NewHTTP(srv.URL+"/avatars/{id}/image", srv.Client())
	require.NoError(t, h.Upload(context.Background(), testID, writeImage(t, "Gold.Alice")))

	mu.Lock()
	_, ok := stored["/avatars/"+testID.String()+"/image"]
	mu.Unlock()
	assert.True(t, ok)

	b, err := avatar.DecodeChain(context.Background(), h, testID)
	require.NoError(t, err)
	assert.Equal(t, "Gold.Alice", string(b))

	_, err = h.Open(context.Background(), avatar.MustParseID("avtr_00000000-0000-0000-0000-000000000001"))
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}

func TestHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	h := NewHTTP(srv.URL+"/{id}", nil)
	err := h.Upload(context.Background(), testID, writeImage(t, "Gold.Alice"))

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.True(t, strings.Contains(err.Error(), testID.String()))
}
