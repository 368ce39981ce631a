// File: internal/handlers/upload_handler_test.go
package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weichi/go-chatroom/internal/dtos"
)

func multipartUpload(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestUploadStoresFileUnderRandomName(t *testing.T) {
	dir := t.TempDir()
	handler := NewUploadHandler(dir, 1<<20)

	rec := httptest.NewRecorder()
	handler.Upload(rec, multipartUpload(t, "photo.PNG", []byte("fake image bytes")))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp dtos.UploadResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, strings.HasPrefix(resp.URL, "/static/uploads/"))
	assert.True(t, strings.HasSuffix(resp.URL, ".png"))
	// The client's filename never reaches the disk.
	assert.NotContains(t, resp.URL, "photo")

	stored := filepath.Join(dir, filepath.Base(resp.URL))
	data, err := os.ReadFile(stored)
	require.NoError(t, err)
	assert.Equal(t, []byte("fake image bytes"), data)
}

func TestUploadRejectsDisallowedExtension(t *testing.T) {
	handler := NewUploadHandler(t.TempDir(), 1<<20)

	for _, filename := range []string{"payload.exe", "script.sh", "noextension", "archive.tar.xz"} {
		rec := httptest.NewRecorder()
		handler.Upload(rec, multipartUpload(t, filename, []byte("content")))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "filename %q", filename)
	}
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	handler := NewUploadHandler(t.TempDir(), 64)

	rec := httptest.NewRecorder()
	handler.Upload(rec, multipartUpload(t, "big.png", bytes.Repeat([]byte("a"), 1024)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadRequiresFileField(t *testing.T) {
	handler := NewUploadHandler(t.TempDir(), 1<<20)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("note", "no file here"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	rec := httptest.NewRecorder()
	handler.Upload(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
