// File: internal/handlers/upload_handler.go
package handlers

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/weichi/go-chatroom/internal/dtos"
)

// allowedExtensions is the upload whitelist. Anything else is rejected
// before a byte is written to disk.
var allowedExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true,
	"pdf": true, "doc": true, "docx": true,
	"zip": true, "rar": true,
	"mp4": true, "webm": true,
}

// UploadHandler stores shared media files and hands back the stable URL a
// client then sends in an image/file/video frame. The chat core never sees
// file bytes, only these URLs.
type UploadHandler struct {
	uploadDir string
	maxBytes  int64
}

func NewUploadHandler(uploadDir string, maxBytes int64) *UploadHandler {
	return &UploadHandler{uploadDir: uploadDir, maxBytes: maxBytes}
}

// Upload accepts one multipart file, validates its extension and size, and
// stores it under a randomized name.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		writeError(w, http.StatusBadRequest, "file too large or malformed form data")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer func() { _ = file.Close() }()

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(header.Filename), "."))
	if !allowedExtensions[ext] {
		writeError(w, http.StatusBadRequest, "unsupported file type")
		return
	}

	// Randomized name: never trust the client's filename on disk.
	storedName := fmt.Sprintf("%s.%s", uuid.New().String(), ext)
	storedPath := filepath.Join(h.uploadDir, storedName)

	dst, err := os.Create(storedPath)
	if err != nil {
		log.Printf("[UploadHandler] Failed to create %s: %v", storedPath, err)
		writeError(w, http.StatusInternalServerError, "file upload failed")
		return
	}
	defer func() { _ = dst.Close() }()

	if _, err := io.Copy(dst, file); err != nil {
		log.Printf("[UploadHandler] Failed to write %s: %v", storedPath, err)
		_ = os.Remove(storedPath)
		writeError(w, http.StatusInternalServerError, "file upload failed")
		return
	}

	writeJSON(w, http.StatusOK, dtos.UploadResponseDTO{URL: "/static/uploads/" + storedName})
}
