package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/pkolev/warrantyhub/pkg/apperr"
	"github.com/pkolev/warrantyhub/pkg/blob"
	"github.com/pkolev/warrantyhub/pkg/httputil"
)

const maxUploadBytes = 20 << 20 // 20 MiB

type uploadResponse struct {
	ObjectKey string `json:"objectKey"`
}

// upload accepts a multipart form with a single "file" field, stores the
// content in the blob store under a fresh key and returns the key. The
// caller then attaches the key to a warranty item as a document.
func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httputil.WriteBadRequest(w, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteBadRequest(w, "file field is required")
		return
	}
	defer file.Close()

	key := blob.NewKey(header.Filename)
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := s.blobs.Put(r.Context(), key, file, contentType); err != nil {
		s.logger.WithError(err).WithField("object_key", key).Error("failed to store upload")
		httputil.WriteAppError(w, apperr.Wrap(apperr.KindStorage, "failed to store upload", err))
		return
	}
	httputil.WriteCreated(w, uploadResponse{ObjectKey: key})
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	key, ok := httputil.ParsePathStringOrError(w, r, "key")
	if !ok {
		return
	}

	content, err := s.blobs.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			httputil.WriteAppError(w, apperr.NotFound("document"))
			return
		}
		httputil.WriteAppError(w, apperr.Wrap(apperr.KindStorage, "failed to read document", err))
		return
	}
	defer content.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, content); err != nil {
		s.logger.WithError(err).WithField("object_key", key).Warn("failed to stream document")
	}
}
