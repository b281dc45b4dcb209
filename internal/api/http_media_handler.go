package api

import (
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"product-variant-service/internal/domain"
	"product-variant-service/internal/draft"
	"product-variant-service/internal/media"
)

// --- Media Handlers ---
//
// The same handlers serve product-level and SKU-level collections; the SKU
// routes carry {skuKey}, the product routes do not.

// UploadResponse is the draft after an upload plus the files that failed.
type UploadResponse struct {
	Draft    draft.State           `json:"draft"`
	Failures []media.UploadFailure `json:"failures"`
}

func mediaTarget(r *http.Request) draft.MediaTarget {
	return draft.MediaTarget{
		Product: domain.IdentityKey(chi.URLParam(r, "productKey")),
		Sku:     domain.IdentityKey(chi.URLParam(r, "skuKey")),
	}
}

// UploadMedia accepts a multipart form with one or more "files" parts.
func (h *HTTPHandler) UploadMedia(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(h.maxMemory); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		respondWithError(w, http.StatusBadRequest, "No files in form field \"files\"")
		return
	}
	files := make([]media.File, 0, len(headers))
	for _, fh := range headers {
		files = append(files, fileFromHeader(fh))
	}

	st, failures, err := s.UploadMedia(r.Context(), mediaTarget(r), files)
	if err != nil {
		h.respondWithDomainError(w, r, err, "Failed to upload media")
		return
	}
	if failures == nil {
		failures = []media.UploadFailure{}
	}
	respondWithJSON(w, http.StatusOK, UploadResponse{Draft: st, Failures: failures})
}

func fileFromHeader(fh *multipart.FileHeader) media.File {
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(filepath.Ext(fh.Filename)); byExt != "" {
			contentType = byExt
		}
	}
	return media.File{
		Name:        fh.Filename,
		ContentType: contentType,
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

func (h *HTTPHandler) SetPrimaryMedia(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	st, err := s.SetPrimaryMedia(r.Context(), mediaTarget(r), chi.URLParam(r, "mediaId"))
	h.respondWithState(w, r, st, err, "Failed to set primary media")
}

func (h *HTTPHandler) RemoveMedia(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	st, err := s.RemoveMedia(r.Context(), mediaTarget(r), chi.URLParam(r, "mediaId"))
	h.respondWithState(w, r, st, err, "Failed to remove media")
}
