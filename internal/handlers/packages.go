package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/tech-e/apiserver/internal/apperr"
	"github.com/tech-e/apiserver/internal/services"
	"github.com/tech-e/apiserver/types"
)

const (
	formFieldImage     = "image"
	maxMultipartMemory = 1 << 20
)

var (
	errImageRequired = apperr.New(apperr.KindInvalidInput, "Image file is required.")
	errImageTooLarge = apperr.New(apperr.KindInvalidInput, "Image must be at most 5 MB.")
)

// PackageHandler serves the package catalog.
type PackageHandler struct {
	packages  *services.PackageService
	responder *Responder
}

func NewPackageHandler(packages *services.PackageService, responder *Responder) *PackageHandler {
	return &PackageHandler{packages: packages, responder: responder}
}

// PackageRouter registers package routes. Reads are public; writes are
// wrapped in admin.
func PackageRouter(r chi.Router, h *PackageHandler, admin ...func(http.Handler) http.Handler) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/image", h.Image)

	r.Group(func(r chi.Router) {
		r.Use(admin...)
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Put("/{id}/image", h.UploadImage)
	})
}

func (h *PackageHandler) List(w http.ResponseWriter, r *http.Request) {
	packages, err := h.packages.List(r.Context())
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, packages)
}

func (h *PackageHandler) Get(w http.ResponseWriter, r *http.Request) {
	pkg, err := h.packages.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pkg)
}

func (h *PackageHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.PackageInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.responder.Error(w, r, err)
		return
	}
	pkg, err := h.packages.Create(r.Context(), req)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, pkg)
}

func (h *PackageHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch types.PackagePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		h.responder.Error(w, r, err)
		return
	}
	pkg, err := h.packages.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pkg)
}

func (h *PackageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.packages.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.responder.Error(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Package deleted successfully")
}

// UploadImage accepts a multipart form with an "image" file. The content
// type is sniffed from the bytes, not taken from the client.
func (h *PackageHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, services.MaxImageSize+maxMultipartMemory)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.responder.Error(w, r, errImageTooLarge)
			return
		}
		h.responder.Error(w, r, errInvalidBody)
		return
	}
	file, header, err := r.FormFile(formFieldImage)
	if err != nil {
		h.responder.Error(w, r, errImageRequired)
		return
	}
	defer file.Close()
	if header.Size > services.MaxImageSize {
		h.responder.Error(w, r, errImageTooLarge)
		return
	}

	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		h.responder.Error(w, r, errInvalidBody)
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		h.responder.Error(w, r, apperr.Internal(err))
		return
	}

	pkg, err := h.packages.UploadImage(r.Context(), chi.URLParam(r, "id"), header.Filename, mtype.String(), header.Size, file)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pkg)
}

func (h *PackageHandler) Image(w http.ResponseWriter, r *http.Request) {
	obj, err := h.packages.Image(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	defer obj.Body.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, obj.Body)
}
