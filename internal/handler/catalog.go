package handler

import (
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
)

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		fail(w, r, err)
		return
	}
	p, err := h.catalog.List(r.Context(), page)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, nil, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("items")
		e.ArrStart()
		for _, it := range p.Items {
			h.encodeItem(e, it)
		}
		e.ArrEnd()
		e.FieldStart("page")
		e.Int(p.Page)
		e.FieldStart("total_pages")
		e.Int(p.TotalPages)
		e.ObjEnd()
	})
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	it, err := h.catalog.Get(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, nil, func(e *jx.Encoder) { h.encodeItem(e, *it) })
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Delete(r.Context(), chi.URLParam(r, "slug")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

var imageFields = [4]string{"image", "image_2", "image_3", "image_4"}

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}

// uploadImages replaces the item's pictures with the uploaded files. Fields
// left out of the form keep their current image.
func (h *Handler) uploadImages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slug := chi.URLParam(r, "slug")

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		fail(w, r, invalid("malformed upload: %v", err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	item, err := h.catalog.Get(ctx, slug)
	if err != nil {
		fail(w, r, err)
		return
	}

	next := item.Images
	for i, field := range imageFields {
		file, header, err := r.FormFile(field)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			fail(w, r, invalid("read %s: %v", field, err))
			return
		}
		ext := strings.ToLower(path.Ext(header.Filename))
		if !imageExts[ext] {
			_ = file.Close()
			fail(w, r, invalid("%s: unsupported file type %q", field, ext))
			return
		}
		name := uuid.NewString() + ext
		err = h.media.Save(ctx, name, file)
		_ = file.Close()
		if err != nil {
			fail(w, r, errors.Wrapf(err, "save %s", field))
			return
		}
		if i == 0 {
			next.Primary = name
		} else {
			next.Secondary[i-1] = name
		}
	}

	if next.Primary == "" {
		fail(w, r, invalid("%s is required", imageFields[0]))
		return
	}

	updated, err := h.catalog.ReplaceImages(ctx, slug, next)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, nil, func(e *jx.Encoder) { h.encodeItem(e, *updated) })
}
