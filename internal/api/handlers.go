package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/codestash/internal/checksum"
	"github.com/starford/codestash/internal/pipeline"
	"github.com/starford/codestash/internal/recordservice"
	"github.com/starford/codestash/internal/render"
	"github.com/starford/codestash/internal/symbology"
)

// Handler holds API route handlers.
type Handler struct {
	svc *recordservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *recordservice.Service) *Handler {
	return &Handler{svc: svc}
}

// ListRecords handles GET /api/records.
//
//	@Summary		List records, newest first
//	@Tags			records
//	@Produce		json
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Param			favorites	query		bool	false	"Only favorites"
//	@Param			symbology	query		string	false	"Filter by symbology"
//	@Param			content		query		string	false	"Filter by payload class"	Enums(plain_text, web_link, wifi)
//	@Param			q			query		string	false	"Search names and payloads"
//	@Success		200			{object}	RecordListResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records [get]
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	favorites, _ := strconv.ParseBool(q.Get("favorites"))

	items, total, err := h.svc.List(r.Context(), recordservice.ListInput{
		Favorites: favorites,
		Symbology: q.Get("symbology"),
		Content:   q.Get("content"),
		Search:    q.Get("q"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		writeError(w, "list records", err)
		return
	}
	writeJSON(w, http.StatusOK, RecordListResponse{Records: items, Total: total})
}

// GetRecord handles GET /api/records/{id}.
//
//	@Summary		Get a single record
//	@Tags			records
//	@Produce		json
//	@Param			id	path		string	true	"Record ID"
//	@Success		200	{object}	RecordDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records/{id} [get]
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get record", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// CreateRecord handles POST /api/records.
//
//	@Summary		Create a record
//	@Tags			records
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateRecordRequest	true	"Record to create"
//	@Success		201		{object}	RecordDetail
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records [post]
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var req CreateRecordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(codeBadRequest, err.Error()))
		return
	}
	rec, err := h.svc.Create(r.Context(), recordservice.CreateInput{
		Name:      req.Name,
		Payload:   req.Payload,
		Symbology: req.Symbology,
		Favorite:  req.Favorite,
	})
	if err != nil {
		writeError(w, "create record", err)
		return
	}
	w.Header().Set("Location", "/api/records/"+rec.ID)
	writeJSON(w, http.StatusCreated, rec)
}

// UpdateRecord handles PATCH /api/records/{id}.
//
//	@Summary		Partially update a record
//	@Tags			records
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Record ID"
//	@Param			body	body		UpdateRecordRequest	true	"Fields to change"
//	@Success		200		{object}	RecordDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records/{id} [patch]
func (h *Handler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	var req UpdateRecordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(codeBadRequest, err.Error()))
		return
	}
	rec, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), recordservice.UpdateInput{
		Name:      req.Name,
		Payload:   req.Payload,
		Symbology: req.Symbology,
		Favorite:  req.Favorite,
	})
	if err != nil {
		writeError(w, "update record", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DeleteRecord handles DELETE /api/records/{id}.
//
//	@Summary		Delete a record
//	@Tags			records
//	@Param			id	path	string	true	"Record ID"
//	@Success		204	"Record deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records/{id} [delete]
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete record", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleFavorite handles POST /api/records/{id}/favorite.
func (h *Handler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.ToggleFavorite(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "toggle favorite", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// RecordImage handles GET /api/records/{id}/image.
//
//	@Summary		Rendered image of a record
//	@Description	200 with the PNG when cached, 202 while a remote render is running,
//	@Description	422 when the record cannot be displayed.
//	@Tags			records
//	@Produce		png
//	@Param			id	path		string	true	"Record ID"
//	@Success		200	{file}		binary
//	@Success		202	{object}	ImageStateResponse
//	@Failure		404	{object}	errResponse
//	@Failure		422	{object}	ImageStateResponse
//	@Security		BearerAuth
//	@Router			/records/{id}/image [get]
func (h *Handler) RecordImage(w http.ResponseWriter, r *http.Request) {
	img, err := h.svc.Image(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "record image", err)
		return
	}
	switch img.State {
	case pipeline.Cached:
		writePNG(w, r, img.PNG)
	case pipeline.Pending:
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusAccepted, ImageStateResponse{State: img.State.String()})
	default:
		writeJSON(w, http.StatusUnprocessableEntity, ImageStateResponse{
			State: pipeline.Unsupported.String(),
			Error: "cannot display this code",
		})
	}
}

// Symbologies handles GET /api/symbologies.
func (h *Handler) Symbologies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, SymbologyListResponse{
		Symbologies: symbology.Catalog(),
		Default:     h.svc.DefaultSymbology().String(),
	})
}

// Classify handles POST /api/classify.
//
//	@Summary		Classify a payload as plain text, web link or Wi-Fi configuration
//	@Tags			tools
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ClassifyRequest	true	"Payload"
//	@Success		200		{object}	payload.Content
//	@Failure		400		{object}	errResponse
//	@Router			/classify [post]
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(codeBadRequest, err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Classify(req.Payload))
}

// Render handles GET /api/render.
//
//	@Summary		Render a payload without storing it
//	@Tags			tools
//	@Produce		png
//	@Param			payload		query		string	true	"Payload"
//	@Param			symbology	query		string	false	"Symbology, defaults to QR"
//	@Success		200			{file}		binary
//	@Failure		400			{object}	errResponse
//	@Failure		422			{object}	errResponse
//	@Failure		502			{object}	errResponse
//	@Router			/render [get]
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("payload") {
		writeJSON(w, http.StatusBadRequest, errorBody(codeBadRequest, "query parameter 'payload' is required"))
		return
	}
	png, err := h.svc.Render(r.Context(), q.Get("payload"), q.Get("symbology"))
	if err != nil {
		writeError(w, "render", err)
		return
	}
	writePNG(w, r, png)
}

// writePNG sends image bytes with a content-derived ETag and honours
// If-None-Match.
func writePNG(w http.ResponseWriter, r *http.Request, png []byte) {
	etag := checksum.ETag(png)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "private, max-age=0, must-revalidate")
	if match := r.Header.Get("If-None-Match"); match != "" && checksum.MatchesETag(match, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", render.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
