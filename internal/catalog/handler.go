// internal/catalog/handler.go
package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"librarium/internal/httpapi"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes registers the book endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/books", h.HandleCreateBook)
	r.Get("/books", h.HandleListBooks)
	r.Get("/books/{id}", h.HandleGetBook)
	r.Put("/books/{id}", h.HandleUpdateBook)
	r.Get("/books/{id}/availability", h.HandleAvailability)
}

func (h *Handler) HandleCreateBook(w http.ResponseWriter, r *http.Request) {
	var req CreateBookRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	total := DefaultTotalCopies
	if req.TotalCopies != nil {
		total = *req.TotalCopies
	}

	book, err := h.service.CreateBook(r.Context(), req.Title, req.Author, total)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, book)
}

func (h *Handler) HandleListBooks(w http.ResponseWriter, r *http.Request) {
	page, err := httpapi.PageFrom(r)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	books, err := h.service.ListBooks(r.Context(), page)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, books)
}

func (h *Handler) HandleGetBook(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, book)
}

func (h *Handler) HandleUpdateBook(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	var req BookUpdate
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	book, err := h.service.UpdateBook(r.Context(), id, req)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, book)
}

func (h *Handler) HandleAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	availability, err := h.service.Availability(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, availability)
}
