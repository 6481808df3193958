// internal/circulation/handler.go
package circulation

import (
	"bytes"
	"net/http"

	"github.com/go-chi/chi/v5"

	"librarium/internal/domain"
	"librarium/internal/httpapi"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes registers the loan endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/loans", h.HandleBorrow)
	r.Get("/loans", h.HandleListLoans)
	r.Get("/loans/export/csv", h.HandleExportCSV)
	r.Get("/loans/{id}", h.HandleGetLoan)
	r.Get("/loans/{id}/events", h.HandleLoanEvents)
	r.Post("/loans/{id}/return", h.HandleReturn)
	r.Get("/users/{id}/loans", h.HandleUserLoans)
}

func (h *Handler) HandleBorrow(w http.ResponseWriter, r *http.Request) {
	var req BorrowRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	loan, err := h.service.BorrowBook(r.Context(), req.UserID, req.BookID)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, loan)
}

func (h *Handler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	loan, err := h.service.ReturnLoan(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, loan)
}

func (h *Handler) HandleGetLoan(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	loan, err := h.service.GetLoan(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, loan)
}

func (h *Handler) HandleListLoans(w http.ResponseWriter, r *http.Request) {
	status, err := domain.ParseLoanStatus(r.URL.Query().Get("status"))
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	page, err := httpapi.PageFrom(r)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	loans, err := h.service.ListLoans(r.Context(), status, page)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, loans)
}

func (h *Handler) HandleUserLoans(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	activeOnly, err := httpapi.QueryBool(r, "active_only")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	loans, err := h.service.ListUserLoans(r.Context(), id, activeOnly)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, loans)
}

func (h *Handler) HandleLoanEvents(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	events, err := h.service.LoanHistory(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, events)
}

func (h *Handler) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.service.ExportLoans(r.Context(), &buf); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="loans.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
