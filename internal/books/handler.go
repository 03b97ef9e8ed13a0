// internal/books/handler.go
package books

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"bookshelf/internal/history"

	"github.com/go-chi/chi/v5"
)

// Outcome is the response envelope written for every book request.
type Outcome struct {
	Code    int    `json:"-"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service, logger: slog.Default()}
}

// Register mounts the book routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/books", func(r chi.Router) {
		r.Post("/", h.HandleAddBook)
		r.Get("/", h.HandleListBooks)
		r.Route("/{bookId}", func(r chi.Router) {
			r.Get("/", h.HandleGetBook)
			r.Put("/", h.HandleUpdateBook)
			r.Delete("/", h.HandleDeleteBook)
			r.Get("/history", h.HandleBookHistory)
		})
	})
	r.Get("/history", h.HandleChanges)
}

func (h *Handler) HandleAddBook(w http.ResponseWriter, r *http.Request) {
	p, err := decodePayload(r)
	if err != nil {
		h.writeError(w, r, err, ErrAddFailed)
		return
	}

	id, err := h.service.AddBook(r.Context(), p)
	if err != nil {
		h.writeError(w, r, err, ErrAddFailed)
		return
	}

	writeOutcome(w, Outcome{
		Code:    http.StatusCreated,
		Status:  StatusSuccess,
		Message: "book added successfully",
		Data:    map[string]string{"bookId": id},
	})
}

func (h *Handler) HandleListBooks(w http.ResponseWriter, r *http.Request) {
	listings, err := h.service.ListBooks(r.Context(), ParseFilter(r.URL.Query()))
	if err != nil {
		h.writeError(w, r, err, ErrListFailed)
		return
	}

	writeOutcome(w, Outcome{
		Code:   http.StatusOK,
		Status: StatusSuccess,
		Data:   map[string][]Listing{"books": listings},
	})
}

func (h *Handler) HandleGetBook(w http.ResponseWriter, r *http.Request) {
	book, err := h.service.GetBook(r.Context(), chi.URLParam(r, "bookId"))
	if err != nil {
		h.writeError(w, r, err, ErrGetFailed)
		return
	}

	tag, err := entityTag(book)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to compute etag", "book_id", book.ID, "error", err)
	} else {
		w.Header().Set("ETag", tag)
		if etagMatches(r.Header.Get("If-None-Match"), tag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	writeOutcome(w, Outcome{
		Code:   http.StatusOK,
		Status: StatusSuccess,
		Data:   map[string]*Book{"book": book},
	})
}

func (h *Handler) HandleUpdateBook(w http.ResponseWriter, r *http.Request) {
	p, err := decodePayload(r)
	if err != nil {
		h.writeError(w, r, err, ErrUpdateFailed)
		return
	}

	if err := h.service.UpdateBook(r.Context(), chi.URLParam(r, "bookId"), p); err != nil {
		h.writeError(w, r, err, ErrUpdateFailed)
		return
	}

	writeOutcome(w, Outcome{
		Code:    http.StatusOK,
		Status:  StatusSuccess,
		Message: "book updated successfully",
	})
}

func (h *Handler) HandleDeleteBook(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteBook(r.Context(), chi.URLParam(r, "bookId")); err != nil {
		h.writeError(w, r, err, ErrDeleteFailed)
		return
	}

	writeOutcome(w, Outcome{
		Code:    http.StatusOK,
		Status:  StatusSuccess,
		Message: "book deleted successfully",
	})
}

func (h *Handler) HandleBookHistory(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.History(r.Context(), chi.URLParam(r, "bookId"))
	if err != nil {
		h.writeError(w, r, err, ErrHistoryFailed)
		return
	}

	writeOutcome(w, Outcome{
		Code:   http.StatusOK,
		Status: StatusSuccess,
		Data:   map[string][]history.Event{"events": events},
	})
}

// ChangesPage is the data payload of the change feed.
type ChangesPage struct {
	Events []history.Event `json:"events"`
	Next   int64           `json:"next"`
}

func (h *Handler) HandleChanges(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	after, err := queryInt(q.Get("after"), 0)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: after: %v", ErrInvalidQuery, err), ErrHistoryFailed)
		return
	}
	limit, err := queryInt(q.Get("limit"), 0)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: limit: %v", ErrInvalidQuery, err), ErrHistoryFailed)
		return
	}

	events, err := h.service.Changes(r.Context(), after, int(limit))
	if err != nil {
		h.writeError(w, r, err, ErrHistoryFailed)
		return
	}

	next := after
	if len(events) > 0 {
		next = events[len(events)-1].Sequence
	}
	writeOutcome(w, Outcome{
		Code:   http.StatusOK,
		Status: StatusSuccess,
		Data:   ChangesPage{Events: events, Next: next},
	})
}

func queryInt(raw string, def int64) (int64, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

// decodePayload reads a JSON payload. An empty body decodes to an empty payload
// so the usual field validation reports what is missing.
func decodePayload(r *http.Request) (Payload, error) {
	var p Payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return Payload{}, nil
		}
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return p, nil
}

// writeError converts err into a fail or error outcome. Internal faults are
// reported to the caller with the fault's message only.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, fault error) {
	code, status, shown := Classify(err)
	message := shown.Error()
	if status == StatusError {
		message = fault.Error()
		h.logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeOutcome(w, Outcome{Code: code, Status: status, Message: message})
}

func writeOutcome(w http.ResponseWriter, o Outcome) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(o.Code)
	if err := json.NewEncoder(w).Encode(o); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}
