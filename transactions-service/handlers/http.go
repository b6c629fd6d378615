package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/draftea/booking-system/transactions-service/application"
	"github.com/draftea/booking-system/transactions-service/domain"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

// TransactionHandlers contains transaction HTTP handlers
type TransactionHandlers struct {
	createTransaction     *application.CreateTransaction
	getTransaction        *application.GetTransaction
	listUserTransactions  *application.ListUserTransactions
	transitionTransaction *application.TransitionTransaction
	logger                *slog.Logger
}

// NewTransactionHandlers creates new transaction handlers
func NewTransactionHandlers(
	createTransaction *application.CreateTransaction,
	getTransaction *application.GetTransaction,
	listUserTransactions *application.ListUserTransactions,
	transitionTransaction *application.TransitionTransaction,
	logger *slog.Logger,
) *TransactionHandlers {
	return &TransactionHandlers{
		createTransaction:     createTransaction,
		getTransaction:        getTransaction,
		listUserTransactions:  listUserTransactions,
		transitionTransaction: transitionTransaction,
		logger:                logger,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type transitionErrorResponse struct {
	Error string                  `json:"error"`
	From  domain.TransactionState `json:"from"`
	To    domain.TransactionState `json:"to"`
}

type transitionRequest struct {
	TargetState string `json:"target_state"`
}

// CreateTransaction handles transaction creation
func (h *TransactionHandlers) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var cmd application.CreateTransactionCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.createTransaction.Execute(r.Context(), &cmd)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// GetTransaction handles transaction retrieval
func (h *TransactionHandlers) GetTransaction(w http.ResponseWriter, r *http.Request) {
	result, err := h.getTransaction.Execute(r.Context(), &application.GetTransactionQuery{
		TransactionID: chi.URLParam(r, "id"),
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ListUserTransactions handles listing a user's transactions
func (h *TransactionHandlers) ListUserTransactions(w http.ResponseWriter, r *http.Request) {
	query := &application.ListUserTransactionsQuery{UserID: chi.URLParam(r, "user_id")}

	var err error
	if v := r.URL.Query().Get("limit"); v != "" {
		if query.Limit, err = strconv.Atoi(v); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if query.Offset, err = strconv.Atoi(v); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid offset")
			return
		}
	}

	result, err := h.listUserTransactions.Execute(r.Context(), query)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// TransitionTransaction moves a transaction to the requested lifecycle state
func (h *TransactionHandlers) TransitionTransaction(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.transitionTransaction.Execute(r.Context(), &application.TransitionTransactionCommand{
		TransactionID: chi.URLParam(r, "id"),
		TargetState:   req.TargetState,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// RegisterRoutes registers transaction routes
func (h *TransactionHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/transactions", func(r chi.Router) {
		r.Post("/", h.CreateTransaction)
		r.Get("/{id}", h.GetTransaction)
		r.Post("/{id}/transitions", h.TransitionTransaction)
	})
	r.Get("/api/v1/users/{user_id}/transactions", h.ListUserTransactions)
}

func (h *TransactionHandlers) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var transitionErr *domain.TransitionError
	switch {
	case errors.As(err, &transitionErr):
		writeJSON(w, http.StatusConflict, transitionErrorResponse{
			Error: transitionErr.Error(),
			From:  transitionErr.From,
			To:    transitionErr.To,
		})
	case errors.Is(err, domain.ErrTransactionNotFound):
		writeError(w, http.StatusNotFound, "transaction not found")
	case errors.Is(err, domain.ErrTransactionAlreadyExists):
		writeError(w, http.StatusConflict, "transaction already exists")
	case errors.Is(err, domain.ErrVersionConflict):
		writeError(w, http.StatusConflict, "transaction was modified concurrently, retry")
	case errors.Is(err, domain.ErrInvalidTransaction):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "transaction request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
