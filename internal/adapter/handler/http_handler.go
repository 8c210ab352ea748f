package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/rl1809/paper-fulfillment/internal/core/ledger"
	"github.com/rl1809/paper-fulfillment/internal/core/service"
)

type HTTPHandler struct {
	intake *Intake
	logger *zap.Logger
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func NewHTTPHandler(intake *Intake, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{intake: intake, logger: logger}
}

func (h *HTTPHandler) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/api/requests", h.SubmitRequest).Methods("POST")
	router.HandleFunc("/api/transactions/{id}/refund", h.Refund).Methods("POST")
	router.HandleFunc("/api/reports/latest", h.LatestReport).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	return router
}

func (h *HTTPHandler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
		return
	}

	resp, err := h.intake.Submit(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) Refund(w http.ResponseWriter, r *http.Request) {
	var req RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
		return
	}
	req.TransactionID = mux.Vars(r)["id"]

	resp, err := h.intake.Refund(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) LatestReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.intake.LatestReport(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if report == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Message: "no report yet"})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, ErrInvalidRequest):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, service.ErrDuplicateRequest):
		status = http.StatusConflict
		message = "duplicate request"
	case errors.Is(err, ledger.ErrUnknownTx):
		status = http.StatusNotFound
		message = "transaction not found"
	case errors.Is(err, ledger.ErrAlreadyRefunded):
		status = http.StatusConflict
		message = "already refunded"
	case errors.Is(err, service.ErrNotRefundable), errors.Is(err, ledger.ErrInsufficientFunds):
		status = http.StatusUnprocessableEntity
		message = err.Error()
	default:
		h.logger.Error("request failed", zap.Error(err))
	}

	writeJSON(w, status, ErrorResponse{Success: false, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
