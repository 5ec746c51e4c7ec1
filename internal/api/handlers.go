package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/evanmtz/streampost/internal/accounts"
	"github.com/evanmtz/streampost/internal/cookies"
	"github.com/evanmtz/streampost/internal/login"
	"github.com/evanmtz/streampost/internal/platform"
	"github.com/go-chi/chi/v5"
)

// Handlers contains HTTP handlers for the API
type Handlers struct {
	broker *login.Broker
	ledger *accounts.Ledger
	repo   accounts.Repository
}

// NewHandlers creates a new Handlers instance
func NewHandlers(broker *login.Broker, ledger *accounts.Ledger, repo accounts.Repository) *Handlers {
	return &Handlers{
		broker: broker,
		ledger: ledger,
		repo:   repo,
	}
}

// InitiateLogin handles POST /login-sessions
func (h *Handlers) InitiateLogin(w http.ResponseWriter, r *http.Request) {
	var req InitiateLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}

	p, err := platform.Parse(req.Platform)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	result, err := h.broker.Initiate(r.Context(), p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	// Allocation failures still return the session id; the failure is
	// observable by polling like any other terminal state
	writeJSON(w, http.StatusCreated, InitiateLoginResponse{
		SessionID:    result.SessionID,
		Platform:     string(p),
		Status:       result.Status,
		LoginURL:     result.LoginURL,
		ErrorMessage: result.ErrorMessage,
	})
}

// GetLoginSession handles GET /login-sessions/{id}
func (h *Handlers) GetLoginSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	sess, err := h.broker.Status(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, ErrCodeSessionNotFound, err.Error())
		return
	}

	response := LoginSessionResponse{
		SessionID:    sess.ID,
		Platform:     string(sess.Platform),
		Status:       sess.Status,
		LoginURL:     sess.LoginURL,
		ErrorMessage: sess.ErrorMessage,
		CreatedAt:    sess.CreatedAt,
		Deadline:     sess.Deadline,
	}

	if sess.Status == login.StatusLoggedIn {
		response.Cookies = cookies.Serialize(sess.Cookies)
	}

	writeJSON(w, http.StatusOK, response)
}

// CancelLoginSession handles DELETE /login-sessions/{id}
func (h *Handlers) CancelLoginSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	if err := h.broker.Cancel(sessionID); err != nil {
		writeError(w, http.StatusNotFound, ErrCodeSessionNotFound, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CreateAccount handles POST /accounts
func (h *Handlers) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}

	p, err := platform.Parse(req.Platform)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	if req.AccountName == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "account_name is required")
		return
	}

	acc := &accounts.Account{
		Platform:    p,
		AccountName: req.AccountName,
		IsActive:    true,
	}

	if req.Cookies != "" {
		records, missing := normalizeAndValidate(req.Cookies, p)
		if len(missing) > 0 {
			writeMissingCookies(w, missing)
			return
		}

		expiry := cookies.EarliestExpiry(records)
		acc.Cookies = cookies.Serialize(records)
		acc.CookieExpiresAt = &expiry
	}

	id, err := h.repo.Create(r.Context(), acc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	created, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, accountToResponse(created))
}

// GetAccount handles GET /accounts/{id}
func (h *Handlers) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	acc, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeAccountError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, accountToResponse(acc))
}

// ListAccounts handles GET /accounts?platform=
func (h *Handlers) ListAccounts(w http.ResponseWriter, r *http.Request) {
	p, err := platform.Parse(r.URL.Query().Get("platform"))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "platform query parameter is required: "+err.Error())
		return
	}

	accs, err := h.repo.List(r.Context(), p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	responses := make([]AccountResponse, 0, len(accs))
	for _, acc := range accs {
		responses = append(responses, accountToResponse(acc))
	}

	writeJSON(w, http.StatusOK, ListAccountsResponse{
		Accounts: responses,
		Count:    len(responses),
	})
}

// UpdateAccountCookies handles POST /accounts/{id}/cookies.
// This is the paste flow: the raw payload goes through the same
// normalization and required-name validation as captured cookies.
func (h *Handlers) UpdateAccountCookies(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	var req UpdateCookiesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}

	if strings.TrimSpace(req.Cookies) == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "cookies is required")
		return
	}

	acc, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeAccountError(w, err)
		return
	}

	records, missing := normalizeAndValidate(req.Cookies, acc.Platform)
	if len(missing) > 0 {
		writeMissingCookies(w, missing)
		return
	}

	expiry := cookies.EarliestExpiry(records)
	if err := h.ledger.UpdateCookies(r.Context(), id, cookies.Serialize(records), &expiry); err != nil {
		writeAccountError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, UpdateCookiesResponse{
		AccountID:       id,
		CookieCount:     len(records),
		CookieExpiresAt: &expiry,
	})
}

// GetAccountHealth handles GET /accounts/{id}/health
func (h *Handlers) GetAccountHealth(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	acc, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeAccountError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		AccountID: id,
		Health:    accounts.Evaluate(acc, time.Now()),
	})
}

// RecordAccountOutcome handles POST /accounts/{id}/outcomes
func (h *Handlers) RecordAccountOutcome(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	var req RecordOutcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}

	if err := h.ledger.RecordOutcome(r.Context(), id, req.Success); err != nil {
		writeAccountError(w, err)
		return
	}

	acc, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeAccountError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		AccountID: id,
		Health:    accounts.Evaluate(acc, time.Now()),
	})
}

// accountID parses the {id} URL parameter, writing the error response
// itself on failure
func accountID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid account id")
		return 0, false
	}
	return id, true
}

// writeAccountError maps repository errors onto HTTP responses
func writeAccountError(w http.ResponseWriter, err error) {
	if errors.Is(err, accounts.ErrNotFound) {
		writeError(w, http.StatusNotFound, ErrCodeAccountNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
}

// writeMissingCookies writes the 422 response listing required cookie
// names absent from the payload
func writeMissingCookies(w http.ResponseWriter, missing []string) {
	writeJSON(w, http.StatusUnprocessableEntity, MissingCookiesResponse{
		Error: ErrorDetail{
			Code:    ErrCodeMissingCookies,
			Message: "cookie payload missing required names: " + strings.Join(missing, ", "),
		},
		Missing: missing,
	})
}

// normalizeAndValidate runs a raw payload through the normalizer and
// required-name check
func normalizeAndValidate(raw string, p platform.Platform) ([]cookies.Record, []string) {
	records := cookies.DedupeByName(cookies.Normalize(raw, p))
	return records, cookies.MissingRequired(records, p)
}

// accountToResponse maps the domain account onto the API shape.
// Cookie values never leave through the account endpoints; callers
// only learn whether a set is installed and when it expires.
func accountToResponse(acc *accounts.Account) AccountResponse {
	return AccountResponse{
		ID:                       acc.ID,
		Platform:                 string(acc.Platform),
		AccountName:              acc.AccountName,
		HasCookies:               acc.Cookies != "",
		CookieExpiresAt:          acc.CookieExpiresAt,
		IsActive:                 acc.IsActive,
		TotalSuccessfulJobs:      acc.TotalSuccessfulJobs,
		TotalFailedJobs:          acc.TotalFailedJobs,
		LastSuccessfulSubmission: acc.LastSuccessfulSubmission,
		CreatedAt:                acc.CreatedAt,
	}
}
