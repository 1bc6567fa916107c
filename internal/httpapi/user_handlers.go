package httpapi

import (
	"math"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"walletd.org/internal/auth"
	"walletd.org/internal/ids"
	"walletd.org/internal/store"
)

type sendRequest struct {
	From   string  `json:"from,omitempty"`
	To     string  `json:"to"`
	Amount float64 `json:"amount"`
}

type sendResponse struct {
	Transaction store.Transaction `json:"transaction"`
	Balance     decimal.Decimal   `json:"balance"`
}

type balanceResponse struct {
	UserID  string          `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
}

type transactionsResponse struct {
	Items []store.Transaction `json:"items"`
}

// resourceOwner authorizes the caller against the {id} path parameter.
// Authorization runs before any store lookup so a denial cannot reveal
// whether the target exists.
func (a *API) resourceOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing or invalid credential")
		return "", false
	}
	id := chi.URLParam(r, "id")
	if err := auth.Authorize(p, id); err != nil {
		writeDomainError(w, r, err)
		return "", false
	}
	if !ids.Valid(id) {
		writeError(w, r, http.StatusNotFound, "not found")
		return "", false
	}
	return id, true
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := a.resourceOwner(w, r)
	if !ok {
		return
	}
	user, err := a.store.GetUser(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := a.resourceOwner(w, r)
	if !ok {
		return
	}
	user, err := a.store.GetUser(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{UserID: user.ID, Balance: user.Balance})
}

func (a *API) handleGetTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := a.resourceOwner(w, r)
	if !ok {
		return
	}
	items, err := a.store.ListTransactions(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transactionsResponse{Items: items})
}

func (a *API) handleSend(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing or invalid credential")
		return
	}

	var req sendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	sender := strings.TrimSpace(req.From)
	if sender == "" {
		sender = p.UserID
	}
	// Sending from someone else's wallet is owner-or-admin scoped like
	// any other resource access.
	if err := auth.Authorize(p, sender); err != nil {
		writeDomainError(w, r, err)
		return
	}

	recipient := strings.TrimSpace(req.To)
	if recipient == "" {
		writeError(w, r, http.StatusBadRequest, "to is required")
		return
	}
	if math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) {
		writeError(w, r, http.StatusBadRequest, "invalid amount")
		return
	}

	tx, balance, err := a.ledger.Transfer(r.Context(), sender, recipient, decimal.NewFromFloat(req.Amount))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sendResponse{Transaction: tx, Balance: balance})
}
