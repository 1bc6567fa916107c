package httpapi

import (
	"math"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"walletd.org/internal/audit"
	"walletd.org/internal/auth"
	"walletd.org/internal/store"
)

type usersResponse struct {
	Items []store.User `json:"items"`
}

type modifyBalanceRequest struct {
	UserID  string  `json:"user_id"`
	Balance float64 `json:"balance"`
}

func (a *API) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.store.ListUsers(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, usersResponse{Items: users})
}

func (a *API) handleAdminModifyBalance(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing or invalid credential")
		return
	}

	var req modifyBalanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		writeError(w, r, http.StatusBadRequest, "user_id is required")
		return
	}
	if math.IsNaN(req.Balance) || math.IsInf(req.Balance, 0) {
		writeError(w, r, http.StatusBadRequest, "invalid amount")
		return
	}

	balance, err := a.ledger.SetBalance(r.Context(), p, userID, decimal.NewFromFloat(req.Balance))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "admin.modify_balance", map[string]any{
		"target_id": userID,
		"balance":   balance.String(),
	})
	writeJSON(w, http.StatusOK, balanceResponse{UserID: userID, Balance: balance})
}
