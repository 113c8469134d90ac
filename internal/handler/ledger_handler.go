package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/leonardo-panseri/discord-coins/internal/command"
	"github.com/leonardo-panseri/discord-coins/internal/config"
	"github.com/leonardo-panseri/discord-coins/internal/repository"
	"github.com/leonardo-panseri/discord-coins/shared/cqrs"
	"github.com/leonardo-panseri/discord-coins/shared/middleware"
	"github.com/leonardo-panseri/discord-coins/shared/models"
	"github.com/leonardo-panseri/discord-coins/shared/utils"
	"github.com/shopspring/decimal"
)

// LedgerCommander defines the write-side operations used by LedgerHandler.
type LedgerCommander interface {
	SetBalance(ctx context.Context, cmd cqrs.SetBalanceCommand) (*models.Account, error)
	AddToBalance(ctx context.Context, cmd cqrs.AddToBalanceCommand) (decimal.Decimal, error)
	Blacklist(ctx context.Context, cmd cqrs.BlacklistCommand) error
	SetOrganizationBalance(ctx context.Context, cmd cqrs.SetOrganizationBalanceCommand) error
	UpdateToggles(ctx context.Context, cmd cqrs.UpdateTogglesCommand) (config.Toggles, error)
}

// LedgerQuerier defines the read-side operations used by LedgerHandler.
type LedgerQuerier interface {
	GetBalance(ctx context.Context, q cqrs.GetBalanceQuery) (*models.BalanceView, error)
	GetOrganizationBalance(ctx context.Context, q cqrs.GetOrganizationBalanceQuery) (*models.OrganizationView, error)
	TopAccounts(ctx context.Context, q cqrs.TopAccountsQuery) (*models.AccountLeaderboard, error)
	TopOrganizations(ctx context.Context, q cqrs.TopOrganizationsQuery) (*models.OrganizationLeaderboard, error)
	TopDonors(ctx context.Context, q cqrs.TopDonorsQuery) (*models.DonorLeaderboard, error)
}

// LedgerHandler handles the admin API requests.
type LedgerHandler struct {
	commands LedgerCommander
	queries  LedgerQuerier
}

type SetAmountRequest struct {
	Amount *decimal.Decimal `json:"amount" validate:"required"`
}

type CreditRequest struct {
	Delta decimal.Decimal `json:"delta" validate:"ne=0"`
}

type BlacklistRequest struct {
	Blacklisted *bool `json:"blacklisted" validate:"required"`
}

type SettingsRequest struct {
	PayEnabled     *bool `json:"payEnabled"`
	DepositEnabled *bool `json:"depositEnabled"`
}

type LeaderboardParams struct {
	Limit int `form:"limit" validate:"omitempty,min=1,max=100"`
}

type BalanceResponse struct {
	MemberID string          `json:"memberId"`
	Balance  decimal.Decimal `json:"balance"`
}

func NewLedgerHandler(commands LedgerCommander, queries LedgerQuerier) *LedgerHandler {
	return &LedgerHandler{commands: commands, queries: queries}
}

// respondWithServiceError maps service errors to status codes.
func respondWithServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, "Not found")
	case errors.Is(err, command.ErrInsufficientFunds):
		middleware.RespondWithError(c, http.StatusUnprocessableEntity, "Insufficient funds")
	case errors.Is(err, command.ErrInvalidAmount):
		middleware.RespondWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrStorageUnavailable):
		middleware.RespondWithError(c, http.StatusServiceUnavailable, "Storage unavailable")
	default:
		_ = c.Error(err)
		middleware.RespondWithError(c, http.StatusInternalServerError, fallback)
	}
}

func memberParam(c *gin.Context) (int64, bool) {
	id, err := utils.ParseID(c.Param("memberId"))
	if err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid member id")
		return 0, false
	}
	return id, true
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return false
	}
	return true
}

func leaderboardLimit(c *gin.Context) (int, bool) {
	var params LeaderboardParams
	if err := c.ShouldBindQuery(&params); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid limit")
		return 0, false
	}
	if validationErrors := middleware.ValidateRequest(params); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return 0, false
	}
	return params.Limit, true
}

// ---------- Reads ----------

// GetAccount returns a member's balance. Non-admin callers may only read their own.
func (h *LedgerHandler) GetAccount(c *gin.Context) {
	memberID, ok := memberParam(c)
	if !ok {
		return
	}
	if caller, _ := middleware.GetMemberID(c); caller != memberID && !middleware.IsAdmin(c) {
		middleware.RespondWithError(c, http.StatusForbidden, "You can only access your own account")
		return
	}

	view, err := h.queries.GetBalance(c.Request.Context(), cqrs.GetBalanceQuery{MemberID: memberID})
	if err != nil {
		respondWithServiceError(c, err, "Failed to get account")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *LedgerHandler) GetOrganization(c *gin.Context) {
	view, err := h.queries.GetOrganizationBalance(c.Request.Context(), cqrs.GetOrganizationBalanceQuery{Name: c.Param("name")})
	if err != nil {
		respondWithServiceError(c, err, "Failed to get organization")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *LedgerHandler) TopDonors(c *gin.Context) {
	limit, ok := leaderboardLimit(c)
	if !ok {
		return
	}
	board, err := h.queries.TopDonors(c.Request.Context(), cqrs.TopDonorsQuery{Organization: c.Param("name"), Limit: limit})
	if err != nil {
		respondWithServiceError(c, err, "Failed to get donors")
		return
	}
	c.JSON(http.StatusOK, board)
}

func (h *LedgerHandler) TopAccounts(c *gin.Context) {
	limit, ok := leaderboardLimit(c)
	if !ok {
		return
	}
	board, err := h.queries.TopAccounts(c.Request.Context(), cqrs.TopAccountsQuery{Limit: limit})
	if err != nil {
		respondWithServiceError(c, err, "Failed to get leaderboard")
		return
	}
	c.JSON(http.StatusOK, board)
}

func (h *LedgerHandler) TopOrganizations(c *gin.Context) {
	limit, ok := leaderboardLimit(c)
	if !ok {
		return
	}
	board, err := h.queries.TopOrganizations(c.Request.Context(), cqrs.TopOrganizationsQuery{Limit: limit})
	if err != nil {
		respondWithServiceError(c, err, "Failed to get leaderboard")
		return
	}
	c.JSON(http.StatusOK, board)
}

// ---------- Admin writes ----------

func (h *LedgerHandler) SetBalance(c *gin.Context) {
	memberID, ok := memberParam(c)
	if !ok {
		return
	}
	var req SetAmountRequest
	if !bindJSON(c, &req) {
		return
	}

	account, err := h.commands.SetBalance(c.Request.Context(), cqrs.SetBalanceCommand{MemberID: memberID, Amount: *req.Amount})
	if err != nil {
		respondWithServiceError(c, err, "Failed to set balance")
		return
	}
	c.JSON(http.StatusOK, BalanceResponse{MemberID: utils.FormatID(memberID), Balance: account.Balance})
}

func (h *LedgerHandler) AddCredits(c *gin.Context) {
	memberID, ok := memberParam(c)
	if !ok {
		return
	}
	var req CreditRequest
	if !bindJSON(c, &req) {
		return
	}

	balance, err := h.commands.AddToBalance(c.Request.Context(), cqrs.AddToBalanceCommand{MemberID: memberID, Delta: req.Delta})
	if err != nil {
		respondWithServiceError(c, err, "Failed to update balance")
		return
	}
	c.JSON(http.StatusOK, BalanceResponse{MemberID: utils.FormatID(memberID), Balance: balance})
}

func (h *LedgerHandler) SetBlacklisted(c *gin.Context) {
	memberID, ok := memberParam(c)
	if !ok {
		return
	}
	var req BlacklistRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.commands.Blacklist(c.Request.Context(), cqrs.BlacklistCommand{MemberID: memberID, Blacklisted: *req.Blacklisted}); err != nil {
		respondWithServiceError(c, err, "Failed to update blacklist")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *LedgerHandler) SetOrganizationBalance(c *gin.Context) {
	var req SetAmountRequest
	if !bindJSON(c, &req) {
		return
	}

	name := utils.NormalizeName(c.Param("name"))
	err := h.commands.SetOrganizationBalance(c.Request.Context(), cqrs.SetOrganizationBalanceCommand{Name: name, Amount: *req.Amount})
	if err != nil {
		respondWithServiceError(c, err, "Failed to set organization balance")
		return
	}
	c.JSON(http.StatusOK, models.OrganizationView{Name: name, Balance: *req.Amount})
}

func (h *LedgerHandler) UpdateSettings(c *gin.Context) {
	var req SettingsRequest
	if !bindJSON(c, &req) {
		return
	}

	toggles, err := h.commands.UpdateToggles(c.Request.Context(), cqrs.UpdateTogglesCommand{
		PayEnabled:     req.PayEnabled,
		DepositEnabled: req.DepositEnabled,
	})
	if err != nil {
		respondWithServiceError(c, err, "Failed to update settings")
		return
	}
	c.JSON(http.StatusOK, toggles)
}
