// Package handler is the thin HTTP adapter over the command and query
// services: bind, validate, invoke, map the domain error to a status code.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kestrelbank/ledger-service/internal/command"
	"github.com/kestrelbank/ledger-service/internal/domain"
	"github.com/kestrelbank/ledger-service/internal/middleware"
	"github.com/kestrelbank/ledger-service/internal/query"
)

// AccountCommander defines the write-side operations used by AccountHandler.
type AccountCommander interface {
	OpenAccount(ctx context.Context, cmd command.OpenAccountCommand) (*domain.Account, error)
	Deposit(ctx context.Context, cmd command.DepositCommand) error
	Withdraw(ctx context.Context, cmd command.WithdrawCommand) error
	Remit(ctx context.Context, cmd command.RemitCommand) error
	UpdatePassword(ctx context.Context, cmd command.UpdatePasswordCommand) error
	CloseAccount(ctx context.Context, cmd command.CloseAccountCommand) error
}

// AccountQuerier defines the read-side operations used by AccountHandler.
type AccountQuerier interface {
	GetAccount(ctx context.Context, id string) (*query.AccountView, error)
	FindByName(ctx context.Context, name string) ([]query.AccountView, error)
	ListEvents(ctx context.Context, id string) ([]domain.Event, error)
}

type AccountHandler struct {
	commands AccountCommander
	queries  AccountQuerier
}

func NewAccountHandler(commands AccountCommander, queries AccountQuerier) *AccountHandler {
	return &AccountHandler{commands: commands, queries: queries}
}

type OpenAccountRequest struct {
	Name     string `json:"name" validate:"required,max=64"`
	Password string `json:"password" validate:"required,min=8"`
}

type DepositRequest struct {
	Amount int64 `json:"amount" validate:"required,gte=1"`
}

type WithdrawRequest struct {
	Amount   int64  `json:"amount" validate:"required,gte=1"`
	Password string `json:"password" validate:"required"`
}

type RemitRequest struct {
	SenderID   string `json:"senderId" validate:"required"`
	ReceiverID string `json:"receiverId" validate:"required"`
	Amount     int64  `json:"amount" validate:"required,gte=1"`
	Password   string `json:"password" validate:"required"`
}

type UpdatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
}

type CloseAccountRequest struct {
	Password string `json:"password" validate:"required"`
}

type ListAccountsResponse struct {
	Accounts []query.AccountView `json:"accounts"`
}

type ListAccountEventsResponse struct {
	Events []domain.Event `json:"events"`
}

func (h *AccountHandler) OpenAccount(c *gin.Context) {
	var req OpenAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	account, err := h.commands.OpenAccount(c.Request.Context(), command.OpenAccountCommand{
		Name:   req.Name,
		Secret: req.Password,
	})
	if err != nil {
		respondWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, query.NewAccountView(account))
}

func (h *AccountHandler) Deposit(c *gin.Context) {
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	err := h.commands.Deposit(c.Request.Context(), command.DepositCommand{
		AccountID: c.Param("accountId"),
		Amount:    req.Amount,
	})
	if err != nil {
		respondWithDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AccountHandler) Withdraw(c *gin.Context) {
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	err := h.commands.Withdraw(c.Request.Context(), command.WithdrawCommand{
		AccountID: c.Param("accountId"),
		Amount:    req.Amount,
		Secret:    req.Password,
	})
	if err != nil {
		respondWithDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AccountHandler) Remit(c *gin.Context) {
	var req RemitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	err := h.commands.Remit(c.Request.Context(), command.RemitCommand{
		SenderID:     req.SenderID,
		ReceiverID:   req.ReceiverID,
		Amount:       req.Amount,
		SenderSecret: req.Password,
	})
	if err != nil {
		respondWithDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AccountHandler) UpdatePassword(c *gin.Context) {
	var req UpdatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	err := h.commands.UpdatePassword(c.Request.Context(), command.UpdatePasswordCommand{
		AccountID:     c.Param("accountId"),
		CurrentSecret: req.CurrentPassword,
		NewSecret:     req.NewPassword,
	})
	if err != nil {
		respondWithDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AccountHandler) CloseAccount(c *gin.Context) {
	var req CloseAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	err := h.commands.CloseAccount(c.Request.Context(), command.CloseAccountCommand{
		AccountID: c.Param("accountId"),
		Secret:    req.Password,
	})
	if err != nil {
		respondWithDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AccountHandler) GetAccount(c *gin.Context) {
	view, err := h.queries.GetAccount(c.Request.Context(), c.Param("accountId"))
	if err != nil {
		respondWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *AccountHandler) ListAccounts(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		middleware.RespondWithError(c, http.StatusBadRequest, "Query parameter 'name' is required")
		return
	}
	views, err := h.queries.FindByName(c.Request.Context(), name)
	if err != nil {
		respondWithDomainError(c, err)
		return
	}
	if views == nil {
		views = []query.AccountView{}
	}
	c.JSON(http.StatusOK, ListAccountsResponse{Accounts: views})
}

func (h *AccountHandler) ListAccountEvents(c *gin.Context) {
	events, err := h.queries.ListEvents(c.Request.Context(), c.Param("accountId"))
	if err != nil {
		respondWithDomainError(c, err)
		return
	}
	if events == nil {
		events = []domain.Event{}
	}
	c.JSON(http.StatusOK, ListAccountEventsResponse{Events: events})
}

// respondWithDomainError maps the domain error taxonomy onto HTTP statuses.
func respondWithDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		middleware.RespondWithError(c, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, domain.ErrInvalidAmount):
		middleware.RespondWithError(c, http.StatusBadRequest, "Amount must be at least 1")
	case errors.Is(err, domain.ErrInsufficientFunds):
		middleware.RespondWithError(c, http.StatusUnprocessableEntity, "Insufficient funds")
	case errors.Is(err, domain.ErrInvariantViolation):
		middleware.RespondWithError(c, http.StatusUnprocessableEntity, "Operation violates account state")
	case errors.Is(err, domain.ErrNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, "Account not found")
	case errors.Is(err, domain.ErrConcurrencyConflict):
		middleware.RespondWithError(c, http.StatusConflict, "Account was modified concurrently, retry")
	case errors.Is(err, domain.ErrStorageUnavailable), errors.Is(err, domain.ErrTransportUnavailable):
		middleware.RespondWithError(c, http.StatusServiceUnavailable, "Service temporarily unavailable")
	default:
		middleware.RespondWithError(c, http.StatusInternalServerError, "Internal error")
	}
}
