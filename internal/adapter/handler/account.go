package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"coinpay/internal/adapter/storage"
	"coinpay/internal/core/security"
)

type AccountHandler struct {
	Repo   *storage.AccountRepository
	Ledger *storage.LedgerRepository
}

// CreateAccountRequest defines what the operator sends us
type CreateAccountRequest struct {
	OwnerName string `json:"owner_name"`
}

type AdjustRequest struct {
	Amount int64  `json:"amount"` // Coins, may be negative for corrections
	Reason string `json:"reason"`
}

func (h *AccountHandler) CreateAccount(c *fiber.Ctx) error {
	var req CreateAccountRequest

	// 1. Parse JSON
	if err := c.BodyParser(&req); err != nil {
		slog.Warn("Invalid account body", "error", err)
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	// 2. Validate Input
	if req.OwnerName == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Owner Name is required"})
	}

	// 3. Call Storage
	account, err := h.Repo.CreateAccount(c.Context(), req.OwnerName)
	if err != nil {
		slog.Error("Failed to create account", "error", err, "owner", req.OwnerName)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Could not create account"})
	}

	slog.Info("✅ Account Created", "id", account.ID, "owner", req.OwnerName)

	return c.Status(http.StatusCreated).JSON(account)
}

func (h *AccountHandler) GenerateKey(c *fiber.Ctx) error {
	accountID, err := parseAccountID(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid Account ID"})
	}

	// 1. Generate Secure Key
	realKey, keyHash, err := security.GenerateAPIKey()
	if err != nil {
		slog.Error("Crypto error generating key", "error", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Crypto error"})
	}

	// 2. Save Hash to DB
	err = h.Repo.SaveAPIKey(c.Context(), accountID, keyHash, "cp_live_")
	if err != nil {
		slog.Error("Failed to save API key", "error", err, "account_id", accountID)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save key"})
	}

	slog.Info("🔑 API Key Generated", "account_id", accountID)

	// 3. Show Key to Operator (ONCE ONLY)
	return c.JSON(fiber.Map{
		"api_key": realKey,
		"warning": "Save this now! We won't show it again.",
	})
}

func (h *AccountHandler) GetAccount(c *fiber.Ctx) error {
	accountID, err := parseAccountID(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid Account ID"})
	}

	account, err := h.Repo.GetAccountByID(c.Context(), accountID)
	if errors.Is(err, storage.ErrAccountNotFound) {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "Account not found"})
	}
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Could not fetch account"})
	}

	return c.JSON(account)
}

// GetCredits lists the last credit-ledger entries for an account.
func (h *AccountHandler) GetCredits(c *fiber.Ctx) error {
	accountID, err := parseAccountID(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid Account ID"})
	}

	credits, err := h.Ledger.ListCredits(c.Context(), accountID)
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Could not fetch credits"})
	}

	return c.JSON(fiber.Map{
		"credits": credits,
	})
}

// Adjust applies a manual operator correction to a wallet.
func (h *AccountHandler) Adjust(c *fiber.Ctx) error {
	accountID, err := parseAccountID(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid Account ID"})
	}

	var req AdjustRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}
	if req.Amount == 0 {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Amount is required"})
	}
	if req.Reason == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Reason is required"})
	}

	newBalance, err := h.Repo.AdjustBalance(c.Context(), accountID, req.Amount)
	if errors.Is(err, storage.ErrAccountNotFound) {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "Account not found"})
	}
	if err != nil {
		slog.Error("Failed to adjust balance", "error", err, "account_id", accountID)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Adjustment failed"})
	}

	slog.Info("Balance adjusted", "account_id", accountID, "delta", req.Amount, "reason", req.Reason)

	return c.JSON(fiber.Map{
		"status":      "success",
		"new_balance": newBalance,
	})
}

func parseAccountID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New("invalid account id")
	}
	return id, nil
}
