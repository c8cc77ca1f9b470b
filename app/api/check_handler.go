package api

import (
	"time"

	"medvault/ledger"
	"medvault/types"

	"github.com/gofiber/fiber/v2"
)

type CheckHandler struct {
	anchorer ledger.Anchorer
}

func NewCheckHandler(anchorer ledger.Anchorer) *CheckHandler {
	return &CheckHandler{anchorer: anchorer}
}

// HandleHealthy reports service and ledger health. A failing balance or
// height sub-call degrades to partial info instead of failing the check.
func (h *CheckHandler) HandleHealthy(c *fiber.Ctx) error {
	resp := types.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	}

	st := h.anchorer.Status(c.Context())
	resp.BlockchainConnected = st.Connected
	if st.Connected {
		resp.CurrentBlock = st.BlockNumber
		resp.WalletBalance = st.Balance
		resp.BlockchainError = st.Err
	}

	return c.JSON(resp)
}
