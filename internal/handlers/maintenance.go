package handlers

import (
	"github.com/saiset-co/sai-gateway/internal/models"
	"github.com/saiset-co/sai-gateway/types"
	saiTypes "github.com/saiset-co/sai-service/types"
)

// MaintenanceHandler serves the management plane: readiness and the
// loaded registry excerpt, on the sai-service router rather than the
// data-plane listener.
type MaintenanceHandler struct {
	cfg           *types.SaiGatewayConfig
	localRegistry *models.Registry
}

func NewMaintenanceHandler(cfg *types.SaiGatewayConfig, localRegistry *models.Registry) *MaintenanceHandler {
	return &MaintenanceHandler{
		cfg:           cfg,
		localRegistry: localRegistry,
	}
}

func (h *MaintenanceHandler) Heartbeat(ctx *saiTypes.RequestCtx) {
	ctx.SuccessJSON(map[string]interface{}{
		"heartbeat":   true,
		"environment": h.cfg.Environment,
	})
}

func (h *MaintenanceHandler) Registry(ctx *saiTypes.RequestCtx) {
	ctx.SuccessJSON(h.localRegistry)
}
