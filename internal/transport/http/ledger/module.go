package ledger

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/Additional-Code/salesledger/internal/pipeline"
)

// Module wires HTTP ledger run handlers.
var Module = fx.Options(
	fx.Provide(func(svc *pipeline.Service) *Handler { return NewHandler(svc) }),
	fx.Invoke(func(e *echo.Echo, h *Handler) {
		Register(e, h)
	}),
)
