package ledger

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/salesledger/internal/dto"
	"github.com/Additional-Code/salesledger/internal/pipeline"
	"github.com/Additional-Code/salesledger/internal/presentation/http/response"
	"github.com/Additional-Code/salesledger/internal/runlog"
	"github.com/Additional-Code/salesledger/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/salesledger/transport/http/ledger")

// Runs is the part of the pipeline service the HTTP API needs.
type Runs interface {
	Submit(ctx context.Context, req pipeline.Request) (*runlog.Run, error)
	Get(ctx context.Context, id string) (*runlog.Run, error)
}

// Handler exposes ledger runs over HTTP.
type Handler struct {
	svc Runs
}

// NewHandler constructs a ledger run Handler.
func NewHandler(svc Runs) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/runs")
	g.POST("", h.submit)
	g.GET("/:id", h.get)
}

func (h *Handler) submit(c echo.Context) error {
	b := response.New(c)

	var payload dto.RunRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	req, err := payload.ToPipeline()
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "runs.submit")
	defer span.End()

	run, err := h.svc.Submit(ctx, req)
	if err != nil {
		return b.WithError(err).Build()
	}
	span.SetAttributes(attribute.String("run.id", run.ID))

	return b.WithStatus(http.StatusAccepted).
		WithLocation("/runs/" + run.ID).
		WithData(dto.NewRunResponse(run)).
		Build()
}

func (h *Handler) get(c echo.Context) error {
	b := response.New(c)
	id := c.Param("id")

	ctx, span := httpTracer.Start(c.Request().Context(), "runs.get", trace.WithAttributes(attribute.String("run.id", id)))
	defer span.End()

	run, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewRunResponse(run)).Build()
}
