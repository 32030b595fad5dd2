package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/salesledger/internal/cache"
	"github.com/Additional-Code/salesledger/internal/config"
	"github.com/Additional-Code/salesledger/internal/database"
	"github.com/Additional-Code/salesledger/internal/delivery"
	"github.com/Additional-Code/salesledger/internal/logger"
	"github.com/Additional-Code/salesledger/internal/messaging"
	"github.com/Additional-Code/salesledger/internal/observability"
	"github.com/Additional-Code/salesledger/internal/pipeline"
	"github.com/Additional-Code/salesledger/internal/repository/erp"
	"github.com/Additional-Code/salesledger/internal/runlog"
	grpcserver "github.com/Additional-Code/salesledger/internal/server/grpc"
	httpserver "github.com/Additional-Code/salesledger/internal/server/http"
	transporthttp "github.com/Additional-Code/salesledger/internal/transport/http"
	"github.com/Additional-Code/salesledger/internal/worker"
	workerledger "github.com/Additional-Code/salesledger/internal/worker/ledger"
)

// Infra provides configuration, logging, observability and connections.
var Infra = fx.Options(
	config.Module,
	logger.Module,
	observability.Module,
	database.Module,
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	Infra,
	cache.Module,
	messaging.Module,
	delivery.Module,
	runlog.Module,
	erp.Module,
	pipeline.Module,
)

// HTTP wires the HTTP and gRPC servers on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerledger.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
