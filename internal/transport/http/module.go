package http

import (
	"go.uber.org/fx"

	ledgertransport "github.com/Additional-Code/salesledger/internal/transport/http/ledger"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	ledgertransport.Module,
)
