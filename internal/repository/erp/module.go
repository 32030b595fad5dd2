package erp

import "go.uber.org/fx"

// Module provides the ERP repository to Fx.
var Module = fx.Provide(NewRepository)
