package pipeline

import "go.uber.org/fx"

// Module provides the pipeline service.
var Module = fx.Provide(NewService)
