package bootstrap

import (
	"tab-inspector/internal/config"
	"tab-inspector/internal/httpapi"

	"go.uber.org/fx"
)

func runHTTP(lc fx.Lifecycle, config *config.Config, server *httpapi.Server) {
	if !config.HTTPConfig.Enabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: server.Start,
		OnStop:  server.Stop,
	})
}
