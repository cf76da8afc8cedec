package bootstrap

import (
	"energy-exchange/internal/config"
	"energy-exchange/internal/interfaces/router"
	"energy-exchange/internal/pkg/logging"

	"github.com/gofiber/fiber/v2"
)

// New creates the Fiber app for serverless hosting, where no process
// outlives a request and the attempt janitor is not started.
func New() (*fiber.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.LogLevel, true)
	app, _, err := router.CreateApp(cfg)
	return app, err
}
