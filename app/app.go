package app

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/crawlfrontier/frontier/config"
)

// App wraps the gin engine and the loaded configuration, grounded on the
// teacher's app.App.
type App struct {
	Router *gin.Engine
	Config *config.Config
}

// NewApp builds the engine and loads configuration from the environment.
func NewApp() *App {
	return &App{
		Router: gin.Default(),
		Config: config.LoadConfig(),
	}
}

// Start runs the HTTP server on the configured port, blocking until it
// exits or fails.
func (app *App) Start() {
	log.Println("Server started on port:", app.Config.Port)
	if err := app.Router.Run(":" + app.Config.Port); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
