package main

import (
	"fmt"
	"log"
	"os"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humafiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/leginote/fiscalnote/internal/api"
	"github.com/leginote/fiscalnote/internal/config"
	"github.com/leginote/fiscalnote/internal/database"
	"github.com/leginote/fiscalnote/internal/queue"
)

func main() {
	// Load .env file if present
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	cfg := config.Load()

	// Initialize database connection
	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		dbConfig := database.DefaultConfig(cfg.DatabaseURL)
		var err error
		db, err = database.Connect(dbConfig)
		if err != nil {
			log.Printf("Warning: Failed to connect to database: %v", err)
		} else {
			defer database.Close(db)
			log.Println("Connected to database")

			if err := database.Migrate(db); err != nil {
				log.Printf("Warning: Failed to run migrations: %v", err)
			} else {
				log.Println("Database migrations complete")
			}
		}
	} else {
		log.Println("Warning: DATABASE_URL not set, running with mock data only")
	}

	app := fiber.New(fiber.Config{
		AppName: "FiscalNote API",
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:4200, http://localhost:80, http://localhost",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: true,
	}))

	humaConfig := huma.DefaultConfig("FiscalNote API", "1.0.0")
	humaConfig.Info.Description = "API for generating and reading legislative fiscal notes"
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://localhost:%s", port), Description: "Local development"},
	}

	humaAPI := humafiber.New(app, humaConfig)

	if db != nil {
		billService := api.NewBillService(db, cfg.BillsRoot)
		orchestrator := queue.New(cfg, db)
		handler := api.NewRouteHandler(billService, orchestrator)
		api.RegisterRoutes(humaAPI, handler)
		log.Println("API routes registered with database support")
	} else {
		api.RegisterMockRoutes(humaAPI)
		log.Println("API routes registered with mock data (database not available)")
	}

	diagnosticSvc := api.NewDiagnosticService(db)
	api.RegisterDiagnosticRoutes(humaAPI, diagnosticSvc)

	app.Get("/docs", func(c *fiber.Ctx) error {
		html := `<!DOCTYPE html>
<html>
<head>
    <title>FiscalNote API Docs</title>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
</head>
<body>
    <script id="api-reference" data-url="/openapi.json"></script>
    <script src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"></script>
</body>
</html>`
		c.Set("Content-Type", "text/html")
		return c.SendString(html)
	})

	log.Printf("FiscalNote API starting on port %s", port)
	log.Printf("API docs available at http://localhost:%s/docs", port)
	log.Printf("OpenAPI spec at http://localhost:%s/openapi.json", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
