package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"board-arena-system/handlers"
	"board-arena-system/middleware"
	"board-arena-system/services"
	"board-arena-system/utils"
	"board-arena-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Service-Token, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	// Replay archive is optional: without R2 credentials the engine simply
	// skips uploads.
	if err := utils.InitReplayStore(); err != nil {
		log.Printf("⚠️  Replay store disabled: %v", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := services.AutoMigrate(db); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	store := services.NewGormUserStore(db)
	notify := services.NewBroadcaster()
	tournamentService := services.NewTournamentService(store, notify)
	progressionService := services.NewProgressionService(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Profile mirror keeps bracket identities fresh; optional like the
	// replay store.
	syncServiceURL := os.Getenv("SYNC_SERVICE_URL")
	serviceToken := os.Getenv("ARENA_SERVICE_TOKEN")
	if syncServiceURL != "" {
		syncWorker := workers.NewProfileSyncWorker(db, syncServiceURL, "/api/v1/public/profiles", serviceToken)
		syncWorker.Start(ctx)
	} else {
		log.Println("⚠️  SYNC_SERVICE_URL not set — profile sync worker disabled")
	}

	resetWorker := workers.NewDailyResetWorker(db, tournamentService)
	resetWorker.Start()

	// ✅ Setup routes — with enforced Gateway auth
	handlers.SetupArenaRoutes(app, tournamentService)
	handlers.SetupProgressionRoutes(app, progressionService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Daily Reset Worker running")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
