package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"moments/internal/config"
	"moments/internal/db"
	"moments/internal/handlers"
	"moments/internal/services"
	"moments/internal/storage"
	"moments/internal/views"
)

// Deps are the collaborators the HTTP app is built from
type Deps struct {
	Log   *logrus.Logger
	Store db.Store
	Files storage.Storage

	SessionSecret string
	SessionTTL    time.Duration
	BodyLimitMB   int
}

// Server is the fiber app plus the services behind its routes
type Server struct {
	App    *fiber.App
	Users  *services.UserService
	Albums *services.AlbumService
	Feed   *handlers.FeedHub
}

// New builds the app and registers every route
func New(d Deps) *Server {
	if d.BodyLimitMB <= 0 {
		d.BodyLimitMB = 32
	}

	// Services
	feed := handlers.NewFeedHub(d.Log)
	userService := services.NewUserService(d.Store, d.SessionSecret, d.SessionTTL)
	albumService := services.NewAlbumService(d.Store, d.Files, feed, d.Log)

	// Fiber App
	app := fiber.New(fiber.Config{
		Views:                 views.New(),
		ErrorHandler:          handlers.ErrorHandler(d.Log),
		BodyLimit:             d.BodyLimitMB * 1024 * 1024,
		UnescapePath:          true,
		DisableStartupMessage: true,
	})

	// Middleware
	app.Use(logger.New(logger.Config{Output: d.Log.Out}))
	app.Use(recover.New())
	app.Use(handlers.Session(userService))

	// Health Check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "feed_subscribers": feed.Count()})
	})

	mountMedia(app, d.Files)

	app.Get("/", handlers.HomeHandler())

	signUp := handlers.SignUpHandler(userService)
	app.Get("/sign-up", signUp)
	app.Post("/sign-up", signUp)

	login := handlers.LoginHandler(userService)
	app.Get("/login", login)
	app.Post("/login", login)

	logout := handlers.LogoutHandler()
	app.Get("/logout", logout)
	app.Post("/logout", logout)

	app.Get("/albums", handlers.PublicAlbumsHandler(albumService))
	app.Get("/albums/new", handlers.RequireLogin, handlers.NewAlbumFormHandler())
	app.Post("/albums/new", handlers.RequireLogin, handlers.CreateAlbumHandler(albumService))

	// REST
	rest := app.Group("/rest", cors.New())
	rest.Get("/:username", handlers.RESTAlbumListHandler(albumService))
	rest.Get("/:username/:name", handlers.RESTAlbumDetailHandler(albumService))

	// Live feed of new public albums
	app.Use("/ws", handlers.WSUpgradeMiddleware)
	app.Get("/ws/albums", handlers.FeedHandler(feed))

	// Profiles last, they match any first segment
	app.Get("/:username", handlers.ProfileHandler(albumService))
	app.Get("/:username/albums/:name", handlers.AlbumDetailHandler(albumService))

	return &Server{App: app, Users: userService, Albums: albumService, Feed: feed}
}

// mountMedia serves stored images for backends that live in this process
func mountMedia(app *fiber.App, files storage.Storage) {
	switch s := files.(type) {
	case *storage.Local:
		app.Static("/media", s.Root)
	case *storage.Memory:
		app.Get("/media/*", func(c *fiber.Ctx) error {
			data, ok := s.Get(strings.TrimPrefix(c.Params("*"), "/"))
			if !ok {
				return fiber.ErrNotFound
			}
			return c.Send(data)
		})
	}
}

// Run starts the server from configuration and blocks until SIGINT/SIGTERM
func Run(cfg *config.Config, log *logrus.Logger) error {
	ctx := context.Background()

	if err := db.Migrate(ctx, cfg.DatabaseURL); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	store, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer store.Close()
	log.Info("Connected to database")

	files, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to set up storage: %w", err)
	}

	srv := New(Deps{
		Log:           log,
		Store:         store,
		Files:         files,
		SessionSecret: cfg.SessionSecret,
		SessionTTL:    cfg.SessionTTL,
		BodyLimitMB:   cfg.BodyLimitMB,
	})

	// Start Server
	go func() {
		log.WithField("port", cfg.Port).Info("Listening")
		if err := srv.App.Listen(":" + cfg.Port); err != nil {
			log.WithError(err).Fatal("server stopped")
		}
	}()

	// Graceful Shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	<-c // Block until signal
	log.Info("Gracefully shutting down...")
	if err := srv.App.Shutdown(); err != nil {
		return err
	}
	log.Info("Server shutdown complete")
	return nil
}
