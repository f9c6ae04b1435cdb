package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"quillblog/db"
	"quillblog/internal/auth"
	"quillblog/internal/config"
	"quillblog/internal/post"
	"quillblog/internal/session"
	"quillblog/internal/util"
	"quillblog/internal/web"
	"quillblog/middleware"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the blog web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

// buildHandler wires repositories, services and middleware into the root
// HTTP handler.
func buildHandler(factory *db.RepositoryFactory, cfg *config.Config) (http.Handler, error) {
	userRepo := factory.NewUserRepository()
	postRepo := factory.NewPostRepository()
	futurePostRepo := factory.NewFuturePostRepository()

	sessions := session.NewManager(cfg.SessionSecret, session.Options{
		MaxAge: cfg.SessionMaxAge,
		Secure: cfg.SecureCookies,
	})

	authService := auth.NewAuthService(userRepo, sessions, cfg.BcryptCost)
	guard := auth.NewGuard(userRepo, sessions)
	postService := post.NewPostService(postRepo, futurePostRepo)

	webHandler, err := web.NewWebHandler(authService, postService, sessions, middleware.NewMiddleware(guard, sessions))
	if err != nil {
		return nil, err
	}

	var handler http.Handler = webHandler.SetupRoutes()
	handler = middleware.SecurityHeaders(cfg.SecureCookies)(handler)
	handler = middleware.Recoverer(handler)
	handler = middleware.LoggingMiddleware(handler)
	return handler, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	sqliteDB, err := db.ConnectToSQLite(cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer sqliteDB.Close()

	if err := util.RetryOnLock(ctx, func() error { return db.InitializeSchema(sqliteDB) }); err != nil {
		return err
	}

	handler, err := buildHandler(db.NewRepositoryFactory(sqliteDB), cfg)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("Server is starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info().Msg("Shutting down the server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Info().Msg("Server stopped")
	return nil
}
