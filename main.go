package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tablematch_server/config"
	"tablematch_server/database"
	"tablematch_server/middleware"
	"tablematch_server/routes"
	"tablematch_server/services"
	"tablematch_server/socket"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// openStore connects the store selected by store.driver
func openStore(ctx context.Context, cfg *config.Config) (services.Store, error) {
	if cfg.Store.Driver == config.DriverDynamoDB {
		log.Println("Initializing DynamoDB client...")
		client, err := services.InitializeDynamoDBClient(ctx, cfg.DynamoDB.Region, cfg.DynamoDB.Endpoint)
		if err != nil {
			return nil, err
		}
		store := services.NewDynamoStore(&services.DynamoService{Client: client}, services.NewDynamoTables(cfg.DynamoDB.TablePrefix))
		if cfg.Store.AutoCreate {
			if err := store.EnsureTables(ctx); err != nil {
				return nil, err
			}
		}
		log.Println("DynamoDB client initialized.")
		return store, nil
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Store.AutoCreate {
		if err := database.AutoMigrate(db); err != nil {
			return nil, err
		}
	}
	return services.NewGormStore(db), nil
}

// writeDevToken prints a bearer token for userID signed with the configured
// secret, for local testing without the identity service
func writeDevToken(w io.Writer, cfg *config.Config, userID string, ttl time.Duration) error {
	token, err := middleware.IssueToken(cfg.Auth.JWTSecret, cfg.Auth.Issuer, userID, ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, token)
	return err
}

func main() {
	configPath := flag.String("config", "", "path to a config file (default ./config.yaml if present)")
	devToken := flag.String("dev-token", "", "print a bearer token for this user id and exit")
	devTokenTTL := flag.Duration("dev-token-ttl", 24*time.Hour, "lifetime of the -dev-token token")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	if *devToken != "" {
		if err := writeDevToken(os.Stdout, cfg, *devToken, *devTokenTTL); err != nil {
			log.Fatalf("❌ Failed to issue token: %v", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ Failed to open %s store: %v", cfg.Store.Driver, err)
	}
	defer store.Close()

	// One realtime server per process; services only see it as a Publisher
	realtime := socket.NewRealtime(cfg.Realtime.Namespace, cfg.Realtime.WebSocket)
	realtime.Start()
	defer realtime.Close()

	if cfg.Places.APIKey == "" {
		log.Println("⚠️ places.api_key is empty; deck init and expand will fail until it is set")
	}
	places := services.NewPlacesService(store, services.NewGooglePlacesClient(cfg.Places.APIKey, cfg.Places.BaseURL), cfg.Places.Timeout)

	// Initialize the router
	r := mux.NewRouter()
	r.Use(middleware.RequestLogger)
	routes.RegisterRoutes(r, routes.Dependencies{
		Sessions:  services.NewSessionService(store, realtime),
		Decks:     services.NewDeckService(store, places, realtime),
		Swipes:    services.NewSwipeService(store, realtime),
		Shortlist: services.NewShortlistService(store),
		Realtime:  realtime,
		Auth:      middleware.Authenticate(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
	})

	// Add CORS middleware
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(r)

	server := &http.Server{Addr: ":" + cfg.Server.Port, Handler: corsHandler}
	go func() {
		log.Printf("Starting server on port %s (%s store)...\n", cfg.Server.Port, cfg.Store.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("❌ Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ Graceful shutdown failed: %v", err)
	}
}
