package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"mandi/internal/env"
	"mandi/internal/ranking"
	"mandi/internal/server"
	"mandi/internal/storage"
	"mandi/internal/store"
	"mandi/pkg/agmarknet"
	"mandi/pkg/geocode"
	"mandi/pkg/graceful"
	"mandi/pkg/soilgrids"
	"mandi/pkg/weather"
)

func main() {
	env.LoadEnv()
	ctx, cancel := graceful.Context(context.Background())
	defer cancel()

	googleKey := env.MustGetEnv("GOOGLE_API_KEY")
	govKey := env.MustGetEnv("GOV_API_KEY")
	dsn := env.MustGetEnv("DATABASE_URL")
	bucket := env.GetEnvWithDefault("MANDI_BUCKET_NAME", "mandi")
	addr := ":" + env.GetEnvWithDefault("PORT", "8080")

	profiles, err := store.NewProfileStore(ctx, dsn)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer profiles.Close()

	s3Service, err := storage.NewS3Service(bucket)
	if err != nil {
		log.Fatal(err)
	}
	if err := s3Service.EnsureBucket(ctx, ""); err != nil {
		log.Fatalf("Failed to ensure bucket %s: %v", bucket, err)
	}

	geoClient := geocode.NewClient(googleKey)
	engine := ranking.NewEngine(agmarknet.NewClient(govKey), geoClient)

	srv := server.New(
		engine,
		geoClient,
		weather.NewClient(googleKey),
		soilgrids.NewClient(),
		profiles,
		s3Service,
	)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("Listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Println("Server stopped.")
}
