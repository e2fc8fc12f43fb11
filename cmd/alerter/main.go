package main

import (
	"context"
	"log"
	"time"

	"mandi/internal/alert"
	"mandi/internal/env"
	"mandi/internal/ranking"
	"mandi/internal/storage"
	"mandi/internal/store"
	"mandi/pkg/agmarknet"
	"mandi/pkg/geocode"
	"mandi/pkg/graceful"
	"mandi/pkg/kafkaclient"
)

func main() {
	env.LoadEnv()
	ctx, cancel := graceful.Context(context.Background())
	defer cancel()

	googleKey := env.MustGetEnv("GOOGLE_API_KEY")
	govKey := env.MustGetEnv("GOV_API_KEY")
	dsn := env.MustGetEnv("DATABASE_URL")
	kafkaBroker := env.MustGetEnv("KAFKA_BROKER")
	kafkaTopic := env.MustGetEnv("KAFKA_TOPIC")
	bucket := env.GetEnvWithDefault("MANDI_BUCKET_NAME", "mandi")

	interval, err := time.ParseDuration(env.GetEnvWithDefault("SWEEP_INTERVAL", "6h"))
	if err != nil {
		log.Fatalf("Invalid SWEEP_INTERVAL: %v", err)
	}

	profiles, err := store.NewProfileStore(ctx, dsn)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer profiles.Close()

	s3Service, err := storage.NewS3Service(bucket)
	if err != nil {
		log.Fatal(err)
	}

	publisher := kafkaclient.NewPublisher(kafkaTopic, kafkaBroker)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Printf("Failed to close publisher: %v", err)
		}
	}()

	engine := ranking.NewEngine(agmarknet.NewClient(govKey), geocode.NewClient(googleKey))
	sweeper := alert.NewSweeper(engine, publisher, s3Service)

	log.Printf("Alert sweeper running every %s", interval)
	runSweep(ctx, sweeper, profiles)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("Alerter exiting.")
			return
		case <-ticker.C:
			runSweep(ctx, sweeper, profiles)
		}
	}
}

func runSweep(ctx context.Context, sweeper *alert.Sweeper, profiles *store.ProfileStore) {
	start := time.Now()
	all, err := profiles.List(ctx)
	if err != nil {
		log.Printf("Failed to list profiles: %v", err)
		return
	}
	published := sweeper.Sweep(ctx, all)
	log.Printf("Sweep finished: %d profiles, %d alerts, took %s", len(all), published, time.Since(start))
}
