package main

import (
	"context"
	"encoding/json"
	"log"

	"mandi/internal/alert"
	"mandi/internal/env"
	"mandi/pkg/graceful"
	"mandi/pkg/kafkaclient"
)

// The notifier drains the price-alert topic and logs each alert. Delivery
// channels (SMS, push) hang off this consumer loop.
func main() {
	env.LoadEnv()
	ctx, cancel := graceful.Context(context.Background())
	defer cancel()

	kafkaBroker := env.MustGetEnv("KAFKA_BROKER")
	kafkaTopic := env.MustGetEnv("KAFKA_TOPIC")
	kafkaGroupID := env.MustGetEnv("KAFKA_GROUP_ID")

	log.Printf("Connecting to Kafka broker: %s on topic: %s with group ID: %s", kafkaBroker, kafkaTopic, kafkaGroupID)

	consumer, err := kafkaclient.NewConsumer(kafkaTopic, kafkaGroupID, kafkaBroker)
	if err != nil {
		log.Fatalf("Failed to create kafka consumer: %v", err)
	}

	consumer.StartConsuming(ctx)
	for msg := range consumer.Messages() {
		var a alert.Alert
		if err := json.Unmarshal(msg.Value, &a); err != nil {
			log.Printf("Error unmarshalling alert: %v", err)
			continue
		}

		log.Printf("Alert for %s: sell %s at %s (%s) for ₹%d/quintal, %.1f km away, total cost ₹%.2f",
			a.FarmerEmail, a.Crop, a.Best.Market, a.Best.District,
			a.Best.ModalPricePerQuintal, a.Best.TravelDistanceKm, a.Best.TotalEffectiveCost)

		if err := consumer.CommitOffset(ctx, msg); err != nil {
			log.Printf("Failed to commit offset: %v", err)
		}
	}

	consumer.Stop()
	log.Println("Notifier exiting.")
}
