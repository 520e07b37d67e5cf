package main

import (
	"context"
	"log"

	"github.com/supportdesk/platform/internal/config"
	"github.com/supportdesk/platform/internal/db"
	"github.com/supportdesk/platform/internal/httpapi"
	"github.com/supportdesk/platform/internal/store/rabbitmq"
	"github.com/supportdesk/platform/internal/store/redisstore"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := rds.Ping(context.Background()); err != nil {
		// The answer cache fails open, so a dead redis only costs
		// cache misses. Log and keep going.
		log.Printf("redis ping failed addr=%s err=%v", cfg.RedisAddr, err)
	}

	rabbit, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Printf("rabbit unavailable, async ingestion disabled err=%v", err)
		rabbit = nil
	} else {
		defer rabbit.Close()
	}

	r := httpapi.NewRouter(gdb, cfg, rds, rabbit)

	log.Printf("server listening addr=%s", cfg.ListenAddr)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
