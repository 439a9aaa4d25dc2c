package main

import (
	"fmt"
	"log"
	"time"

	"PromptToVideo-server/config"
	"PromptToVideo-server/models"
	"PromptToVideo-server/routers"
	"PromptToVideo-server/routers/api"
	"PromptToVideo-server/service"
)

func main() {
	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	fmt.Println("Server starting on port", cfg.Server.Port)

	store, err := models.InitDB(cfg.MySQL.DSN)
	if err != nil {
		log.Fatalf("初始化数据库失败: %v", err)
	}
	fmt.Println("Database initialized")

	oss, err := service.NewObjectStore(
		cfg.MinIO.Endpoint, cfg.MinIO.AccessKey, cfg.MinIO.SecretKey,
		cfg.MinIO.Bucket, cfg.MinIO.UseSSL,
	)
	if err != nil {
		log.Fatalf("初始化 MinIO 失败: %v", err)
	}
	fmt.Println("MinIO initialized")

	gen := service.NewVendorClient(cfg.Generation.Endpoint, cfg.Generation.APIKey)
	orc := service.NewOrchestrator(store, gen, oss, service.Settings{
		ImageCount:   cfg.Generation.ImageCount,
		BaseUnitSec:  cfg.Generation.BaseUnitSec,
		AspectRatio:  cfg.Generation.AspectRatio,
		SeedMin:      cfg.Generation.SeedMin,
		SeedMax:      cfg.Generation.SeedMax,
		PollInterval: time.Duration(cfg.Generation.PollIntervalSec) * time.Second,
		PollTimeout:  time.Duration(cfg.Generation.PollTimeoutMin) * time.Minute,
	})

	queue := service.NewQueue(cfg.Redis.Addr, cfg.Redis.Password)
	fmt.Println("Queue initialized")

	processor := service.NewProcessor(orc, queue, cfg.Redis.Addr, cfg.Redis.Password)
	processor.StartProcessor(5)

	r := routers.InitRouter(&api.Handler{
		Store: store,
		Orc:   orc,
		Queue: queue,
	})
	r.Run(cfg.Server.Port)
}
