package main

import (
	"context"
	"fmt"
	"log"

	"ai_assistant_mini/internal/clients/ollama"
	"ai_assistant_mini/internal/config"
	"ai_assistant_mini/internal/middleware"
	"ai_assistant_mini/internal/routes"
	"ai_assistant_mini/internal/services"

	"github.com/gin-gonic/gin"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("ARIA 助手服务启动中...")

	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 创建Ollama客户端
	ollamaClient := ollama.NewClient(ollama.Config{
		Host:          cfg.Ollama.Host,
		Model:         cfg.Ollama.Model,
		MaxTokens:     cfg.Ollama.MaxTokens,
		Timeout:       cfg.Ollama.Timeout,
		HealthTimeout: cfg.Ollama.HealthTimeout,
	})

	// 创建各服务
	personaService := services.NewPersonaService()
	speechService := services.NewSpeechService(cfg.Speech)
	dialogService := services.NewDialogService(cfg, ollamaClient, personaService, speechService)

	// 启用语音时预先初始化引擎
	if cfg.Speech.Enabled {
		if err := speechService.Initialize(context.Background()); err != nil {
			log.Printf("语音服务初始化失败: %v", err)
		}
	}

	// 启动时报告模型运行时状态
	status := ollamaClient.Health(context.Background())
	log.Printf("Ollama状态: %s (模型: %s)", status.State, cfg.Ollama.Model)

	// 创建HTTP服务器
	r := gin.New()
	middleware.Setup(r)
	routes.RegisterRoutes(r, dialogService, cfg.WebSocket)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("服务监听地址: %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("服务器启动失败: %v", err)
	}
}
