package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/Bambale0/vpn-creative-tg-bot/config"
	"github.com/Bambale0/vpn-creative-tg-bot/server"
)

func main() {
	// .env удобен при локальной разработке; в проде переменные приходят из окружения
	_ = godotenv.Load()

	cfg := config.MustLoad()
	app := &server.App{}
	app.Initialize(cfg)
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
