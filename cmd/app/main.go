package main

import (
	"github.com/averich/dav-bridge/internal/app"
	"github.com/averich/dav-bridge/internal/config"
)

func main() {
	cfg := config.GetConfig()

	app.Run(cfg)
}
