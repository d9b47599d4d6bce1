package main

import (
	"github.com/ravenloom/backend/internal/server"
	"github.com/ravenloom/backend/internal/util"
	"github.com/ravenloom/backend/pkg/logger"
	"github.com/ravenloom/backend/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
