// kimi-bridge accepts Anthropic Messages API traffic and serves it from
// an OpenAI-compatible chat-completions backend.
package main

import (
	"os"

	"kimi-bridge/internal/config"
	"kimi-bridge/internal/proxy"
	"kimi-bridge/internal/upstream"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"go.uber.org/dig"
)

func main() {
	// .env is optional; real deployments use the process environment.
	_ = godotenv.Load()
	setupLogger()

	container := dig.New()
	for _, ctor := range []any{
		config.NewConfig,
		upstream.NewClient,
		proxy.NewServer,
	} {
		if err := container.Provide(ctor); err != nil {
			logrus.Fatalf("failed to build container: %v", err)
		}
	}

	err := container.Invoke(func(cfg *config.Config, server *proxy.Server) error {
		if os.Getenv("GIN_MODE") == "" {
			gin.SetMode(gin.ReleaseMode)
		}
		logrus.Infof("kimi-bridge listening on %s, upstream %s", cfg.Addr(), cfg.UpstreamBaseURL)
		return server.Engine().Run(cfg.Addr())
	})
	if err != nil {
		logrus.Fatalf("server exited: %v", err)
	}
}

func setupLogger() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}
