package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FrenchMajesty/yuko/client"
	"github.com/FrenchMajesty/yuko/config"
	"github.com/FrenchMajesty/yuko/server"
	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", "config.yaml", "config file path")
	channelID := flag.String("channel", "", "channel to post a demo message to")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	c, err := client.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("client: %v", err)
	}

	var debug *server.Server
	if cfg.DebugServer.Enabled {
		gin.SetMode(gin.ReleaseMode)
		debug = server.New(c.REST(), server.WithRecorder(c.Recorder()))
		debug.Start(cfg.DebugServer.Addr)
		fmt.Printf("Debug server on http://%s (/stats, /buckets, /events)\n", cfg.DebugServer.Addr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runDemo(ctx, c, *channelID); err != nil {
		fmt.Printf("demo failed: %v\n", err)
	}

	if debug != nil {
		fmt.Println("Ctrl+C to exit")
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := debug.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("debug server shutdown: %v\n", err)
		}
	}

	if err := c.Close(); err != nil {
		fmt.Printf("close: %v\n", err)
	}
}

// loadConfig reads path, falling back to defaults plus YUKO_TOKEN when the file does not exist
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		return cfg, err
	}

	cfg = config.Default()
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runDemo(ctx context.Context, c *client.Client, channelID string) error {
	me, err := c.GetCurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("current user: %w", err)
	}
	fmt.Printf("Logged in as %s (%s)\n", me.Tag(), me.ID())

	gateway, err := c.GetGatewayBot(ctx)
	if err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	fmt.Printf("Gateway %s, %d shards, %d/%d session starts left\n",
		gateway.URL, gateway.Shards, gateway.SessionStartLimit.Remaining, gateway.SessionStartLimit.Total)

	if channelID == "" {
		return nil
	}

	// a burst on one route exercises bucket ordering and 429 handling
	for i := 1; i <= 5; i++ {
		message, err := c.CreateMessage(ctx, channelID, client.MessageCreate{Content: fmt.Sprintf("yuko demo %d/5", i)})
		if err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
		if err := c.DeleteMessage(ctx, channelID, message.ID(), "yuko demo cleanup"); err != nil {
			return fmt.Errorf("delete %d: %w", i, err)
		}
	}

	stats := c.REST().GetStats()
	fmt.Printf("Dispatched %d requests across %d buckets, %d rate limited, %d retried\n",
		stats.Dispatched, stats.Buckets, stats.RateLimited, stats.Retried)
	return nil
}
