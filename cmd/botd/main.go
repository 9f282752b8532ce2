package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"gridfire/internal/config"
	"gridfire/internal/session"
)

func main() {
	config.LoadDotenv()
	cfg := config.SessionFromEnv()

	relayURL := flag.String("relay", cfg.RelayURL, "relay ws:// endpoint")
	count := flag.Int("n", 1, "number of bot sessions to run")
	speed := flag.Float64("speed", cfg.Speed, "bot walk speed multiplier")
	flag.Parse()
	cfg.RelayURL = *relayURL
	cfg.Speed = *speed

	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		log.Println("Shutting down...")
		cancel()
	}()

	var wg sync.WaitGroup
	for i := 0; i < *count; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			runBot(ctx, cfg, n)
		}(i)
		// Stagger connects so the relay seats a stable first host
		time.Sleep(150 * time.Millisecond)
	}
	wg.Wait()
}

// runBot keeps one bot session alive, reconnecting until shutdown
func runBot(ctx context.Context, cfg config.Session, n int) {
	for ctx.Err() == nil {
		s, err := session.Connect(ctx, cfg, session.NewWanderPilot(cfg.Speed))
		if err != nil {
			log.Printf("bot %d: %v", n, err)
		} else if err := s.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("bot %d: %v", n, err)
		}

		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
			return
		}
	}
}
