package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"gridfire/internal/config"
	"gridfire/internal/relay"
)

func main() {
	config.LoadDotenv()
	cfg := config.RelayFromEnv()

	addr := flag.String("addr", cfg.Addr, "HTTP listen address")
	staticDir := flag.String("static", cfg.StaticDir, "client files to serve, empty disables")
	journalPath := flag.String("journal", cfg.JournalDSN, "sqlite journal path, empty disables")
	publicURL := flag.String("public-url", cfg.PublicURL, "externally reachable ws:// URL for invite codes")
	flag.Parse()

	var journal *relay.Journal
	if *journalPath != "" {
		var err error
		journal, err = relay.OpenJournal(*journalPath)
		if err != nil {
			log.Fatalf("open journal: %v", err)
		}
		log.Printf("Journaling events to %s", *journalPath)
	}

	hub := relay.NewHub(journal)
	go hub.Run()

	mux := relay.SetupRoutes(hub, *staticDir, *publicURL)
	server := &http.Server{Addr: *addr, Handler: mux}

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Relay listening on %s", *addr)
		if *staticDir != "" {
			log.Printf("Serving client files from %s", *staticDir)
		}
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down...")
	server.Close()
	journal.Stop()
	journal.Close()
}
