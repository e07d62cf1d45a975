package main

import (
	"log"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/neverwash/nwchat/internal/server/handlers"
	"github.com/neverwash/nwchat/internal/server/ratelimit"
	"github.com/neverwash/nwchat/internal/server/storage"
	"github.com/neverwash/nwchat/internal/server/ws"
)

func main() {
	// Optional .env for local development; env vars win.
	godotenv.Load()

	store := storage.New()
	defer store.Close()

	limiter := ratelimit.New()
	hub := ws.NewHub(store)
	h := handlers.New(store, hub, limiter)

	router := mux.NewRouter()
	h.Routes(router)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3567"
	}

	log.Printf("Server starting on :%s", port)
	log.Fatal(http.ListenAndServe(":"+port, router))
}
