package main

import (
	"flag"
	"log"
	"net/http"
	"os"

	"github.com/robolibs/consens/internal/transport/ws"
)

func main() {
	addr := flag.String("addr", ":9801", "http listen address")
	flag.Parse()

	logger := log.New(os.Stdout, "[relay] ", log.LstdFlags|log.Lmicroseconds)

	relay := ws.NewRelay(logger)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", relay.Handler())

	logger.Printf("listening on %s", *addr)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		logger.Fatalf("serve: %v", err)
	}
}
