package main

// Standalone ProCon.IP simulator: serves a realistic GetState.csv and
// accepts usrcfg.cgi relay writes, so the bridge can be exercised without
// pool hardware. A small REST API pokes raw channel values for testing.

import (
	"flag"
	"log"
	"net/http"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	firmware := flag.String("firmware", "1.7.6", "reported firmware version")
	deviceID := flag.String("device-id", "30217075", "reported device id")
	flag.Parse()

	sim := NewSimDevice(*firmware, *deviceID)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /GetState.csv", sim.getStateHandler)
	mux.HandleFunc("POST /usrcfg.cgi", sim.usrcfgHandler)

	// test hooks
	mux.HandleFunc("GET /channel/{index}", sim.getChannelHandler)
	mux.HandleFunc("PUT /channel/{index}/raw", sim.setChannelRawHandler)

	log.Printf("ProCon.IP simulator listening on %s", *addr)
	log.Fatal(http.ListenAndServe(*addr, mux))
}
