// Command meshd runs a network controller's record set — networks,
// members, and the IPv4 pools/rules/routes attached to them — behind an
// HTTP JSON API. The API reads, mints and modifies those records; this
// binary does not answer NETWORK_CONFIG_REQUEST, over HTTP or over the
// wire protocol. A host that does embeds controller.Controller and calls
// its DoNetworkConfigRequest behind its own transport.Conn.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/peterbourgon/ff/v3"

	"github.com/meshcore/engine/address"
	"github.com/meshcore/engine/controller"
	"github.com/meshcore/engine/logger"
)

func main() {
	fs := flag.NewFlagSet("meshd", flag.ContinueOnError)
	var (
		identityPath = fs.String("identity", "", "path to the controller's identity file (address:0:pub[:priv])")
		httpAddr     = fs.String("http", ":9993", "address to serve the controller JSON API on")
		verbose      = fs.Bool("verbose", false, "log startup and controller messages")
	)
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("MESHD")); err != nil {
		log.Fatalf("ff.Parse: %v", err)
	}

	logf := logger.Discard
	if *verbose {
		logf = log.Printf
	}

	id, err := loadOrCreateIdentity(*identityPath, logf)
	if err != nil {
		log.Fatalf("identity: %v", err)
	}
	logf("controller address is %s", id.Address())

	c := controller.New(id, nowMillis, logf)

	mux := http.NewServeMux()
	mux.Handle("/controller/", c.Handler("/controller"))

	logf("serving controller API on %s", *httpAddr)
	if err := http.ListenAndServe(*httpAddr, mux); err != nil {
		log.Fatal(err)
	}
}

func nowMillis() uint64 {
	return uint64(time.Now().UnixMilli())
}

// loadOrCreateIdentity reads a controller identity from path, or
// generates a fresh one and writes it there if the file doesn't exist
// yet.
func loadOrCreateIdentity(path string, logf func(format string, args ...any)) (address.Identity, error) {
	if path == "" {
		logf("no -identity given, generating an ephemeral one")
		return address.Generate()
	}

	data, err := os.ReadFile(path)
	if err == nil {
		return address.ParseIdentity(string(data))
	}
	if !os.IsNotExist(err) {
		return address.Identity{}, err
	}

	id, err := address.Generate()
	if err != nil {
		return address.Identity{}, err
	}
	if err := os.WriteFile(path, []byte(id.String()), 0600); err != nil {
		return address.Identity{}, fmt.Errorf("writing new identity: %w", err)
	}
	return id, nil
}
