// Command soupbinsvc runs a SoupBinTCP server for a single session,
// registering its address in etcd so clients can discover it.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/softstream-link/soupbintcp/config"
	"github.com/softstream-link/soupbintcp/message"
	"github.com/softstream-link/soupbintcp/middleware"
	"github.com/softstream-link/soupbintcp/registry"
	"github.com/softstream-link/soupbintcp/server"
)

func decodeRaw(b []byte) (message.RawPayload, error) { return message.RawPayload(b), nil }

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if lvl, err := log.ParseLevel(cfg.Logs.Level); err == nil {
		log.SetLevel(lvl)
	}

	user, err := cfg.UserName()
	if err != nil {
		log.Fatalf("invalid username: %v", err)
	}
	pass, err := cfg.Password()
	if err != nil {
		log.Fatalf("invalid password: %v", err)
	}
	sid, err := cfg.SessionID()
	if err != nil {
		log.Fatalf("invalid session id: %v", err)
	}

	reg, err := registry.NewEtcdRegistry(cfg.Etcd.Endpoints)
	if err != nil {
		log.Fatalf("failed to connect to etcd: %v", err)
	}

	srv := server.NewServer[message.RawPayload, message.RawPayload](server.Config{
		Username:             user,
		Password:             pass,
		SessionID:            sid,
		MaxHbeatSendInterval: cfg.Session.MaxHbeatSendInterval,
		IOTimeout:            cfg.Session.IOTimeout,
		PollTimeout:          cfg.Session.PollTimeout,
		MaxBodySize:          cfg.Session.MaxBodySize,
		AdvertiseAddr:        cfg.Server.AdvertiseAddr,
	}, decodeRaw, func(ctx context.Context, sessionID string, seq uint64, payload message.RawPayload) error {
		log.WithFields(log.Fields{"session_id": sessionID}).Infof("received: %s", payload)
		return nil
	})
	srv.UseConnect(middleware.LoggingConnectMiddleware())
	srv.UseDeliver(middleware.LoggingDeliverMiddleware[message.RawPayload]())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down...")
		if err := srv.Shutdown(10 * time.Second); err != nil {
			log.WithError(err).Warn("shutdown did not complete cleanly")
		}
		cancel()
	}()

	log.Infof("serving session %q on %s", cfg.Session.SessionID, cfg.Server.ListenAddr)
	if err := srv.Serve("tcp", cfg.Server.ListenAddr, reg); err != nil {
		log.Fatalf("serve: %v", err)
	}
	<-ctx.Done()
}
