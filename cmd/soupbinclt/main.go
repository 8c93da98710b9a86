// Command soupbinclt connects to a SoupBinTCP session discovered through
// etcd, failing over between redundant venues, and logs every sequenced
// payload it receives.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/softstream-link/soupbintcp/client"
	"github.com/softstream-link/soupbintcp/config"
	"github.com/softstream-link/soupbintcp/loadbalance"
	"github.com/softstream-link/soupbintcp/message"
	"github.com/softstream-link/soupbintcp/middleware"
	"github.com/softstream-link/soupbintcp/registry"
)

func decodeRaw(b []byte) (message.RawPayload, error) { return message.RawPayload(b), nil }

func newBalancer(name string) (loadbalance.Balancer, error) {
	switch name {
	case "round_robin", "":
		return &loadbalance.RoundRobinBalancer{}, nil
	case "weighted_random":
		return &loadbalance.WeightedRandomBalancer{}, nil
	default:
		return nil, fmt.Errorf("unsupported balancer %q for client venue ranking", name)
	}
}

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

	bal, err := newBalancer(cfg.Client.Balancer)
	if err != nil {
		log.Fatalf("%v", err)
	}

	clt := client.NewClient[message.RawPayload, message.RawPayload](client.Config{
		Username:             user,
		Password:             pass,
		SessionID:            sid,
		StartSeq:             cfg.StartSeq(),
		MaxHbeatSendInterval: cfg.Session.MaxHbeatSendInterval,
		MaxRecvInterval:      cfg.Client.MaxRecvInterval,
		IOTimeout:            cfg.Session.IOTimeout,
		DialTimeout:          cfg.Client.DialTimeout,
		PollTimeout:          cfg.Session.PollTimeout,
		MaxBodySize:          cfg.Session.MaxBodySize,
	}, reg, bal, decodeRaw, func(ctx context.Context, sessionID string, seq uint64, payload message.RawPayload) error {
		log.WithFields(log.Fields{"session_id": sessionID, "seq": seq}).Infof("recv: %s", payload)
		return nil
	})
	clt.UseDeliver(middleware.LoggingDeliverMiddleware[message.RawPayload]())

	log.Infof("connecting to session %q via %s balancer", cfg.Session.SessionID, cfg.Client.Balancer)
	if err := clt.Connect(cfg.Session.SessionID); err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer clt.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-sigCh:
			log.Info("shutting down...")
			return
		case <-ticker.C:
			log.Debugf("connected=%v", clt.IsConnected())
		}
	}
}
