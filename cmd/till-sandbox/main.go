package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tillcache/till_sdk_go/internal/devseed"
	"github.com/tillcache/till_sdk_go/internal/sandbox"
	"github.com/tillcache/till_sdk_go/pkg/till/mock"
)

func main() {
	addr := flag.String("addr", ":5632", "listen address")
	seed := flag.String("seed", "", "path to YAML/JSON seed file")
	latency := flag.Duration("latency", 0, "artificial latency to inject per request")
	fail := flag.String("fail", "", "failure injection (rate=<float>,code=<httpStatus>)")
	memcacheAddrs := flag.String("memcache", "", "comma-separated memcached servers; empty keeps objects in memory")
	lifespans := flag.String("lifespans", "", "lifespan table (name=duration,...); default=24h when empty")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("parse log level: %v", err)
	}
	log.SetLevel(level)

	failCfg, err := sandbox.ParseFailConfig(*fail)
	if err != nil {
		log.Fatalf("parse fail flag: %v", err)
	}
	table, err := sandbox.ParseLifespans(*lifespans)
	if err != nil {
		log.Fatalf("parse lifespans flag: %v", err)
	}

	store, err := buildStore(*memcacheAddrs, table, log)
	if err != nil {
		log.Fatalf("init store: %v", err)
	}
	if *seed != "" {
		if err := applySeed(store, *seed); err != nil {
			log.Fatalf("apply seed: %v", err)
		}
	}

	server := &http.Server{
		Addr: *addr,
		Handler: sandbox.NewHandler(store,
			sandbox.WithLatency(*latency),
			sandbox.WithFailures(failCfg),
			sandbox.WithLogger(log),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("shutdown")
		}
	}()

	host := *addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	log.WithField("addr", host).Info("till-sandbox listening")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server failed: %v", err)
	}
}

func buildStore(memcacheAddrs string, lifespans map[string]time.Duration, log logrus.FieldLogger) (sandbox.Store, error) {
	if strings.TrimSpace(memcacheAddrs) == "" {
		return mock.New(mock.WithLifespans(lifespans)), nil
	}
	var servers []string
	for _, s := range strings.Split(memcacheAddrs, ",") {
		if s = strings.TrimSpace(s); s != "" {
			servers = append(servers, s)
		}
	}
	store := sandbox.NewMemcacheStore(lifespans, servers...)
	if err := store.Ping(); err != nil {
		return nil, err
	}
	log.WithField("servers", servers).Info("using memcached store")
	return store, nil
}

func applySeed(store sandbox.Store, path string) error {
	entries, err := devseed.Load(path)
	if err != nil {
		return err
	}
	ctx := context.Background()
	for _, e := range entries {
		if err := store.Set(ctx, e.Key, e.Value, e.Lifespan); err != nil {
			return err
		}
	}
	return nil
}
