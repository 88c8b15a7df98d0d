package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/mpraski/quota/app/logging"
	"github.com/mpraski/quota/app/proxy"
	"github.com/mpraski/quota/app/ratelimit"
	"github.com/mpraski/quota/app/secret"
	"github.com/mpraski/quota/app/server"
	"github.com/mpraski/quota/app/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

type input struct {
	Config   string `required:"true"`
	LogLevel string `split_words:"true" default:"warn"`
	Logging  struct {
		Project string
		LogID   string `split_words:"true"`
	}
	Server struct {
		Address         string        `default:":8080"`
		ReadTimeout     time.Duration `split_words:"true" default:"5s"`
		WriteTimeout    time.Duration `split_words:"true" default:"10s"`
		IdleTimeout     time.Duration `split_words:"true" default:"15s"`
		ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
	}
	Observability struct {
		Address string `default:":9090"`
	}
	// Internal serves unauthenticated quota resets, keep it off public interfaces.
	Internal struct {
		Address string `default:"127.0.0.1:8081"`
	}
	Redis struct {
		Address        string
		Password       string
		PasswordSecret string `split_words:"true"`
		DB             int
		Prefix         string        `default:"quota:"`
		DialTimeout    time.Duration `split_words:"true" default:"1s"`
		ReadTimeout    time.Duration `split_words:"true" default:"500ms"`
		WriteTimeout   time.Duration `split_words:"true" default:"500ms"`
	}
	Secret           secret.Config
	SweepInterval    time.Duration `split_words:"true" default:"5m"`
	FallbackCooldown time.Duration `split_words:"true" default:"0s"`
}

const (
	app     = "quota"
	version = "v1"
)

var (
	// Metrics
	requestsRoutedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quota_requests_routed_total",
		Help: "The total number of routed requests",
	}, []string{"method", "path", "code"})
	requestsRoutedDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "quota_requests_routed_duration_seconds",
		Help:    "The histogram of routed request duration in seconds",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	log.SetOutput(os.Stdout)
	log.SetLevel(log.WarnLevel)
}

func main() {
	var i input
	if err := envconfig.Process(app, &i); err != nil {
		log.Fatalf("failed to load input: %v\n", err)
	}

	level, err := log.ParseLevel(i.LogLevel)
	if err != nil {
		log.Fatalf("failed to parse log level: %v\n", err)
	}

	log.SetLevel(level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if i.Logging.Project != "" {
		hook, errh := logging.NewCloudHook(ctx, i.Logging.Project, i.Logging.LogID, level)
		if errh != nil {
			log.Fatalf("failed to initialize cloud logging: %v\n", errh)
		}

		defer hook.Close()

		log.AddHook(hook)
		log.RegisterExitHandler(hook.Close)
	}

	memory := store.NewMemoryStore(nil)

	go memory.Run(ctx, i.SweepInterval)

	var (
		quota   store.Store = memory
		pinger  server.Pinger
		state   = func() server.State { return server.State{Backend: "memory"} }
		closers []func() error
	)

	if i.Redis.Address != "" {
		redis, errr := newRedisStore(ctx, &i)
		if errr != nil {
			log.Fatalf("failed to initialize redis store: %v\n", errr)
		}

		closers = append(closers, redis.Close)

		var policy store.DemotionPolicy = store.DemoteOnError{}
		if i.FallbackCooldown > 0 {
			policy = store.NewCooldownPolicy(i.FallbackCooldown, nil)
		}

		tiered := store.NewTieredStore(redis, memory, policy)

		quota, pinger = tiered, redis
		state = func() server.State { return server.State{Backend: "redis", Degraded: tiered.Degraded()} }
	} else {
		log.Warn("no redis address configured, counters are local to this instance")
	}

	p, err := proxy.New(i.Config, ratelimit.New(quota))
	if err != nil {
		log.Fatalf("failed to initialize proxy: %v\n", err)
	}

	defer p.Close()

	var readiness server.Readiness

	healthz, err := server.NewHealth(app, version, &readiness, pinger)
	if err != nil {
		log.Fatalf("failed to initialize health checks: %v\n", err)
	}

	var (
		done = make(chan bool)
		quit = make(chan os.Signal, 1)
	)

	observability := server.NewObservability(i.endpoint(i.Observability.Address), healthz)

	go func() {
		log.Println("starting observability server at", i.Observability.Address)

		if errs := observability.Serve(); errs != nil {
			log.Fatalf("failed to start observability server: %v\n", errs)
		}
	}()

	internal := server.NewInternal(i.endpoint(i.Internal.Address), quota, state)

	go func() {
		log.Println("starting internal server at", i.Internal.Address)

		if errs := internal.Serve(); errs != nil {
			log.Fatalf("failed to start internal server: %v\n", errs)
		}
	}()

	h := p.Handler()
	h = proxy.WithMetrics(requestsRoutedTotal, requestsRoutedDuration)(h)
	h = proxy.WithLogging()(h)

	main := server.NewMain(i.endpoint(i.Server.Address), h)

	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("server is shutting down...")
		readiness.Set(false)

		for _, e := range []*server.Endpoint{main, internal, observability} {
			if err := e.Stop(context.Background()); err != nil {
				log.Fatalf("failed to gracefully shutdown: %v\n", err)
			}
		}

		close(done)
	}()

	log.Println("server is ready to handle requests at", i.Server.Address)
	readiness.Set(true)

	if err := main.Serve(); err != nil {
		log.Fatalf("failed to start server: %v\n", err)
	}

	<-done

	for _, c := range closers {
		if err := c(); err != nil {
			log.WithError(err).Warn("failed to close store")
		}
	}

	log.Println("server stopped")
}

// endpoint applies the main server timeouts to an address.
func (i *input) endpoint(address string) server.Config {
	return server.Config{
		Address:         address,
		ReadTimeout:     i.Server.ReadTimeout,
		WriteTimeout:    i.Server.WriteTimeout,
		IdleTimeout:     i.Server.IdleTimeout,
		ShutdownTimeout: i.Server.ShutdownTimeout,
	}
}

func newRedisStore(ctx context.Context, i *input) (*store.RedisStore, error) {
	password := i.Redis.Password

	if i.Redis.PasswordSecret != "" {
		source, closeSource, err := secret.New(ctx, i.Secret)
		if err != nil {
			return nil, err
		}

		defer closeSource()

		s, err := source.Get(ctx, i.Redis.PasswordSecret)
		if err != nil {
			return nil, err
		}

		password = string(s)
	}

	return store.NewRedisStore(store.RedisConfig{
		Address:      i.Redis.Address,
		Password:     password,
		DB:           i.Redis.DB,
		Prefix:       i.Redis.Prefix,
		DialTimeout:  i.Redis.DialTimeout,
		ReadTimeout:  i.Redis.ReadTimeout,
		WriteTimeout: i.Redis.WriteTimeout,
	}), nil
}
