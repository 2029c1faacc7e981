package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/jay8860/DD-TaskDashboardClone/api"
	"github.com/jay8860/DD-TaskDashboardClone/storage"
)

const (
	backendAzure    = "azure"
	backendPostgres = "postgres"
	backendMemory   = "memory"

	fanoutDirect = "direct"
	fanoutQueue  = "queue"
)

type backend struct {
	store            storage.Backend
	namespace        string
	queue            api.Publisher
	queueConcurrency int
	close            func()
}

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.StandardLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be := openBackend(ctx)
	defer be.close()

	var (
		store   api.Store = be.store
		deduper api.Deduper
		rc      *redis.Client
	)
	if conn := os.Getenv("REDIS_CONNECTION_STRING"); conn != "" {
		opts, err := storage.ParseRedisOptions(conn)
		if err != nil {
			log.Fatalf("invalid REDIS_CONNECTION_STRING: %v", err)
		}
		rc = redis.NewClient(opts)
		defer rc.Close()
		store = storage.NewCache(be.store, rc, be.namespace, envDuration("TASKS_CACHE_TTL", 5*time.Minute))
		deduper = api.NewRedisDeduper(rc, envDuration("DEDUPER_TTL", 24*time.Hour))
	}

	broker := api.NewBroker()
	channel := envOr("TASK_UPDATES_CHANNEL", "task-updates")
	pubs := api.Publishers{}
	if be.queue != nil {
		pubs = append(pubs, be.queue)
	}
	switch fanout := envOr("EVENT_FANOUT", fanoutDirect); fanout {
	case fanoutDirect:
		if rc != nil {
			pubs = append(pubs, storage.NewNotifier(rc, channel))
		} else {
			pubs = append(pubs, broker)
		}
	case fanoutQueue:
		if be.queue == nil || rc == nil {
			log.Fatal("EVENT_FANOUT=queue needs TASK_EVENTS_QUEUE and REDIS_CONNECTION_STRING")
		}
	default:
		log.Fatalf("invalid EVENT_FANOUT %q", fanout)
	}
	if rc != nil {
		go api.SubscribeUpdates(ctx, logger, rc, channel, broker)
	}

	sender := api.NewEventSender(pubs, api.SenderConfigFromEnv(be.queueConcurrency), logger)
	defer sender.Close()
	svc := api.NewService(store, sender, logger)

	auth, closeAuth := newAuthenticator()
	defer closeAuth()

	loc := time.Local
	if tz := os.Getenv("CALENDAR_TZ"); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			log.Fatalf("invalid CALENDAR_TZ: %v", err)
		}
		loc = l
	}

	e := echo.New()
	e.HideBanner = true
	e.JSONSerializer = api.SonicSerializer{}
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "Idempotency-Key"},
	}))
	e.Use(api.GzipRequestMiddleware())
	e.Use(api.RequestLogger(logger))

	api.Register(e, svc, auth, api.Options{
		Deduper:   deduper,
		Broker:    broker,
		Heartbeat: envDuration("STREAM_HEARTBEAT", 25*time.Second),
		Location:  loc,
	}, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok {
		listenAddr = ":" + val
	}

	go func() {
		if err := e.Start(listenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("shutdown")
	}
}

func openBackend(ctx context.Context) backend {
	switch kind := envOr("STORAGE_BACKEND", backendAzure); kind {
	case backendAzure:
		connStr := os.Getenv("STORAGE_CONNECTION_STRING")
		tasksTable := os.Getenv("TASKS_TABLE")
		if connStr == "" || tasksTable == "" {
			log.Fatal("missing storage config")
		}
		partition := envOr("TASKS_PARTITION", "tasks")
		eventsQueue := os.Getenv("TASK_EVENTS_QUEUE")
		st, err := storage.New(connStr, tasksTable, partition, eventsQueue)
		if err != nil {
			log.Fatalf("storage: %v", err)
		}
		be := backend{store: st, namespace: partition, queueConcurrency: st.QueueConcurrency(), close: func() {}}
		if eventsQueue != "" {
			be.queue = st
		}
		return be

	case backendPostgres:
		dsn := os.Getenv("DATABASE_URL")
		if dsn == "" {
			log.Fatal("missing DATABASE_URL")
		}
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		pg := storage.NewPgStore(pool)
		if err := pg.EnsureTable(ctx); err != nil {
			log.Fatalf("postgres schema: %v", err)
		}
		return backend{store: pg, namespace: "pg", close: pool.Close}

	case backendMemory:
		log.Warn("using in-memory task storage; tasks are lost on restart")
		return backend{store: storage.NewMemStore(), namespace: "memory", close: func() {}}

	default:
		log.Fatalf("invalid STORAGE_BACKEND %q", kind)
	}
	return backend{}
}

func newAuthenticator() (api.Authenticator, func()) {
	if disabled, _ := strconv.ParseBool(os.Getenv("AUTH_DISABLED")); disabled {
		log.Warn("authentication disabled")
		return api.StaticAuth(envOr("AUTH_DISABLED_USER", "local")), func() {}
	}
	if secret := os.Getenv("LOCAL_AUTH_SECRET"); secret != "" {
		return api.NewAuth(nil, api.AuthConfig{
			Audience:     os.Getenv("LOCAL_AUTH_AUDIENCE"),
			Issuer:       os.Getenv("LOCAL_AUTH_ISSUER"),
			SharedSecret: secret,
		}), func() {}
	}

	jwtAudience := os.Getenv("AUTH0_AUDIENCE")
	domain := os.Getenv("AUTH0_DOMAIN")
	if jwtAudience == "" || domain == "" {
		log.Fatal("missing Auth0 config")
	}
	jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", domain)
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshInterval:   time.Hour,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			log.WithError(err).Warn("jwks refresh failed")
		},
	})
	if err != nil {
		log.Fatalf("jwks: %v", err)
	}
	return api.NewAuth(jwks, api.AuthConfig{
		Audience:    jwtAudience,
		Issuer:      "https://" + domain + "/",
		KeyCacheTTL: envDuration("AUTH0_KEY_CACHE_TTL", 0),
	}), jwks.EndBackground
}

func envOr(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}

func envDuration(name string, def time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		log.Fatalf("invalid %s: %q", name, v)
	}
	return d
}
