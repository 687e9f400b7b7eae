package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path"
	"regexp"
	"syscall"
	"time"

	"sosseats/src/common"
	"sosseats/src/config"
	"sosseats/src/db"
	"sosseats/src/lib"
	"sosseats/src/middlewares"
	"sosseats/src/monime"
	"sosseats/src/payments"
	"sosseats/src/settlement"
	"sosseats/src/withdrawals"

	"github.com/covalenthq/lumberjack"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const (
	apiPrefix         = "/api/v1"
	serviceName       = "sos-seats-api"
	defaultSessionTTL = 24 * time.Hour
)

var momoProviderValidatorFunc validator.Func = func(fl validator.FieldLevel) bool {
	_, ok := monime.ProviderCode(fl.Field().String())
	return ok
}

type server struct {
	cfg        *config.Config
	secret     []byte
	builder    *payments.Builder
	intents    payments.IntentStore
	reconciler *settlement.Reconciler
	approver   *withdrawals.Approver
}

func newServer(cfg *config.Config, builder *payments.Builder, intents payments.IntentStore, reconciler *settlement.Reconciler, approver *withdrawals.Approver) *server {
	return &server{
		cfg:        cfg,
		secret:     []byte(cfg.SessionSecret),
		builder:    builder,
		intents:    intents,
		reconciler: reconciler,
		approver:   approver,
	}
}

func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("momo_provider", momoProviderValidatorFunc)
	}
}

func setupRouter() *gin.Engine {
	router := gin.Default()
	router.Use(middlewares.SecureHeaders)
	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, "ok")
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}

func maintenanceModeMiddleware(g *gin.Engine, enabled bool) *gin.Engine {
	g.Use(func(ctx *gin.Context) {
		if enabled {
			err := errors.New("server is under maintenance")
			log.Println(err.Error())
			ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": err.Error()})
			return
		}
	})
	return g
}

func apiv1Group(g *gin.Engine) *gin.RouterGroup {
	apiv1 := g.Group(apiPrefix)
	return apiv1
}

func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	if cfg.IsLocal() {
		return cors.Default()
	}
	cc := cors.DefaultConfig()
	cc.AllowMethods = append(cc.AllowMethods, "GET", "POST", "PATCH", "PUT", "DELETE", "HEAD")
	cc.AllowHeaders = append(cc.AllowHeaders, "Origin", "Authorization")
	cc.AllowOriginFunc = func(origin string) bool {
		if cfg.AppHost == "" {
			return false
		}
		match, _ := regexp.MatchString(regexp.QuoteMeta(cfg.AppHost), origin)
		return match
	}
	cc.AllowCredentials = true
	cc.AllowAllOrigins = false
	return cors.New(cc)
}

// routes registers every endpoint on router. Middleware added to router
// before this call applies to all of them.
func (s *server) routes(router *gin.Engine) *gin.Engine {
	router = maintenanceModeMiddleware(router, s.cfg.MaintenanceMode)

	s.stripeWebhookRoute(router)

	apiv1 := apiv1Group(router)
	apiv1.Use(middlewares.Session(s.secret))
	s.sessionHandlers(apiv1)
	s.monimeHandlers(apiv1)
	s.orderHandlers(apiv1)
	s.withdrawalHandlers(apiv1)
	return router
}

func (s *server) sessionHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/session", middlewares.RequireSession, func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"success": true, "data": middlewares.GetSession(ctx)})
		}).
		POST("/session/refresh", middlewares.RequireSession, func(ctx *gin.Context) {
			sess := middlewares.GetSession(ctx)
			ttl := s.cfg.SessionTTL
			if ttl <= 0 {
				ttl = defaultSessionTTL
			}
			if err := middlewares.IssueSession(ctx, s.secret, sess.Source, sess.Claims(), ttl, !s.cfg.IsLocal()); err != nil {
				common.RespondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"success": true, "data": sess})
		}).
		POST("/session/logout", func(ctx *gin.Context) {
			middlewares.ClearSession(ctx, !s.cfg.IsLocal())
			ctx.JSON(http.StatusOK, gin.H{"success": true})
		})
	return g
}

func initLogger(cfg *config.Config) {
	cwd, _ := os.Getwd()
	serverLogs := path.Join(cwd, "logs", "server.log")
	apiLogs := path.Join(cwd, "logs", "api.log")

	if err := os.MkdirAll(path.Join(cwd, "logs"), 0o755); err == nil {
		if f, err := os.Create(apiLogs); err == nil {
			gin.DefaultWriter = io.MultiWriter(f, os.Stdout)
		}
	}
	if cfg.IsLocal() {
		gin.ForceConsoleColor()
		log.SetLevel(log.DebugLevel)
		log.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   serverLogs,
			MaxSize:    500,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		}))
		return
	}
	gin.SetMode(gin.ReleaseMode)
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(&lumberjack.Logger{
		Filename:   serverLogs,
		MaxSize:    500,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	})
}

func newPublisher(ctx context.Context, cfg *config.Config) (lib.Publisher, func()) {
	if cfg.KafkaBroker == "" {
		log.Warn("KAFKA_BROKER is not set, domain events are disabled")
		return lib.NopPublisher{}, func() {}
	}
	p, err := lib.NewKafkaPublisher(cfg.KafkaBroker, serviceName)
	if err != nil {
		log.Printf("Error creating kafka publisher, domain events are disabled: %s\n", err.Error())
		return lib.NopPublisher{}, func() {}
	}
	if _, err := lib.KafkaCreateTopics(ctx, cfg.KafkaBroker, settlement.TopicOrdersSettled, withdrawals.TopicWithdrawalsUpdated); err != nil {
		log.Printf("Error creating topics: %s\n", err.Error())
	}
	return p, p.Close
}

func newGateway(cfg *config.Config) *monime.Client {
	opts := []monime.Option{
		monime.WithPayoutKey(cfg.Monime.PayoutAPIKey),
		monime.WithVersion(cfg.Monime.Version),
	}
	if cfg.Monime.Environment == "mock" {
		log.Warn("monime checkout is mocked, payments will not be collected")
		opts = append(opts, monime.WithMockCheckout())
	}
	return monime.NewClient(cfg.Monime.BaseURL, cfg.Monime.APIKey, cfg.Monime.SpaceID, opts...)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading config: %s", err)
	}
	initLogger(cfg)
	registerValidators()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := lib.InitTracer(serviceName, cfg.OTLPEndpoint, cfg.APIEnv)
	if err != nil {
		log.Printf("Error initializing tracer: %s\n", err.Error())
	} else {
		defer shutdownTracer(context.Background())
	}

	gdb := db.GetDb(cfg)
	rdb := lib.GetRedisClient(cfg.RedisHost)
	if rdb == nil {
		log.Fatal("Error creating redis client")
	}
	if err := lib.PingRedis(ctx, rdb); err != nil {
		log.Fatalf("Error connecting to redis: %s", err)
	}

	publisher, closePublisher := newPublisher(ctx, cfg)
	defer closePublisher()

	platform, _ := cfg.PlatformPolicy()
	withdrawalPolicy, _ := cfg.WithdrawalPolicy()

	gateway := newGateway(cfg)
	intents := payments.NewRedisIntentStore(rdb, payments.DefaultIntentTTL)
	builderOpts := []payments.Option{}
	if cfg.Stripe.SecretKey != "" {
		builderOpts = append(builderOpts, payments.WithCardProvider(payments.NewStripeCheckout(lib.GetStripeClient(cfg.Stripe.SecretKey), cfg.Stripe.Currency)))
	}
	builder := payments.NewBuilder(payments.NewCatalog(gdb), gateway, intents, platform, builderOpts...)
	reconciler := settlement.NewReconciler(settlement.NewRepository(gdb), publisher)
	approver := withdrawals.NewApprover(withdrawals.NewRepository(gdb), gateway, withdrawalPolicy, publisher,
		withdrawals.WithApprovalWindow(cfg.Withdrawals.ApprovalWindow),
		withdrawals.WithRecheckDelay(cfg.Withdrawals.PayoutRecheckDelay),
	)

	if _, err := lib.CreateCronJob(ctx, "reconcile-payouts", cfg.Withdrawals.ReconcileInterval, func(ctx context.Context) {
		if n, err := approver.ReconcilePending(ctx); err != nil {
			log.WithError(err).Error("payout reconciliation failed")
		} else if n > 0 {
			log.WithField("updated", n).Info("payouts reconciled")
		}
	}); err != nil {
		log.Printf("Error scheduling payout reconciliation: %s\n", err.Error())
	}
	if sched, err := lib.GetScheduler(); err == nil {
		sched.Start()
		defer sched.Shutdown()
	}

	s := newServer(cfg, builder, intents, reconciler, approver)
	router := setupRouter()
	router.Use(corsMiddleware(cfg))
	s.routes(router)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("Listening on %s\n", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %s", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %s\n", err.Error())
	}
}
