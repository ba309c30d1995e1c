package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/Bambale0/vpn-creative-tg-bot/config"
	"github.com/Bambale0/vpn-creative-tg-bot/internal/admin"
	botpkg "github.com/Bambale0/vpn-creative-tg-bot/internal/bot"
	"github.com/Bambale0/vpn-creative-tg-bot/internal/controller"
	"github.com/Bambale0/vpn-creative-tg-bot/internal/db"
	"github.com/Bambale0/vpn-creative-tg-bot/internal/game"
	"github.com/Bambale0/vpn-creative-tg-bot/internal/health"
	"github.com/Bambale0/vpn-creative-tg-bot/internal/logs"
	"github.com/Bambale0/vpn-creative-tg-bot/internal/middleware"
	"github.com/Bambale0/vpn-creative-tg-bot/internal/models"
	"github.com/Bambale0/vpn-creative-tg-bot/internal/payments"
	"github.com/Bambale0/vpn-creative-tg-bot/internal/plugins"
	"github.com/Bambale0/vpn-creative-tg-bot/internal/repo"
	"github.com/Bambale0/vpn-creative-tg-bot/internal/wireguard"
)

type App struct {
	cfg        *config.Config
	db         *gorm.DB
	Router     *mux.Router
	httpServer *http.Server

	bot     *botpkg.Bot
	cron    *cron.Cron
	rec     *controller.Reconciler
	plugins plugins.Deps

	ctx    context.Context
	cancel context.CancelFunc
}

func (a *App) Initialize(cfg *config.Config) {
	a.cfg = cfg

	/* 1) Логи */
	logs.Init(logs.Options{
		Level:  a.cfg.Logging.Level,
		Format: a.cfg.Logging.Format,
		File:   a.cfg.Logging.File,
	})

	/* 2) DB */
	d, err := db.Open(a.cfg.Database.Driver, a.cfg.Database.DSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	a.db = d

	if err := a.db.AutoMigrate(
		&models.User{},
		&models.Subscription{},
		&models.TrialActivation{},
		&models.PeerConfig{},
		&models.Payment{},
		&models.GameProfile{},
		&models.AchievementAward{},
	); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	/* 3) Хранилища и сервисы */
	users := repo.NewUserStore(a.db)
	subs := repo.NewSubscriptionStore(a.db)
	peers := repo.NewPeerStore(a.db)
	pays := repo.NewPaymentStore(a.db)
	games := repo.NewGameStore(a.db)

	cp := wireguard.NewExecControlPlane(
		a.cfg.WireGuard.WGExec,
		a.cfg.WireGuard.WGQuickExec,
		a.cfg.WireGuard.Interface,
		time.Duration(a.cfg.WireGuard.CommandTimeout)*time.Second,
	)
	manager := wireguard.NewManager(peers, cp, a.cfg, logs.Component("wireguard"))
	gameSvc := game.NewService(games, subs, a.cfg, logs.Component("game"))

	var yk *payments.YooKassa
	if a.cfg.Payments.YooKassa.ShopID != "" {
		yk = payments.NewYooKassa(
			a.cfg.Payments.YooKassa.ShopID,
			a.cfg.Payments.YooKassa.SecretKey,
			a.cfg.Payments.YooKassa.ReturnURL,
		)
	}
	var cpay *payments.CryptoPay
	if a.cfg.Payments.CryptoPay.Token != "" {
		cpay = payments.NewCryptoPay(a.cfg.Payments.CryptoPay.Token, a.cfg.Payments.CryptoPay.APIURL)
	}
	paySvc := payments.NewService(pays, subs, gameSvc, yk, cpay, a.cfg, logs.Component("payments"))

	/* 4) Телеграм-бот */
	api, err := tgbotapi.NewBotAPI(a.cfg.Telegram.Token)
	if err != nil {
		log.Fatalf("telegram init failed: %v", err)
	}

	a.rec = controller.NewReconciler(subs, manager, nil, a.cfg, logs.Component("reconciler"))
	a.bot = botpkg.New(api, a.cfg, logs.Component("bot"), users, subs, manager, gameSvc, paySvc, a.rec)

	// бот поднимается последним, поэтому уведомители подключаются здесь
	a.rec.Notifier = a.bot
	paySvc.SetNotifier(a.bot)

	/* 5) Расписание зачистки */
	a.cron = cron.New()
	if _, err := a.cron.AddFunc(a.cfg.Reconciler.Interval, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := a.rec.Sweep(ctx); err != nil {
			logs.Component("reconciler").WithError(err).Error("scheduled sweep failed")
		}
	}); err != nil {
		log.Fatalf("bad reconciler.interval %q: %v", a.cfg.Reconciler.Interval, err)
	}

	/* 6) Router + middleware */
	a.Router = mux.NewRouter().StrictSlash(true)
	a.Router.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middleware.LoggerMW,
	)

	/* 7) Health */
	health.RegisterRoutesWithDB(a.Router, a.db) // /healthz, /readyz

	/* 8) Вебхуки платежей */
	wh := payments.NewWebhookHandler(paySvc, a.cfg.Payments.CryptoPay.WebhookSecret, logs.Component("webhook"))
	a.Router.HandleFunc("/webhooks/yookassa", wh.YooKassa).Methods(http.MethodPost)
	a.Router.HandleFunc("/webhooks/cryptopay", wh.CryptoPay).Methods(http.MethodPost)

	/* 9) Админка */
	admin.Attach(a.Router, admin.Dependencies{
		DB:       a.db,
		Users:    users,
		Subs:     subs,
		Peers:    peers,
		Payments: pays,
		Games:    games,
		Manager:  manager,
		REC:      a.rec,
		CFG:      a.cfg,
	})

	/* 10) Плагины */
	a.plugins = plugins.Deps{
		DB:    a.db,
		Users: users,
		Subs:  subs,
		Peers: peers,
		Games: games,
		Cfg:   a.cfg,
		Log:   logs.Component("plugins"),
	}
	if err := plugins.InitAll(context.Background(), a.plugins); err != nil {
		log.Fatalf("plugins init failed: %v", err)
	}

	/* (необязательно) вывести известные маршруты в лог при старте */
	_ = a.Router.Walk(func(rt *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, _ := rt.GetPathTemplate()
		methods, _ := rt.GetMethods()
		if len(methods) == 0 {
			methods = []string{"ANY"}
		}
		log.Printf("route: %-6v %s", methods, path)
		return nil
	})
}

func (a *App) Run() error {
	if a.Router == nil || a.cfg == nil {
		return fmt.Errorf("server not initialized")
	}

	bind := net.JoinHostPort(a.cfg.Server.Address, a.cfg.Server.HTTPPort)

	a.ctx, a.cancel = context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigs
		logs.Logger.Infof("shutdown signal: %s", s)
		a.cancel()
	}()

	a.cron.Start()
	go a.bot.Run(a.ctx)

	// Жёсткие таймауты — это важно для production
	a.httpServer = &http.Server{
		Addr:              bind,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logs.Logger.Infof("HTTP listening on %s", bind)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logs.Logger.Fatalf("http server error: %v", err)
		}
	}()

	<-a.ctx.Done()

	cronCtx := a.cron.Stop()
	<-cronCtx.Done()

	shutdownCtx, cancelPlugins := context.WithTimeout(context.Background(), 5*time.Second)
	plugins.ShutdownAll(shutdownCtx, a.plugins)
	cancelPlugins()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(ctx); err != nil {
		logs.Logger.Errorf("http shutdown: %v", err)
	}
	return nil
}
