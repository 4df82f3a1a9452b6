package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"SobeSobe/config"
	"SobeSobe/internal/auth"
	"SobeSobe/internal/game/manager"
	"SobeSobe/internal/game/store"
	"SobeSobe/internal/game/table"
	"SobeSobe/internal/matchmaker"
	"SobeSobe/internal/middleware"
	"SobeSobe/internal/storage"
	"SobeSobe/internal/utils"
	"SobeSobe/internal/websocket"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("config", "err", err)
	}
	logger, err := utils.NewLogger(os.Stderr, cfg.Log.Level)
	if err != nil {
		log.Fatal("logger", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//-------------------------------------------------------
	// 1. 初始化存储（对局 / 匹配队列 / nonce）
	//-------------------------------------------------------
	var rdb *redis.Client
	if cfg.Store.Driver == "redis" {
		if rdb, err = storage.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
			logger.Fatal("Redis init failed", "err", err)
		}
		defer rdb.Close()
	}

	var st store.Store
	switch cfg.Store.Driver {
	case "memory":
		st = store.NewMemoryStore()
	case "redis":
		st = store.NewRedisStore(rdb)
	case "postgres":
		db, err := storage.NewPostgres(ctx, cfg.Database.DSN)
		if err != nil {
			logger.Fatal("Postgres init failed", "err", err)
		}
		defer db.Close()
		if err := store.Migrate(ctx, db); err != nil {
			logger.Fatal("migrate", "err", err)
		}
		st = store.NewPostgresStore(db)
	}

	repo := matchmaker.NewMemoryRepo()
	nonces := auth.NewMemoryNonceStore()
	if rdb != nil {
		repo = matchmaker.NewRedisRepo(rdb)
		nonces = auth.NewRedisNonceStore(rdb)
	}
	logger.Info("storage ready", "driver", cfg.Store.Driver)

	//-------------------------------------------------------
	// 2. Hub（必须最先启动）+ GameManager + 匹配系统
	//-------------------------------------------------------
	hub := websocket.NewHub(logger)
	go hub.Run()

	rules := cfg.Rules()
	gameMgr := manager.NewGameManager(st, hub, rules, logger)
	hub.OnIncoming = gameMgr.HandlePlayerMessage

	svc := matchmaker.NewService(repo, cfg.Lobby.PlayerTTL, hub, logger)

	// 成桌回调：让 GameManager 接手并开局，失败则放回大厅
	svc.OnRoomReady = func(room *matchmaker.Room) {
		if err := gameMgr.StartRoom(room); err != nil {
			logger.Error("StartRoom failed", "room", room.ID, "err", err)
			_ = svc.Release(context.Background(), room.Players...)
		}
	}
	gameMgr.OnGameOver = func(g *table.Game) {
		if err := svc.Release(context.Background(), g.UserIDs()...); err != nil {
			logger.Warn("release players", "game", g.ID, "err", err)
		}
	}

	//-------------------------------------------------------
	// 3. Gin + CORS + 路由
	//-------------------------------------------------------
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:          12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": hub.Connected()})
	})

	secret := []byte(cfg.JWT.Secret)
	auth.NewHandler(nonces, secret, cfg.JWT.TTL, cfg.Auth.NonceTTL, logger).Register(r)

	authed := r.Group("/", middleware.JwtAuthMiddleware(secret))
	{
		authed.GET("/ws", websocket.ServeWS(hub))

		mh := matchmaker.NewHandler(svc)
		authed.POST("/lobby/join", mh.Join)
		authed.POST("/lobby/cancel", mh.Cancel)
		authed.GET("/lobby/:pool", mh.Waiting)

		manager.NewHandler(gameMgr).Register(authed)
	}

	//-------------------------------------------------------
	// 4. 启动服务器
	//-------------------------------------------------------
	srv := &http.Server{Addr: cfg.Server.Port, Handler: r}
	go func() {
		logger.Info("Server running", "addr", cfg.Server.Port, "rules", rules)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", "err", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "err", err)
	}
	gameMgr.Close()
	hub.Close()
}
