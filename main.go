package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/madjin/crypto-superchat/internal/config"
	"github.com/madjin/crypto-superchat/internal/db"
	"github.com/madjin/crypto-superchat/internal/handler"
	"github.com/madjin/crypto-superchat/internal/hub"
	"github.com/madjin/crypto-superchat/internal/services"
	"github.com/madjin/crypto-superchat/internal/task"
	"github.com/madjin/crypto-superchat/utils"
)

func main() {
	app := &cli.App{
		Name:  "crypto-superchat",
		Usage: "链上打赏弹幕：监听代币转账、人工审核、推送到 OBS 叠加层",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径，默认查找 ./config.yaml",
				EnvVars: []string{"OVERLAY_CONFIG"},
			},
		},
		Action: runServe,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "启动 HTTP/websocket 服务和交易监听",
				Action: runServe,
			},
			{
				Name:   "clear-events",
				Usage:  "删除全部打赏事件",
				Action: runClearEvents,
			},
			{
				Name:  "banned-words",
				Usage: "管理屏蔽词",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "列出全部屏蔽词",
						Action: runListBannedWords,
					},
					{
						Name:      "add",
						Usage:     "新增或重新启用屏蔽词",
						ArgsUsage: "<word>",
						Action:    runAddBannedWord,
					},
					{
						Name:      "disable",
						Usage:     "停用屏蔽词",
						ArgsUsage: "<word>",
						Action:    runDisableBannedWord,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// setup 读取配置、初始化日志并打开数据库
func setup(cctx *cli.Context) (*config.Config, *utils.Logger, *gorm.DB, error) {
	cfg, err := config.Load(cctx.String("config"))
	if err != nil {
		return nil, nil, nil, err
	}

	logger, err := utils.NewLogger(utils.LogOptions{
		Level:  cfg.Log.Level,
		Output: cfg.Log.Output,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	utils.SetDefault(logger)

	conn, err := db.Open(cfg.Database, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := db.Init(cctx.Context, conn); err != nil {
		return nil, nil, nil, err
	}
	logger.Info("数据库初始化完成 (%s)", cfg.Database.Driver)
	return cfg, logger, conn, nil
}

func runServe(cctx *cli.Context) error {
	ctx, stop := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger, conn, err := setup(cctx)
	if err != nil {
		return err
	}
	defer logger.Sync()

	broadcast, err := hub.New(cfg.Hub.PoolSize, logger)
	if err != nil {
		return fmt.Errorf("创建推送池失败: %w", err)
	}
	defer broadcast.Close()

	store := db.NewEventStore(conn, db.NewContentFilter(conn))
	engine := services.NewModerationService(store, broadcast, cfg.Moderation.AutoMode, logger)
	broadcast.SetSnapshot(engine.DashboardSnapshot)

	tokens := services.NewTokenService(services.NewHeliusService(cfg.Helius, logger), logger)

	tasks, err := task.NewManager(logger)
	if err != nil {
		return err
	}
	if err := tasks.RegisterDefaults(cfg.Task, store, broadcast); err != nil {
		return err
	}
	tasks.Start()
	defer tasks.Stop()

	services.ListenerStart(ctx, cfg, engine, logger)

	router := handler.NewRouter(cfg.Server.Mode, handler.New(conn, engine, tokens, broadcast, logger))
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("服务器启动于端口 %s", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP 服务启动失败: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("收到退出信号，正在关闭")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// websocket 连接已被劫持，Shutdown 不会等待它们
	return srv.Shutdown(shutdownCtx)
}

func runClearEvents(cctx *cli.Context) error {
	_, logger, conn, err := setup(cctx)
	if err != nil {
		return err
	}
	defer logger.Sync()

	n, err := db.NewEventStore(conn, db.NewContentFilter(conn)).ClearAll(cctx.Context)
	if err != nil {
		return err
	}
	fmt.Printf("已删除 %d 个事件\n", n)
	return nil
}

func runListBannedWords(cctx *cli.Context) error {
	_, logger, conn, err := setup(cctx)
	if err != nil {
		return err
	}
	defer logger.Sync()

	words, err := db.ListBannedWords(cctx.Context, conn)
	if err != nil {
		return err
	}
	for _, w := range words {
		state := "active"
		if !w.Active {
			state = "disabled"
		}
		fmt.Printf("%-24s %s\n", w.Word, state)
	}
	return nil
}

func runAddBannedWord(cctx *cli.Context) error {
	if cctx.NArg() != 1 {
		return cli.Exit("用法: banned-words add <word>", 1)
	}
	_, logger, conn, err := setup(cctx)
	if err != nil {
		return err
	}
	defer logger.Sync()

	bw, err := db.AddBannedWord(cctx.Context, conn, cctx.Args().First())
	if err != nil {
		return err
	}
	fmt.Printf("已启用屏蔽词: %s\n", bw.Word)
	return nil
}

func runDisableBannedWord(cctx *cli.Context) error {
	if cctx.NArg() != 1 {
		return cli.Exit("用法: banned-words disable <word>", 1)
	}
	_, logger, conn, err := setup(cctx)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := db.DisableBannedWord(cctx.Context, conn, cctx.Args().First()); err != nil {
		return err
	}
	fmt.Printf("已停用屏蔽词: %s\n", cctx.Args().First())
	return nil
}
