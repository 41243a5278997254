package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PortalSync/internal/adapter/crm"
	"PortalSync/internal/api"
	"PortalSync/internal/config"
	"PortalSync/internal/database"
	"PortalSync/internal/interfaces"
	"PortalSync/internal/model"
	"PortalSync/internal/repository"
	"PortalSync/internal/service"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// shutdownTimeout 退出时等待正在进行的同步与 HTTP 请求的最长时间
const shutdownTimeout = 30 * time.Second

func main() {
	once := flag.Bool("once", false, "同步一轮后退出")
	configDir := flag.String("config", "./config", "config.yaml 所在目录")
	flag.Parse()

	// 1. 加载配置文件
	cfg, err := config.LoadConfigFrom(*configDir)
	if err != nil {
		log.Fatalf("加载配置文件失败: %v", err)
	}

	// 2. 初始化日志
	logrusLogger := newLogger(cfg.Log)
	logrusLogger.Info("配置文件加载成功")

	// 3. 连接 PostgreSQL 并迁移表结构，失败即退出
	db, err := database.Open(&cfg.Database, logrusLogger)
	if err != nil {
		logrusLogger.Fatalf("初始化数据库失败: %v", err)
	}

	// 4. 装配仓储、远端客户端与服务
	repos := repository.NewRepositories(db)
	crmClient := crm.NewCRMClient(&cfg.CRM, logrusLogger)
	clock := interfaces.SystemClock{}
	syncService, err := service.NewSyncService(repos, crmClient, cfg, clock, logrusLogger)
	if err != nil {
		logrusLogger.Fatalf("初始化同步服务失败: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. 单次模式：跑一轮后退出，无法读取租户等致命错误以非零码退出
	if *once {
		result, err := syncService.RunOnce(ctx, model.TriggerManual)
		if err != nil {
			logrusLogger.Fatalf("同步失败: %v", err)
		}
		logrusLogger.Infof("同步结束：成功 %d，失败 %d", result.Succeeded, result.Failed)
		return
	}

	// 6. 常驻模式：定时同步
	loc, _ := cfg.Sync.Location()
	scheduler := service.NewScheduler(cfg.Sync.Cron, loc, syncService, logrusLogger)
	if err := scheduler.Start(ctx); err != nil {
		logrusLogger.Fatalf("启动定时同步失败: %v", err)
	}

	// 7. 管理接口（手动触发、同步状态、看板查询）
	var srv *http.Server
	if cfg.Server.Enabled {
		gin.SetMode(cfg.Server.Mode)
		r := gin.Default()

		// 注册ppof 方便调试和监测性能问题
		pprof.Register(r)
		logrusLogger.Infof("Gin运行模式: %s", cfg.Server.Mode)

		statusService := service.NewStatusService(repos.Runs, clock, cfg.Sync.StaleAfter)
		api.RegisterRoutes(r,
			api.NewSyncHandler(syncService, statusService, logrusLogger),
			api.NewRollupHandler(repos.Leads, repos.Pipeline, logrusLogger),
		)

		srv = &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: r}
		go func() {
			logrusLogger.Infof("服务启动成功，端口：%d", cfg.Server.Port)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logrusLogger.Fatalf("启动服务失败: %v", err)
			}
		}()
	}

	// 8. 等待退出信号，停止调度并等待进行中的同步结束
	<-ctx.Done()
	logrusLogger.Info("收到退出信号，正在停止…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logrusLogger.WithError(err).Warn("关闭HTTP服务失败")
		}
	}
	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		logrusLogger.Warn("等待同步结束超时")
	}
	logrusLogger.Info("已退出")
}

// newLogger 按配置设置级别与格式
func newLogger(cfg config.LogConfig) *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
