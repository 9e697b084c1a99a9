// newshub 新闻采集服务
//
// Usage:
//
//	newshub serve             # 启动定时采集与读取 API (默认)
//	newshub ingest [api|feed] # 立即运行一次采集周期
//	newshub worker            # 内置摘要 worker, 由 serve 作为子进程启动
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"newshub/config"
	"newshub/internal/fetcher"
	"newshub/internal/handler"
	"newshub/internal/model"
	"newshub/internal/scheduler"
	"newshub/internal/service"
	"newshub/internal/store"
	"newshub/internal/summarizer"
	"newshub/internal/worker"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "newshub",
		Short: "News ingestion service",
		Long:  "newshub 定时从 NewsAPI 与 RSS 源抓取新闻, 经摘要 worker 生成摘要后去重入库, 并提供读取 API。",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "配置文件路径")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(ingestCmd(&configPath))
	rootCmd.AddCommand(workerCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动定时采集与读取 API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath)
		},
	}
}

func ingestCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:       "ingest [api|feed]",
		Short:     "立即运行一次采集周期",
		Long:      "不带参数时依次运行所有已启用的 fetcher, 结果以 JSON 输出。",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"api", "feed"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(*configPath, args)
		},
	}
}

func workerCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:    "worker",
		Short:  "内置摘要 worker (stdin/stdout 行分隔 JSON)",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.Printf("[Worker] ready (mode %s)", cfg.Worker.Mode)
			return worker.Serve(ctx, os.Stdin, os.Stdout, worker.NewSummarizer(cfg.Worker), worker.OptionsFromConfig(cfg))
		},
	}
}

// app 共享的运行时组件
type app struct {
	cfg       *config.Config
	store     *store.Store
	channel   *summarizer.Channel
	ingest    *service.IngestService
	scheduler *scheduler.Scheduler
}

func setup(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// 初始化数据库
	st, err := store.Open(cfg.Database.Path, cfg.Database.Table)
	if err != nil {
		return nil, err
	}
	if cfg.Feed.Mode == "native" {
		if err := st.SeedFeeds(context.Background(), defaultFeeds(cfg.Feed.Sources)); err != nil {
			st.Close()
			return nil, err
		}
	}

	// 启动摘要 worker, 失败即退出
	opts, err := workerOptions(cfg, configPath)
	if err != nil {
		st.Close()
		return nil, err
	}
	ch := summarizer.New(opts)
	if err := ch.Start(); err != nil {
		st.Close()
		return nil, fmt.Errorf("start summarizer worker: %w", err)
	}

	blocklist := fetcher.NewBlocklist(cfg.Blocklist)
	ingest := service.NewIngestService(ch, st, blocklist)
	a := &app{
		cfg:       cfg,
		store:     st,
		channel:   ch,
		ingest:    ingest,
		scheduler: scheduler.NewScheduler(ingest, cfg.Cron),
	}
	if err := a.addJobs(blocklist); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) addJobs(blocklist *fetcher.Blocklist) error {
	if a.cfg.NewsAPI.APIKey != "" {
		api := fetcher.WithBlocklist(fetcher.NewNewsAPIFetcher(a.cfg.NewsAPI), blocklist)
		if err := a.scheduler.AddJob(a.cfg.Cron.APIInterval, api); err != nil {
			return err
		}
	} else {
		log.Println("[Cron] NEWS_API_KEY not set, api fetcher disabled")
	}

	var feed fetcher.Fetcher = fetcher.NewFeedFetcher(a.store, a.cfg.Feed.PerFeedLimit)
	if a.cfg.Feed.Mode == "script" {
		feed = fetcher.NewScriptFetcher(a.cfg.Feed.Script)
	}
	return a.scheduler.AddJob(a.cfg.Cron.FeedInterval, fetcher.WithBlocklist(feed, blocklist))
}

// workerOptions 未配置 summarizer.command 时以自身的 worker 子命令作为 worker
func workerOptions(cfg *config.Config, configPath string) (summarizer.Options, error) {
	opts := summarizer.OptionsFromConfig(cfg.Summarizer)
	if opts.Command == "" {
		self, err := os.Executable()
		if err != nil {
			return opts, fmt.Errorf("locate executable: %w", err)
		}
		opts.Command = self
		opts.Args = []string{"worker", "--config", configPath}
		return opts, nil
	}
	if len(opts.Args) == 0 {
		if fields := strings.Fields(opts.Command); len(fields) > 1 {
			opts.Command, opts.Args = fields[0], fields[1:]
		}
	}
	return opts, nil
}

func defaultFeeds(sources []config.FeedSource) []model.Feed {
	feeds := make([]model.Feed, 0, len(sources))
	for _, s := range sources {
		feeds = append(feeds, model.Feed{Name: s.Name, URL: s.URL, Enabled: true})
	}
	return feeds
}

func (a *app) close() {
	a.channel.Close()
	a.store.Close()
}

func runServe(configPath string) error {
	a, err := setup(configPath)
	if err != nil {
		return err
	}
	defer a.close()

	// 启动定时任务
	a.scheduler.Start()

	status := service.NewStatusService(a.store, a.ingest, a.channel)
	status.SetScheduler(a.scheduler)
	news := service.NewNewsService(a.store, a.cfg.News.MaxAge, a.cfg.News.CacheTTL)

	// 初始化Gin
	gin.SetMode(a.cfg.Server.Mode)
	r := gin.Default()

	// 注册路由
	h := handler.NewHandler(news, status, a.store, a.cfg.News.PageSize)
	h.SetScheduler(a.scheduler)
	h.RegisterRoutes(r)

	srv := &http.Server{Addr: a.cfg.GetServerAddress(), Handler: r}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		log.Println("Shutting down...")
	case err := <-errCh:
		a.scheduler.Stop()
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[API] shutdown: %v", err)
	}
	a.scheduler.Stop()
	return nil
}

func runIngest(configPath string, args []string) error {
	a, err := setup(configPath)
	if err != nil {
		return err
	}
	defer a.close()

	names := args
	if len(names) == 0 {
		names = a.scheduler.Jobs()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reports := make([]service.CycleReport, 0, len(names))
	var errs []error
	for _, name := range names {
		report, err := a.scheduler.RunNow(ctx, name)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		if report.RunID != "" {
			reports = append(reports, report)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reports); err != nil {
		return err
	}
	return errors.Join(errs...)
}
