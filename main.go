package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hook-relay/hook-relay/internal/config"
	"github.com/hook-relay/hook-relay/internal/logging"
	"github.com/hook-relay/hook-relay/internal/proxy"
	"github.com/hook-relay/hook-relay/internal/server"
	"github.com/hook-relay/hook-relay/internal/server/routes"
	"github.com/hook-relay/hook-relay/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
	// helpShown 表示 cobra 已输出帮助信息，无需继续执行。
	helpShown bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.helpShown {
		return 0
	}
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["base_url_configured"] = cfg.Backend.HasBaseURL()
		fields["routing_variant"] = string(cfg.Backend.Variant())
		fields["retry_policy"] = cfg.Backend.Policy().Name
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动顺序：配置快照 → 上游 client → Dispatcher → Fiber server，
	// 所有请求共享同一个 client 与 Store，热加载只替换 Store 中的快照。
	store := config.NewStore(cfg)
	httpClient := server.NewUpstreamClient(cfg)
	dispatcher := proxy.NewDispatcher(proxy.NewForwarder(httpClient), logger)
	handler := proxy.NewHandler(dispatcher, store, logger)

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["base_url_configured"] = cfg.Backend.HasBaseURL()
	fields["routing_variant"] = string(cfg.Backend.Variant())
	fields["retry_policy"] = cfg.Backend.Policy().Name
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")
	if !cfg.Backend.HasBaseURL() {
		logger.WithFields(logging.BaseFields("startup", opts.configPath)).Warn("BaseURL 未配置，所有转发请求将返回 500")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.configPath != "" {
		watcher, err := config.NewWatcher(opts.configPath, store, logger)
		if err != nil {
			fmt.Fprintf(stdErr, "初始化配置监听失败: %v\n", err)
			return 1
		}
		if err := watcher.Start(ctx); err != nil {
			fmt.Fprintf(stdErr, "启动配置监听失败: %v\n", err)
			return 1
		}
		defer func() { _ = watcher.Stop() }()
	}

	if err := startHTTPServer(ctx, cfg, store, handler, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// newRootCommand 构建 cobra 根命令，解析结果写入 opts。
func newRootCommand(opts *cliOptions) *cobra.Command {
	var configFlag string

	cmd := &cobra.Command{
		Use:           "hook-relay",
		Short:         "将请求转发到后端的 test/production webhook，并按策略回退",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := os.Getenv("HOOK_RELAY_CONFIG")
			if configFlag != "" {
				path = configFlag
			}
			opts.configPath = path
			opts.helpShown = false
			return nil
		},
	}

	cmd.Flags().StringVar(&configFlag, "config", "", "配置文件路径（可被 HOOK_RELAY_CONFIG 指定；为空时仅读取环境变量）")
	cmd.Flags().BoolVar(&opts.checkOnly, "check-config", false, "仅校验配置后退出")
	cmd.Flags().BoolVar(&opts.showVersion, "version", false, "显示版本信息")
	return cmd
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	// RunE 未执行（例如 --help）时保持 helpShown。
	opts := cliOptions{helpShown: true}

	cmd := newRootCommand(&opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdOut)
	cmd.SetErr(stdErr)

	if err := cmd.Execute(); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}
	return opts, nil
}

func startHTTPServer(ctx context.Context, cfg *config.Config, store *config.Store, proxyHandler server.ProxyHandler, logger *logrus.Logger) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Proxy:      proxyHandler,
		ListenPort: port,
		BodyLimit:  cfg.Global.BodyLimit,
	})
	if err != nil {
		return err
	}
	routes.RegisterStatusRoutes(app, store)

	go func() {
		<-ctx.Done()
		if err := app.Shutdown(); err != nil {
			logger.WithField("action", "shutdown").WithError(err).Warn("Fiber 服务关闭失败")
		}
	}()

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	err = app.Listen(fmt.Sprintf(":%d", port), fiber.ListenConfig{DisableStartupMessage: true})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.WithField("action", "shutdown").Info("Fiber 服务已停止")
	return nil
}
