package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"xdao.co/wxmsg/archive"
	"xdao.co/wxmsg/config"
	"xdao.co/wxmsg/internal/logging"
	"xdao.co/wxmsg/messages"
	"xdao.co/wxmsg/notify"
	"xdao.co/wxmsg/pay"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("wxnotifyd", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var configPath, addr string
	fs.StringVar(&configPath, "config", "", "JSON config file")
	fs.StringVar(&addr, "addr", "", "Listen address (overrides config and environment)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.LoadFile(configPath)
		if err != nil {
			fmt.Fprintf(errOut, "config: %v\n", err)
			return 2
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	if addr != "" {
		cfg.HTTPAddr = addr
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	logger, closeLog, err := logging.New(cfg.LogLevel, cfg.LogFile, errOut)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	defer closeLog()
	pay.SetLogger(logger.Named("pay"))

	var recorder *archive.Recorder
	if cfg.Archive != nil {
		store, closeStore, err := cfg.Archive.Open()
		if err != nil {
			logger.Error("open archive", zap.Error(err))
			return 1
		}
		defer closeStore()
		recorder = archive.NewRecorder(store, logger.Named("archive"))
	}

	opts := notify.Options{
		Recorder: recorder,
		Logger:   logger.Named("notify"),
		Messages: logMessages(logger.Named("messages")),
		Payments: logPayments(logger.Named("payments")),
	}
	if cfg.Enabled(config.EndpointWeChat) {
		opts.Token = cfg.Token
	}
	if cfg.Enabled(config.EndpointPay) {
		opts.APIKey = cfg.APIKey
	}
	h := notify.New(opts)
	logger.Info("endpoints enabled", zap.Strings("endpoints", cfg.Endpoints))

	lis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		logger.Error("listen", zap.String("addr", cfg.HTTPAddr), zap.Error(err))
		return 1
	}
	fmt.Fprintf(out, "wxnotifyd listening on %s\n", lis.Addr())
	return serve(ctx, lis, h, logger)
}

func serve(ctx context.Context, lis net.Listener, h http.Handler, logger *zap.Logger) int {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
	done := make(chan error, 1)
	go func() { done <- srv.Serve(lis) }()

	select {
	case err := <-done:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("serve", zap.Error(err))
			return 1
		}
		return 0
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Error("shutdown", zap.Error(err))
		return 1
	}
	return 0
}

// logMessages acknowledges every message without a reply.
func logMessages(logger *zap.Logger) notify.MessageHandler {
	return notify.MessageHandlerFunc(func(_ context.Context, msg messages.Message) (any, error) {
		logger.Info("message",
			zap.String("type", msg.Type()),
			zap.String("from", msg.Source()),
			zap.Int64("msg_id", msg.ID()),
		)
		return nil, nil
	})
}

func logPayments(logger *zap.Logger) notify.PaymentHandler {
	return notify.PaymentHandlerFunc(func(_ context.Context, n notify.Notification) error {
		logger.Info("payment",
			zap.String("out_trade_no", n.OutTradeNo),
			zap.String("transaction_id", n.TransactionID),
			zap.Stringer("amount", n.Amount),
			zap.Bool("paid", n.Paid()),
		)
		return nil
	})
}
