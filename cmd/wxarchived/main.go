package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"xdao.co/wxmsg/archive"
	"xdao.co/wxmsg/archive/archiveconfig"
	"xdao.co/wxmsg/archive/grpcarchive"
	"xdao.co/wxmsg/archive/localfs"
	"xdao.co/wxmsg/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("wxarchived", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var listen, dir, configPath, logLevel, logFile string
	var maxMsgBytes int
	var listBackends bool
	fs.StringVar(&listen, "listen", "127.0.0.1:7443", "Listen address")
	fs.StringVar(&dir, "dir", "", "Serve a local archive directory")
	fs.StringVar(&configPath, "config", "", "Serve the stores described by an archive JSON config")
	fs.StringVar(&logLevel, "log-level", "info", "Log level")
	fs.StringVar(&logFile, "log-file", "", "Also log JSON to this rotated file")
	fs.IntVar(&maxMsgBytes, "max-msg-bytes", 0, "Max gRPC message size in bytes; 0 uses grpc defaults")
	fs.BoolVar(&listBackends, "list-backends", false, "List supported backends and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if listBackends {
		_, _ = fmt.Fprintln(out, strings.Join(archiveconfig.Backends(), "\n"))
		return 0
	}

	store, closeStore, err := openStore(dir, configPath)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	defer closeStore()

	logger, closeLog, err := logging.New(logLevel, logFile, errOut)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	defer closeLog()

	lis, err := net.Listen("tcp", listen)
	if err != nil {
		logger.Error("listen", zap.String("addr", listen), zap.Error(err))
		return 1
	}

	var opts []grpc.ServerOption
	if maxMsgBytes > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(maxMsgBytes), grpc.MaxSendMsgSize(maxMsgBytes))
	}
	s := grpc.NewServer(opts...)
	grpcarchive.RegisterArchiveServer(s, &grpcarchive.Server{Store: store, Logger: logger.Named("grpc")})

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		s.GracefulStop()
	}()

	fmt.Fprintf(out, "wxarchived listening on %s\n", lis.Addr())
	if err := s.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		logger.Error("serve", zap.Error(err))
		return 1
	}
	return 0
}

func openStore(dir, configPath string) (archive.Store, func() error, error) {
	switch {
	case dir != "" && configPath != "":
		return nil, nil, errors.New("wxarchived: --dir and --config are mutually exclusive")
	case dir != "":
		s, err := localfs.New(dir)
		if err != nil {
			return nil, nil, err
		}
		return s, func() error { return nil }, nil
	case configPath != "":
		cfg, err := archiveconfig.LoadFile(configPath)
		if err != nil {
			return nil, nil, err
		}
		return cfg.Open()
	default:
		return nil, nil, errors.New("wxarchived: one of --dir or --config is required")
	}
}
