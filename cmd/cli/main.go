package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"jira-video-session/internal/adapter"
	"jira-video-session/internal/config"
	"jira-video-session/internal/logger"
	"jira-video-session/internal/metrics"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

var errUsage = errors.New("usage")

// app bundles the adapters shared by every command
type app struct {
	cfg    *config.Config
	store  *adapter.FileResultStore
	cache  *adapter.FileFrameCache
	index  *adapter.SQLiteRepository
	remote *adapter.RemoteClient
}

func usage() {
	fmt.Fprintf(os.Stderr, "Jira Video Session CLI\n\n")
	fmt.Fprintf(os.Stderr, "사용법:\n")
	fmt.Fprintf(os.Stderr, "  jvs [전역 옵션] submit [옵션] <비디오 경로>\n")
	fmt.Fprintf(os.Stderr, "  jvs [전역 옵션] submit [옵션] --batch <파일경로>\n")
	fmt.Fprintf(os.Stderr, "  jvs [전역 옵션] frame [--out 파일] <세션ID> <프레임ID>\n")
	fmt.Fprintf(os.Stderr, "  jvs [전역 옵션] prepare [--frames a,b] [--out 디렉토리] [--publish] <세션ID>\n")
	fmt.Fprintf(os.Stderr, "  jvs [전역 옵션] list\n")
	fmt.Fprintf(os.Stderr, "  jvs [전역 옵션] show <세션ID>\n\n")
	fmt.Fprintf(os.Stderr, "예시:\n")
	fmt.Fprintf(os.Stderr, "  jvs submit --max-frames 8 ./bug-report.mp4\n")
	fmt.Fprintf(os.Stderr, "  jvs prepare --frames f001,f004 3f2a9c\n\n")
	fmt.Fprintf(os.Stderr, "전역 옵션:\n")
	flag.PrintDefaults()
}

func main() {
	os.Exit(run())
}

func run() int {
	// 전역 플래그 정의
	configPath := flag.String("config", "", "설정 파일 경로 (기본: config.ini → ~/.jira-video-session/config.ini)")
	storageDir := flag.String("storage", "", "세션 저장 디렉토리 (config.ini의 storage.dir 대신 CLI에서 지정)")
	metricsFile := flag.String("metrics-file", "", "종료 시 Prometheus textfile 형식으로 메트릭 기록")
	debug := flag.Bool("debug", false, "디버그 로그 출력")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		return exitUsage
	}

	// 설정 파일 로드
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "설정 파일 로드 실패: %v\n", err)
		return exitFailure
	}

	// CLI 플래그로 설정 오버라이드
	if *storageDir != "" {
		cfg.Storage.Dir = *storageDir
	}
	if *debug || cfg.Log.Debug {
		logger.SetDebugMode(true)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command, args := flag.Arg(0), flag.Args()[1:]
	code := dispatch(ctx, cfg, command, args)

	if *metricsFile != "" {
		if err := metrics.WriteTextfile(*metricsFile); err != nil {
			logger.Warn("metrics export failed", "path", *metricsFile, "error", err)
		}
	}
	return code
}

func dispatch(ctx context.Context, cfg *config.Config, command string, args []string) int {
	needsRemote := command == "submit" || command == "frame" || command == "prepare"
	switch command {
	case "submit", "frame", "prepare", "list", "show":
	default:
		fmt.Fprintf(os.Stderr, "알 수 없는 명령: %s\n\n", command)
		flag.Usage()
		return exitUsage
	}

	a, err := newApp(cfg, needsRemote)
	if err != nil {
		fmt.Fprintf(os.Stderr, "초기화 실패: %v\n", err)
		return exitFailure
	}
	defer a.close()

	switch command {
	case "submit":
		err = a.cmdSubmit(ctx, args)
	case "frame":
		err = a.cmdFrame(ctx, args)
	case "prepare":
		err = a.cmdPrepare(ctx, args)
	case "list":
		err = a.cmdList(args)
	case "show":
		err = a.cmdShow(args)
	}

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		return exitUsage
	default:
		fmt.Fprintf(os.Stderr, "\n오류: %v\n", err)
		return exitFailure
	}
}

func newApp(cfg *config.Config, needsRemote bool) (*app, error) {
	// 설정 검증
	if needsRemote {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("설정 오류: %w", err)
		}
	} else if cfg.Storage.Dir == "" {
		return nil, fmt.Errorf("설정 오류: storage.dir is required")
	}

	store, err := adapter.NewFileResultStore(cfg.Storage.Dir)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		store:  store,
		cache:  adapter.NewFileFrameCache(store),
		remote: adapter.NewRemoteClient(cfg.Service.URL, cfg.Service.APIKey),
	}

	// The index is best effort; the JSON records stay authoritative
	index, err := adapter.NewSQLiteRepository(cfg.IndexPath())
	if err != nil {
		logger.Warn("session index unavailable", "path", cfg.IndexPath(), "error", err)
	} else {
		a.index = index
	}
	return a, nil
}

func (a *app) close() {
	if a.index != nil {
		a.index.Close()
	}
}
