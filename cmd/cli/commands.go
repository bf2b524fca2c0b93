package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"jira-video-session/internal/adapter"
	"jira-video-session/internal/domain"
	"jira-video-session/internal/port"
	"jira-video-session/internal/usecase"
)

// sessionIndex returns the index as a port, or nil when it could not be opened
func (a *app) sessionIndex() port.SessionIndex {
	if a.index == nil {
		return nil
	}
	return a.index
}

func (a *app) frameStore() *usecase.FrameStore {
	return usecase.NewFrameStore(a.store, a.cache, a.remote, a.sessionIndex()).
		WithFetchTimeout(a.cfg.Service.Timeout)
}

func newFlagSet(name, synopsis string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "사용법: jvs %s %s\n\n옵션:\n", name, synopsis)
		fs.PrintDefaults()
	}
	return fs
}

// cmdSubmit submits one video, or every video listed in a batch file
func (a *app) cmdSubmit(ctx context.Context, args []string) error {
	fs := newFlagSet("submit", "[옵션] <비디오 경로> | --batch <파일경로>")
	batchFile := fs.String("batch", "", "비디오 경로 목록 파일로 일괄 처리 (한 줄에 하나)")
	apiURL := fs.String("api-url", "", "원격 서비스 URL (config.ini의 service.url 대신 지정)")
	maxFrames := fs.Int("max-frames", a.cfg.Service.MaxFrames, "추출할 최대 프레임 수 (0: 서비스 기본값)")
	skipTranscription := fs.Bool("skip-transcription", a.cfg.Service.SkipTranscription, "음성 인식 생략")
	timeout := fs.Duration("timeout", a.cfg.Service.Timeout, "요청 제한 시간")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	// 인자 검증: 비디오 경로 또는 --batch 중 하나 필요
	if *batchFile == "" && fs.NArg() != 1 {
		fs.Usage()
		return errUsage
	}

	opts := domain.SubmitOptions{
		MaxFrames:         *maxFrames,
		SkipTranscription: *skipTranscription,
		Timeout:           *timeout,
	}
	uc := usecase.NewSubmitVideoUseCase(a.remote, adapter.NewMimeVideoInspector(), a.store, a.sessionIndex())

	if *batchFile != "" {
		return submitBatch(ctx, *batchFile, *apiURL, opts, uc)
	}
	return submitOne(ctx, fs.Arg(0), *apiURL, opts, uc)
}

// submitOne runs the whole submission of one video and prints the outcome
func submitOne(ctx context.Context, videoPath, apiURL string, opts domain.SubmitOptions, uc *usecase.SubmitVideoUseCase) error {
	fmt.Printf("\n━━━ 처리 시작: %s ━━━\n", videoPath)

	session, err := uc.Execute(ctx, videoPath, apiURL, opts, func(progress float64, status string) {
		fmt.Printf("  [%3.0f%%] %s\n", progress*100, status)
	})
	if err != nil {
		var submitErr *domain.SubmitError
		if errors.As(err, &submitErr) && submitErr.Retryable() {
			return fmt.Errorf("처리 실패 (재시도 가능): %w", err)
		}
		return fmt.Errorf("처리 실패: %w", err)
	}

	fmt.Printf("  ✓ 세션 저장 완료: %s (%s, 프레임 %d개)\n", session.SessionID, session.Status, len(session.Frames))
	for _, report := range session.Errors {
		fmt.Printf("  ! %s/%s: %s\n", report.Stage, report.Kind, report.Message)
	}
	return nil
}

// submitBatch reads video paths from a file and submits them one by one
func submitBatch(ctx context.Context, filePath, apiURL string, opts domain.SubmitOptions, uc *usecase.SubmitVideoUseCase) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("배치 파일 열기 실패: %w", err)
	}
	defer f.Close()

	var videos []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		// 빈 줄, 주석 무시
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		videos = append(videos, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("배치 파일 읽기 실패: %w", err)
	}

	if len(videos) == 0 {
		return fmt.Errorf("배치 파일에 처리할 비디오가 없습니다: %s", filePath)
	}

	fmt.Printf("총 %d건 처리 예정\n", len(videos))

	successCount := 0
	failCount := 0

	for i, video := range videos {
		if ctx.Err() != nil {
			break
		}
		fmt.Printf("\n[%d/%d] ", i+1, len(videos))
		if err := submitOne(ctx, video, apiURL, opts, uc); err != nil {
			fmt.Fprintf(os.Stderr, "  ✗ 실패: %v\n", err)
			failCount++
		} else {
			successCount++
		}
	}

	fmt.Printf("\n━━━ 배치 처리 완료 ━━━\n")
	fmt.Printf("  성공: %d건\n", successCount)
	fmt.Printf("  실패: %d건\n", failCount)
	fmt.Printf("  합계: %d건\n", len(videos))

	if failCount > 0 {
		return fmt.Errorf("%d건 처리 실패", failCount)
	}
	if ctx.Err() != nil {
		return fmt.Errorf("중단됨: %w", ctx.Err())
	}
	return nil
}

// cmdFrame materializes one frame and optionally copies it elsewhere
func (a *app) cmdFrame(ctx context.Context, args []string) error {
	fs := newFlagSet("frame", "[--out 파일] <세션ID> <프레임ID>")
	out := fs.String("out", "", "프레임 이미지를 복사할 경로")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return errUsage
	}
	sessionID, frameID := fs.Arg(0), fs.Arg(1)

	data, err := a.frameStore().Get(ctx, sessionID, frameID)
	if err != nil {
		return fmt.Errorf("프레임 가져오기 실패: %w", err)
	}

	session, err := a.store.Load(sessionID)
	if err != nil {
		return err
	}
	localPath := a.store.ResolvePath(session.Frames[session.FindFrame(frameID)].LocalPath)
	fmt.Printf("✓ %s/%s: %s (%d bytes)\n", sessionID, frameID, localPath, len(data))

	if *out != "" {
		if err := os.MkdirAll(filepath.Dir(*out), 0755); err != nil {
			return fmt.Errorf("출력 디렉토리 생성 실패: %w", err)
		}
		if err := os.WriteFile(*out, data, 0644); err != nil {
			return fmt.Errorf("프레임 저장 실패: %w", err)
		}
		fmt.Printf("  → %s\n", *out)
	}
	return nil
}

// cmdPrepare builds the attachment manifest of a session
func (a *app) cmdPrepare(ctx context.Context, args []string) error {
	fs := newFlagSet("prepare", "[--frames a,b] [--out 디렉토리] [--publish] <세션ID>")
	frames := fs.String("frames", "", "첨부할 프레임 ID 목록 (쉼표 구분, 기본: 전체)")
	out := fs.String("out", "", "manifest 출력 디렉토리 (기본: 세션 디렉토리)")
	publish := fs.Bool("publish", a.cfg.Publish.Enabled, "manifest와 프레임을 S3 호환 저장소에 업로드")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errUsage
	}
	sessionID := fs.Arg(0)

	sel := domain.AllFrames()
	if *frames != "" {
		var ids []string
		for _, id := range strings.Split(*frames, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		sel = domain.SelectFrames(ids...)
	}

	uc := usecase.NewPrepareAttachmentsUseCase(a.store, a.frameStore())
	manifest, prepErr := uc.Execute(ctx, sessionID, sel)
	if manifest == nil {
		return fmt.Errorf("첨부 준비 실패: %w", prepErr)
	}

	var publisher port.ManifestPublisher
	if *publish {
		if a.cfg.Publish.Endpoint == "" {
			return fmt.Errorf("publish.endpoint가 설정되지 않았습니다")
		}
		minioPublisher, err := adapter.NewMinioPublisher(adapter.PublisherConfig{
			Endpoint:  a.cfg.Publish.Endpoint,
			AccessKey: a.cfg.Publish.AccessKey,
			SecretKey: a.cfg.Publish.SecretKey,
			Bucket:    a.cfg.Publish.Bucket,
			Prefix:    a.cfg.Publish.Prefix,
			UseSSL:    a.cfg.Publish.UseSSL,
		})
		if err != nil {
			return err
		}
		publisher = minioPublisher
	}

	dir := *out
	if dir == "" {
		dir = a.store.SessionDir(sessionID)
	}
	files, location, err := usecase.ExportManifest(ctx, manifest, adapter.NewManifestGenerator(), dir, publisher)
	for _, f := range files {
		fmt.Printf("  ✓ %s\n", f)
	}
	if location != "" {
		fmt.Printf("  ✓ 업로드 완료: %s\n", location)
	}
	if err != nil {
		return err
	}

	fmt.Printf("\n프레임 %d개 준비 완료\n", len(manifest.Entries))
	if prepErr != nil {
		return fmt.Errorf("일부 프레임 준비 실패: %w", prepErr)
	}
	return nil
}

// cmdList prints the indexed sessions, newest first
func (a *app) cmdList(args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	if a.index == nil {
		return fmt.Errorf("세션 인덱스를 사용할 수 없습니다: %s", a.cfg.IndexPath())
	}

	sessions, err := a.index.ListSessions()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("저장된 세션이 없습니다.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tSTATUS\tFRAMES\tTRANSCRIPT\tCREATED\tVIDEO")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%d\t%v\t%s\t%s\n",
			s.SessionID, s.Status, s.FrameCount, s.HasTranscription,
			s.CreatedAt.Local().Format(time.DateTime), s.VideoSourcePath)
	}
	return w.Flush()
}

// cmdShow prints one session record with its materialized frames
func (a *app) cmdShow(args []string) error {
	if len(args) != 1 {
		return errUsage
	}

	session, err := a.store.Load(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Session:   %s\n", session.SessionID)
	fmt.Printf("Status:    %s\n", session.Status)
	fmt.Printf("Video:     %s\n", session.VideoSourcePath)
	fmt.Printf("Created:   %s\n", session.CreatedAt.Local().Format(time.DateTime))
	fmt.Printf("Record:    %s\n", a.store.RecordPath(session.SessionID))

	sizes := make(map[string]int64)
	if a.index != nil {
		if summary, err := a.index.GetSession(session.SessionID); err == nil {
			fmt.Printf("Indexed:   %s\n", summary.IndexedAt.Local().Format(time.DateTime))
		}
		if materialized, err := a.index.ListMaterializations(session.SessionID); err == nil {
			for _, m := range materialized {
				sizes[m.FrameID] = m.SizeBytes
			}
		}
	}

	fmt.Printf("\nFrames (%d):\n", len(session.Frames))
	for _, f := range session.Frames {
		local := a.store.ResolvePath(f.LocalPath)
		if local == "" {
			local = "-"
		}
		if size, ok := sizes[f.FrameID]; ok {
			local = fmt.Sprintf("%s (%d bytes)", local, size)
		}
		fmt.Printf("  %-12s %s\n", f.FrameID, local)
	}

	switch {
	case session.Transcription == nil:
		fmt.Println("\nTranscript: (none)")
	case len(session.Transcription.Segments) == 0:
		fmt.Println("\nTranscript: (no speech)")
	default:
		fmt.Printf("\nTranscript:\n  %s\n", session.Transcription.FullText)
	}

	for _, report := range session.Errors {
		fmt.Printf("\n! %s/%s (recoverable=%v): %s\n", report.Stage, report.Kind, report.Recoverable, report.Message)
	}
	return nil
}
