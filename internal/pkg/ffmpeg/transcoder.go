package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ConversionResult 转码产物
type ConversionResult struct {
	OutputPath string
	Duration   *float64 // 秒，未能解析时为 nil
}

// Transcoder 调用 ffmpeg 将上传视频转为浏览器可播放的编码
// 转码失败是被容忍的降级路径：返回 nil 而不是 error，流水线继续使用原始文件
type Transcoder struct {
	Bin       string // ffmpeg 可执行文件，空则使用 PATH 中的 ffmpeg
	OutputDir string
}

func NewTranscoder(bin, outputDir string) *Transcoder {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &Transcoder{
		Bin:       bin,
		OutputDir: outputDir,
	}
}

// Normalize 将源文件转为 H.264/AAC 的 web 播放格式，并顺带解析时长
// 任何失败（启动失败、非零退出、产物缺失或为空）都返回 nil
func (t *Transcoder) Normalize(ctx context.Context, sourcePath string, analysisID int64) *ConversionResult {
	webFilename := fmt.Sprintf("%d_web_%d.mp4", analysisID, time.Now().UnixMilli())
	webPath := filepath.Join(t.OutputDir, webFilename)

	args := []string{
		"-i", sourcePath,
		"-c:v", "libx264",
		"-preset", "medium",
		"-profile:v", "baseline",
		"-level", "3.0",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		"-y",
		webPath,
	}

	cmd := exec.CommandContext(ctx, t.Bin, args...)

	// ffmpeg 的诊断输出走 stderr，在进程退出前逐行解析时长
	stderr, err := cmd.StderrPipe()
	if err != nil {
		log.Printf("Analysis %d: failed to open ffmpeg stderr: %v", analysisID, err)
		return nil
	}

	if err := cmd.Start(); err != nil {
		log.Printf("Analysis %d: failed to start ffmpeg: %v", analysisID, err)
		return nil
	}

	var duration *float64
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if duration == nil {
			if d, ok := parseDurationLine(line); ok {
				duration = &d
			}
		}
	}

	if err := cmd.Wait(); err != nil {
		log.Printf("Analysis %d: ffmpeg conversion failed: %v", analysisID, err)
		return nil
	}

	info, err := os.Stat(webPath)
	if err != nil || info.Size() == 0 {
		log.Printf("Analysis %d: ffmpeg output missing or empty: %s", analysisID, webPath)
		return nil
	}

	log.Printf("Analysis %d: ffmpeg conversion done, output=%s size=%d", analysisID, webFilename, info.Size())

	return &ConversionResult{
		OutputPath: webPath,
		Duration:   duration,
	}
}

// parseDurationLine 从 ffmpeg 诊断行解析 "Duration: HH:MM:SS.cc"
func parseDurationLine(line string) (float64, bool) {
	idx := strings.Index(line, "Duration:")
	if idx < 0 {
		return 0, false
	}

	rest := line[idx+len("Duration:"):]
	if comma := strings.Index(rest, ","); comma >= 0 {
		rest = rest[:comma]
	}
	rest = strings.TrimSpace(rest)

	parts := strings.Split(rest, ":")
	if len(parts) != 3 {
		return 0, false
	}

	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, false
	}

	return float64(hours)*3600 + float64(minutes)*60 + seconds, true
}
