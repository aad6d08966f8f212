package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/fakehunters/detect_go_server/config"
	"github.com/fakehunters/detect_go_server/internal/database"
	"github.com/fakehunters/detect_go_server/internal/pkg/cron"
	"github.com/fakehunters/detect_go_server/internal/repository"
)

var (
	dryRun      = flag.Bool("dry-run", true, "Dry run mode, don't actually delete files")
	mediaExpire = flag.Int("media-expire", 0, "Hours to keep media files, 0 uses config value")
	staleAfter  = flag.Int("stale-after", 2, "Hours before a PROCESSING analysis is reported as stale")
)

func main() {
	flag.Parse()

	log.Println("Starting cleanup task...")
	log.Printf("Mode: dry-run=%v", *dryRun)

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	expireHours := cfg.Upload.ExpireHours
	if *mediaExpire > 0 {
		expireHours = *mediaExpire
	}
	if expireHours <= 0 {
		expireHours = 24
	}
	expireDuration := time.Duration(expireHours) * time.Hour

	// 1. 巡检滞留任务：进程崩溃会把任务留在 PROCESSING，这里只报告不改写
	reportStaleAnalyses(cfg, time.Duration(*staleAfter)*time.Hour)

	// 2. 清理过期媒体文件
	log.Printf("Cleaning media files older than %d hours in %s", expireHours, cfg.Upload.Dir)

	if *dryRun {
		count, size := scanExpired(cfg.Upload.Dir, expireDuration)
		log.Printf("Would delete %d files (%s)", count, formatSize(size))
		log.Println("DRY RUN MODE - No files were actually deleted")
		log.Println("Run with -dry-run=false to actually delete files")
		return
	}

	cleaned := cron.CleanupMediaDir(cfg.Upload.Dir, expireDuration)
	log.Printf("Cleanup completed, files removed: %d", cleaned)
}

// reportStaleAnalyses 报告长期停留在 PROCESSING 的任务
func reportStaleAnalyses(cfg *config.Config, olderThan time.Duration) {
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Printf("Skipping stale analysis report, database unavailable: %v", err)
		return
	}

	repo := repository.NewAnalysisRepository(db)
	stale, err := repo.ListStaleProcessing(olderThan)
	if err != nil {
		log.Printf("Failed to list stale analyses: %v", err)
		return
	}

	if len(stale) == 0 {
		log.Println("No stale PROCESSING analyses found")
		return
	}

	log.Printf("Found %d stale PROCESSING analyses (older than %s):", len(stale), olderThan)
	for _, a := range stale {
		log.Printf("  - analysis %d %q created at %s", a.ID, a.Title, a.CreatedAt.Format(time.RFC3339))
	}
}

// scanExpired 统计将被删除的文件数量和总大小
func scanExpired(dir string, expireDuration time.Duration) (int, int64) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Printf("Failed to read dir %s: %v", dir, err)
		return 0, 0
	}

	count := 0
	var size int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if time.Since(info.ModTime()) > expireDuration {
			log.Printf("  - %s (%s, %s old)",
				entry.Name(),
				formatSize(info.Size()),
				time.Since(info.ModTime()).Round(time.Hour))
			count++
			size += info.Size()
		}
	}
	return count, size
}

// formatSize 格式化文件大小
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(1024), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
