package cron

import (
	"log"
	"os"
	"path/filepath"
	"time"
)

// Service 定时清理过期的媒体文件
type Service struct {
	uploadDir   string
	expireHours int
	stopChan    chan struct{}
}

func NewService(uploadDir string, expireHours int) *Service {
	return &Service{
		uploadDir:   uploadDir,
		expireHours: expireHours,
		stopChan:    make(chan struct{}),
	}
}

// Start 启动定时任务
func (s *Service) Start() {
	go s.runCleanup()
	log.Println("Cron service started (media cleanup)")
}

// Stop 停止定时任务
func (s *Service) Stop() {
	close(s.stopChan)
	log.Println("Cron service stopped")
}

// runCleanup 每小时执行一次清理
func (s *Service) runCleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			cleaned := CleanupMediaDir(s.uploadDir, s.expireDuration())
			if cleaned > 0 {
				log.Printf("Cleanup summary: media files removed=%d", cleaned)
			}
		}
	}
}

func (s *Service) expireDuration() time.Duration {
	hours := s.expireHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// CleanupMediaDir 删除目录下超过保留时长的媒体文件，返回删除数量
// 原始上传和转码产物都按修改时间判断
func CleanupMediaDir(dir string, expireDuration time.Duration) int {
	if dir == "" {
		return 0
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Printf("Cleanup media: failed to read dir %s: %v", dir, err)
		return 0
	}

	cleaned := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if time.Since(info.ModTime()) > expireDuration {
			filePath := filepath.Join(dir, entry.Name())
			if err := os.Remove(filePath); err != nil {
				log.Printf("Cleanup media: failed to remove %s: %v", filePath, err)
			} else {
				cleaned++
			}
		}
	}
	return cleaned
}
