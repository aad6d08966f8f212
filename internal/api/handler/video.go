package handler

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fakehunters/detect_go_server/internal/pkg/response"
	"github.com/fakehunters/detect_go_server/internal/service"
)

type VideoHandler struct {
	videoService *service.VideoService
}

func NewVideoHandler(videoService *service.VideoService) *VideoHandler {
	return &VideoHandler{
		videoService: videoService,
	}
}

// Analyze 提交视频分析
// POST /api/v1/video/analyze
func (h *VideoHandler) Analyze(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.ParamError(c, service.ErrFileRequired.Error())
		return
	}
	defer file.Close()

	resp, err := h.videoService.Submit(c.Request.Context(), file, header)
	if err != nil {
		switch err {
		case service.ErrFileRequired, service.ErrFileTooLarge, service.ErrInvalidFormat:
			response.ParamError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "提交成功", resp)
}

// Get 获取分析详情
// GET /api/v1/video/analysis/:id
func (h *VideoHandler) Get(c *gin.Context) {
	analysisID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的分析ID")
		return
	}

	detail, err := h.videoService.GetAnalysis(analysisID)
	if err != nil {
		switch err {
		case service.ErrAnalysisNotFound:
			response.NotFoundError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, detail)
}

// Progress 查询分析进度
// GET /api/v1/video/progress/:id
func (h *VideoHandler) Progress(c *gin.Context) {
	analysisID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的分析ID")
		return
	}

	snapshot, err := h.videoService.GetProgress(c.Request.Context(), analysisID)
	if err != nil {
		response.ServerError(c, "")
		return
	}
	// 缓存无快照：已过期或从未写入，客户端应回查任务状态
	if snapshot == nil {
		response.NotFoundError(c, "进度信息不存在")
		return
	}

	response.Success(c, snapshot)
}

// GetFile 播放视频文件，支持 HTTP Range 请求
// GET /api/v1/video/files/:id
func (h *VideoHandler) GetFile(c *gin.Context) {
	analysisID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的分析ID")
		return
	}

	path, err := h.videoService.ResolveMediaPath(analysisID)
	if err != nil {
		switch err {
		case service.ErrFileNotFound:
			response.NotFoundError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	f, err := os.Open(path)
	if err != nil {
		log.Printf("Analysis %d: failed to open media file: %v", analysisID, err)
		response.ServerError(c, "")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		response.ServerError(c, "")
		return
	}
	size := info.Size()

	c.Header("Accept-Ranges", "bytes")
	c.Header("Content-Disposition", "inline")

	rangeHeader := c.GetHeader("Range")
	if rangeHeader == "" {
		// 无 Range 请求返回完整文件
		c.DataFromReader(http.StatusOK, size, "video/mp4", f, nil)
		return
	}

	start, end, ok := parseRange(rangeHeader, size)
	if !ok {
		c.Header("Content-Range", fmt.Sprintf("bytes */%d", size))
		c.Status(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	if _, err := f.Seek(start, 0); err != nil {
		response.ServerError(c, "")
		return
	}

	// 响应体必须精确到区间长度，直接给文件句柄会一路拷贝到 EOF
	length := end - start + 1
	c.Header("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	c.DataFromReader(http.StatusPartialContent, length, "video/mp4", io.LimitReader(f, length), nil)
}

// parseRange 解析 Range 头的单个字节区间
// 支持 bytes=start-end、bytes=start-、bytes=-suffix 三种形式
// 结束位置超出文件大小时收敛到末尾，无法满足的区间返回 ok=false
func parseRange(header string, size int64) (start, end int64, ok bool) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return 0, 0, false
	}

	spec := strings.TrimPrefix(header, prefix)
	// 多区间请求不支持，只取第一段
	if idx := strings.Index(spec, ","); idx >= 0 {
		spec = spec[:idx]
	}

	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}

	startStr := strings.TrimSpace(parts[0])
	endStr := strings.TrimSpace(parts[1])

	if startStr == "" {
		// bytes=-N 取末尾 N 字节
		if endStr == "" {
			return 0, 0, false
		}
		suffix, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || suffix <= 0 {
			return 0, 0, false
		}
		if suffix > size {
			suffix = size
		}
		return size - suffix, size - 1, true
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 || start >= size {
		return 0, 0, false
	}

	if endStr == "" {
		return start, size - 1, true
	}

	end, err = strconv.ParseInt(endStr, 10, 64)
	if err != nil || end < start {
		return 0, 0, false
	}
	if end >= size {
		end = size - 1
	}
	return start, end, true
}
