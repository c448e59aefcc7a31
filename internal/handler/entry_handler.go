// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"calling-journal-go/internal/service"
	"calling-journal-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// EntryHandler 负责处理日记条目相关的 API 请求。
type EntryHandler struct {
	entryService  service.EntryService
	searchService service.SearchService
}

// NewEntryHandler 创建一个新的 EntryHandler 实例。
func NewEntryHandler(entryService service.EntryService, searchService service.SearchService) *EntryHandler {
	return &EntryHandler{
		entryService:  entryService,
		searchService: searchService,
	}
}

// CreateEntryRequest 定义了创建条目 API 的请求体结构。
type CreateEntryRequest struct {
	Date      string `json:"date" binding:"required"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Mood      string `json:"mood"`
	Duration  string `json:"duration"`
	AudioURL  string `json:"audio_url"`
	IsStarred bool   `json:"is_starred"`
	IsHidden  bool   `json:"is_hidden"`
}

// UpdateEntryRequest 定义了更新条目 API 的请求体结构，缺省字段不变更。
type UpdateEntryRequest struct {
	Title     *string `json:"title"`
	Content   *string `json:"content"`
	Mood      *string `json:"mood"`
	Duration  *string `json:"duration"`
	AudioURL  *string `json:"audio_url"`
	IsStarred *bool   `json:"is_starred"`
	IsHidden  *bool   `json:"is_hidden"`
}

// List 处理 GET /entries/ 请求，支持 skip/limit 分页。
func (h *EntryHandler) List(c *gin.Context) {
	user := currentUser(c)
	skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	entries, err := h.entryService.List(user.ID, skip, limit)
	if err != nil {
		log.Error("List entries failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list entries"})
		return
	}
	c.JSON(http.StatusOK, entries)
}

// Get 处理 GET /entries/:date 请求。
// 404 对客户端意味着“这一天还没写”，不是异常。
func (h *EntryHandler) Get(c *gin.Context) {
	user := currentUser(c)
	date := c.Param("date")

	entry, err := h.entryService.Get(user.ID, date)
	if err != nil {
		h.writeEntryError(c, date, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// Create 处理 POST /entries/ 请求。
// 同一天已有条目时返回 400，调用方应改走 PUT 更新。
func (h *EntryHandler) Create(c *gin.Context) {
	user := currentUser(c)
	var req CreateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entry payload"})
		return
	}

	entry, err := h.entryService.Create(user.ID, service.EntryInput{
		Date:      req.Date,
		Title:     req.Title,
		Content:   req.Content,
		Mood:      req.Mood,
		Duration:  req.Duration,
		AudioURL:  req.AudioURL,
		IsStarred: req.IsStarred,
		IsHidden:  req.IsHidden,
	})
	if err != nil {
		if errors.Is(err, service.ErrEntryExists) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Entry already exists for this date"})
			return
		}
		h.writeEntryError(c, req.Date, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// Update 处理 PUT /entries/:date 请求。
func (h *EntryHandler) Update(c *gin.Context) {
	user := currentUser(c)
	date := c.Param("date")
	var req UpdateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entry payload"})
		return
	}

	entry, err := h.entryService.Update(user.ID, date, service.EntryUpdate{
		Title:     req.Title,
		Content:   req.Content,
		Mood:      req.Mood,
		Duration:  req.Duration,
		AudioURL:  req.AudioURL,
		IsStarred: req.IsStarred,
		IsHidden:  req.IsHidden,
	})
	if err != nil {
		h.writeEntryError(c, date, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// Delete 处理 DELETE /entries/:date 请求。
func (h *EntryHandler) Delete(c *gin.Context) {
	user := currentUser(c)
	date := c.Param("date")

	if err := h.entryService.Delete(user.ID, date); err != nil {
		h.writeEntryError(c, date, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Entry deleted"})
}

// Search 处理 GET /entries/search 请求，对用户自己的条目做全文检索。
func (h *EntryHandler) Search(c *gin.Context) {
	user := currentUser(c)
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'q' is required"})
		return
	}
	topK, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	results, err := h.searchService.SearchEntries(c.Request.Context(), user.ID, query, topK)
	if err != nil {
		log.Error("Search entries failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	c.JSON(http.StatusOK, results)
}

// UploadAudio 处理 POST /entries/:date/audio 请求。
// 接收 multipart 音频文件，存入对象存储并回写条目的 audio_url。
func (h *EntryHandler) UploadAudio(c *gin.Context) {
	user := currentUser(c)
	date := c.Param("date")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "audio file is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		log.Error("UploadAudio: failed to open uploaded file", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read uploaded file"})
		return
	}
	defer file.Close()

	entry, presignedURL, err := h.entryService.AttachAudio(
		c.Request.Context(),
		user.ID,
		date,
		fileHeader.Filename,
		file,
		fileHeader.Size,
		fileHeader.Header.Get("Content-Type"),
	)
	if err != nil {
		h.writeEntryError(c, date, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entry":        entry,
		"download_url": presignedURL,
	})
}

// writeEntryError 把条目服务的业务错误映射为 HTTP 状态码。
func (h *EntryHandler) writeEntryError(c *gin.Context, date string, err error) {
	switch {
	case errors.Is(err, service.ErrEntryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Entry not found"})
	case errors.Is(err, service.ErrInvalidDate):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date format. Use YYYY-MM-DD"})
	default:
		log.Errorf("Entry operation failed for date '%s': %v", date, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
