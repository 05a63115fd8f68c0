package assets

import (
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/Transirizo/asset-management/cache"
	"github.com/Transirizo/asset-management/imaging"
	"github.com/Transirizo/asset-management/storage"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	qrcode "github.com/skip2/go-qrcode"
	"gorm.io/gorm"
)

const (
	defaultQRCodeSize = 256
	minQRCodeSize     = 64
	maxQRCodeSize     = 1024
)

// Module 聚合资产服务所需的数据库、对象存储与缓存依赖。
type Module struct {
	db      *gorm.DB
	service *Service
}

// RegisterRoutes 初始化资产模块并注册所有相关路由。
func RegisterRoutes(router *gin.Engine) (*Module, error) {
	db, err := openDatabaseFromEnv()
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}

	images, err := storage.NewImageStorageFromEnv()
	if err != nil {
		return nil, err
	}
	if images == nil {
		log.Printf("assets: MINIO_* not configured, image uploads disabled")
	}

	redisClient, err := cache.NewClientFromEnv()
	if err != nil {
		log.Printf("assets: record cache disabled: %v", err)
		redisClient = nil
	}

	var blobs imaging.BlobStore
	if images != nil {
		blobs = images
	}

	module := newModule(db, blobs, redisClient, maxImagesFromEnv())
	module.mountRoutes(router)
	return module, nil
}

func newModule(db *gorm.DB, blobs imaging.BlobStore, redisClient *redis.Client, maxImages int) *Module {
	return &Module{
		db:      db,
		service: NewService(db, blobs, redisClient, maxImages),
	}
}

func (m *Module) mountRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.GET("/assets", m.handleListAssets)
	api.POST("/assets", m.handleCreateAsset)
	api.GET("/assets/:id", m.handleGetAsset)
	api.PUT("/assets/:id", m.handleReplaceAsset)
	api.DELETE("/assets/:id", m.handleDeleteAsset)
	api.GET("/assets/:id/qrcode", m.handleAssetQRCode)
	api.POST("/assets/:id/images", m.handleAttachImages)
	api.GET("/resolve/:code", m.handleResolveCode)
	api.POST("/upload", m.handleUploadImage)
}

// maxImagesFromEnv 读取每条资产允许的图片数量上限。
func maxImagesFromEnv() int {
	raw := strings.TrimSpace(os.Getenv("ASSET_MAX_IMAGES"))
	if raw == "" {
		return defaultMaxImages
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		log.Printf("assets: invalid ASSET_MAX_IMAGES value %q, using %d", raw, defaultMaxImages)
		return defaultMaxImages
	}
	return value
}

func (m *Module) handleListAssets(c *gin.Context) {
	records, err := m.service.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list assets"})
		return
	}
	c.JSON(http.StatusOK, records)
}

func (m *Module) handleGetAsset(c *gin.Context) {
	asset, err := m.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		m.writeError(c, err, "failed to fetch asset")
		return
	}
	c.JSON(http.StatusOK, asset)
}

func (m *Module) handleCreateAsset(c *gin.Context) {
	var payload Asset
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	created, err := m.service.Create(c.Request.Context(), &payload)
	if err != nil {
		m.writeError(c, err, "failed to create asset")
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (m *Module) handleReplaceAsset(c *gin.Context) {
	var payload Asset
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	updated, err := m.service.Replace(c.Request.Context(), c.Param("id"), &payload)
	if err != nil {
		m.writeError(c, err, "failed to update asset")
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (m *Module) handleDeleteAsset(c *gin.Context) {
	if err := m.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		m.writeError(c, err, "failed to delete asset")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// handleResolveCode 服务扫码页：命中返回记录，未命中返回原编码
// 供新增表单预填，两种结果都是 200。
func (m *Module) handleResolveCode(c *gin.Context) {
	code := c.Param("code")
	asset, err := m.service.Resolve(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusOK, gin.H{"found": false, "code": code})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve code"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"found": true, "asset": asset})
}

func (m *Module) handleUploadImage(c *gin.Context) {
	if !m.service.ImagesEnabled() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image storage is not configured"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	file, err := fileFromHeader(fileHeader)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file"})
		return
	}

	url, err := m.service.UploadImage(c.Request.Context(), file)
	if err != nil {
		m.writeError(c, err, "failed to upload image")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "url": url, "message": "image uploaded"})
}

func (m *Module) handleAttachImages(c *gin.Context) {
	if !m.service.ImagesEnabled() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image storage is not configured"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one file is required"})
		return
	}

	files := make([]imaging.File, 0, len(headers))
	for _, header := range headers {
		file, err := fileFromHeader(header)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid file %s", header.Filename)})
			return
		}
		files = append(files, file)
	}

	updated, err := m.service.AttachImages(c.Request.Context(), c.Param("id"), files)
	if err != nil {
		m.writeError(c, err, "failed to upload images")
		return
	}
	c.JSON(http.StatusOK, updated)
}

// handleAssetQRCode 把资产编码渲染成可打印的二维码标签。
func (m *Module) handleAssetQRCode(c *gin.Context) {
	asset, err := m.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		m.writeError(c, err, "failed to fetch asset")
		return
	}

	size := defaultQRCodeSize
	if raw := strings.TrimSpace(c.Query("size")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= minQRCodeSize && parsed <= maxQRCodeSize {
			size = parsed
		}
	}

	png, err := qrcode.Encode(asset.ID, qrcode.Medium, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render qrcode"})
		return
	}

	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, "image/png", png)
}

// writeError 把服务层的错误分类映射到 HTTP 状态码。
func (m *Module) writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "asset not found"})
	case errors.Is(err, ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case isValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("assets: %s: %v", fallback, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

func isValidationError(err error) bool {
	var domain *ValidationError
	var image *imaging.ValidationError
	return errors.As(err, &domain) || errors.As(err, &image)
}

// fileFromHeader 把 multipart 文件读入管线的内存表示。
func fileFromHeader(header *multipart.FileHeader) (imaging.File, error) {
	src, err := header.Open()
	if err != nil {
		return imaging.File{}, err
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return imaging.File{}, err
	}

	return imaging.File{
		Data:        data,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Filename:    header.Filename,
	}, nil
}
