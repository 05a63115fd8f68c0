package assets

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/Transirizo/asset-management/imaging"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	defaultMaxImages = 5

	// 单图上传与批量上传沿用两套不同的体积上限。
	singleUploadLimitBytes = 5 << 20
	batchUploadLimitBytes  = 10 << 20

	blobCleanupTimeout = 15 * time.Second
)

// Service 组合编码解析、图片管线与仓储，承载所有资产用例；
// 外部界面层只与它交互。
type Service struct {
	repo      *Repository
	resolver  *Resolver
	single    *imaging.Pipeline
	batch     *imaging.Pipeline
	blobs     imaging.BlobStore
	cache     *recordCache
	maxImages int
}

// NewService 装配资产服务。blobs 与 redisClient 均可为 nil，对应能力自动关闭。
func NewService(db *gorm.DB, blobs imaging.BlobStore, redisClient *redis.Client, maxImages int) *Service {
	if maxImages <= 0 {
		maxImages = defaultMaxImages
	}

	repo := NewRepository(db)
	cache := newRecordCache(redisClient)

	var single, batch *imaging.Pipeline
	if blobs != nil {
		single = imaging.NewPipeline(blobs, imaging.Options{MaxFileBytes: singleUploadLimitBytes})
		batch = imaging.NewPipeline(blobs, imaging.Options{MaxFileBytes: batchUploadLimitBytes})
	}

	return &Service{
		repo:      repo,
		resolver:  NewResolver(repo, cache),
		single:    single,
		batch:     batch,
		blobs:     blobs,
		cache:     cache,
		maxImages: maxImages,
	}
}

// ImagesEnabled 表示对象存储是否已配置。
func (s *Service) ImagesEnabled() bool {
	return s != nil && s.blobs != nil
}

// List 返回全部资产。
func (s *Service) List(ctx context.Context) ([]Asset, error) {
	return s.repo.List(ctx)
}

// Get 按编码读取单条资产，走与扫码解析相同的缓存路径。
func (s *Service) Get(ctx context.Context, id string) (*Asset, error) {
	return s.resolver.Resolve(ctx, id)
}

// Resolve 把扫码结果对照到资产记录；未命中返回 ErrNotFound，
// 调用方用原编码预填新增表单。
func (s *Service) Resolve(ctx context.Context, code string) (*Asset, error) {
	return s.resolver.Resolve(ctx, code)
}

// Create 创建资产：编码缺省时现场分配，校验后插入；
// 编码冲突由存储层主键约束兜底并以 ErrConflict 上抛。
func (s *Service) Create(ctx context.Context, asset *Asset) (*Asset, error) {
	asset.ID = strings.TrimSpace(asset.ID)
	if asset.ID == "" {
		id, err := s.resolver.Allocate(ctx)
		if err != nil {
			return nil, err
		}
		asset.ID = id
	}

	if err := s.validate(asset); err != nil {
		return nil, err
	}

	if err := s.repo.Insert(ctx, asset); err != nil {
		return nil, err
	}

	s.cache.invalidate(ctx, asset.ID)
	return asset, nil
}

// Replace 整体替换编码之外的全部字段；从图片列表里去掉的对象
// 事后异步清理，绝不阻塞或影响本次更新。
func (s *Service) Replace(ctx context.Context, id string, updated *Asset) (*Asset, error) {
	updated.ID = strings.TrimSpace(id)
	if err := s.validate(updated); err != nil {
		return nil, err
	}

	current, err := s.repo.Get(ctx, updated.ID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Replace(ctx, updated); err != nil {
		return nil, err
	}

	s.cache.invalidate(ctx, updated.ID)
	s.cleanupBlobs(droppedURLs(current.ImageURLs, updated.ImageURLs))
	return updated, nil
}

// Delete 删除资产记录，其引用的图片对象异步清理。
func (s *Service) Delete(ctx context.Context, id string) error {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.cache.invalidate(ctx, id)
	s.cleanupBlobs(current.ImageURLs)
	return nil
}

// UploadImage 处理单图上传入口（5MB 上限），返回压缩上传后的 URL。
func (s *Service) UploadImage(ctx context.Context, file imaging.File) (string, error) {
	urls, err := s.single.Ingest(ctx, []imaging.File{file}, nil, s.maxImages)
	if err != nil {
		return "", err
	}
	return urls[len(urls)-1], nil
}

// AttachImages 批量上传图片（10MB 上限）并合并进已存的有序列表，
// 按提交顺序追加，整批要么全部成功要么一张不留。
func (s *Service) AttachImages(ctx context.Context, id string, files []imaging.File) (*Asset, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	urls, err := s.batch.Ingest(ctx, files, current.ImageURLs, s.maxImages)
	if err != nil {
		return nil, err
	}

	previous := len(current.ImageURLs)
	current.ImageURLs = urls
	if err := s.repo.Replace(ctx, current); err != nil {
		// 记录没写成，新传的对象成了孤儿，尽力回收后上抛。
		s.cleanupBlobs(urls[previous:])
		return nil, err
	}

	s.cache.invalidate(ctx, id)
	return current, nil
}

// validate 是写入前的业务契约：必填项、日期格式、枚举、数值范围与图片数量。
func (s *Service) validate(asset *Asset) error {
	if strings.TrimSpace(asset.ID) == "" {
		return newValidationError("id is required")
	}

	required := []struct{ name, value string }{
		{"name", asset.Name},
		{"modelSpec", asset.ModelSpec},
		{"owner", asset.Owner},
		{"storagePlace", asset.StoragePlace},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return newValidationError("%s is required", field.name)
		}
	}

	dates := []struct{ name, value string }{
		{"purchaseDate", asset.PurchaseDate},
		{"lastCheckDate", asset.LastCheckDate},
	}
	for _, field := range dates {
		if _, err := time.Parse("2006-01-02", field.value); err != nil {
			return newValidationError("%s must be a date in YYYY-MM-DD format", field.name)
		}
	}

	enums := []struct {
		name  string
		value string
		set   []string
	}{
		{"location", asset.Location, Locations},
		{"invoiceType", asset.InvoiceType, InvoiceTypes},
		{"category", asset.Category, Categories},
		{"status", asset.Status, Statuses},
	}
	for _, field := range enums {
		if !isOneOf(field.value, field.set) {
			return newValidationError("invalid %s %q", field.name, field.value)
		}
	}

	if asset.Price < 0 {
		return newValidationError("price must not be negative")
	}
	if asset.TaxRate < 0 || asset.TaxRate > 1 {
		return newValidationError("taxRate must be between 0 and 1")
	}
	if len(asset.ImageURLs) > s.maxImages {
		return newValidationError("image count exceeds the limit of %d", s.maxImages)
	}

	return nil
}

// cleanupBlobs 在后台尽力删除不再被引用的图片对象，失败只记日志。
func (s *Service) cleanupBlobs(urls []string) {
	if s.blobs == nil || len(urls) == 0 {
		return
	}

	removed := append([]string(nil), urls...)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), blobCleanupTimeout)
		defer cancel()

		for _, url := range removed {
			if strings.TrimSpace(url) == "" {
				continue
			}
			if err := s.blobs.Remove(ctx, url); err != nil {
				log.Printf("assets: remove blob %s failed: %v", url, err)
			}
		}
	}()
}

// droppedURLs 返回出现在 previous 而不在 next 里的地址。
func droppedURLs(previous, next []string) []string {
	keep := make(map[string]struct{}, len(next))
	for _, url := range next {
		keep[url] = struct{}{}
	}

	var dropped []string
	for _, url := range previous {
		if _, ok := keep[url]; !ok {
			dropped = append(dropped, url)
		}
	}
	return dropped
}
