package assets

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"
)

const (
	idPrefix       = "ZC"
	idSuffixLength = 3
	idMaxAttempts  = 20

	base36Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// Resolver 负责把扫码得到的编码对照到资产记录，并为手工录入分配新编码。
type Resolver struct {
	repo  *Repository
	cache *recordCache
}

// NewResolver 创建编码解析器，cache 可以为 nil。
func NewResolver(repo *Repository, cache *recordCache) *Resolver {
	return &Resolver{repo: repo, cache: cache}
}

// Resolve 按编码精确匹配资产，区分大小写；未命中返回 ErrNotFound，
// 调用方据此进入"预填编码的新增"流程。
func (r *Resolver) Resolve(ctx context.Context, code string) (*Asset, error) {
	if cached, err := r.cache.get(ctx, code); err == nil && cached != nil {
		return cached, nil
	}

	asset, err := r.repo.Get(ctx, code)
	if err != nil {
		return nil, err
	}

	r.cache.store(ctx, asset)
	return asset, nil
}

// Allocate 生成形如 ZC-<年份>-<3位大写base36> 的新编码。
// 随机后缀只保证大概率唯一，真正的唯一性由插入时的主键约束兜底。
func (r *Resolver) Allocate(ctx context.Context) (string, error) {
	return generateAssetID(time.Now().Year(), func(id string) (bool, error) {
		return r.repo.Exists(ctx, id)
	})
}

// generateAssetID 生成候选编码并用 exists 回调探测冲突，冲突时重试。
func generateAssetID(year int, exists func(string) (bool, error)) (string, error) {
	for i := 0; i < idMaxAttempts; i++ {
		suffix, err := randomBase36(idSuffixLength)
		if err != nil {
			return "", err
		}
		id := fmt.Sprintf("%s-%d-%s", idPrefix, year, suffix)
		if exists == nil {
			return id, nil
		}
		taken, err := exists(id)
		if err != nil {
			return "", err
		}
		if !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("unable to allocate a unique asset id after %d attempts", idMaxAttempts)
}

func randomBase36(length int) (string, error) {
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	out := make([]byte, length)
	for i := 0; i < length; i++ {
		out[i] = base36Alphabet[int(raw[i])%len(base36Alphabet)]
	}
	return string(out), nil
}
