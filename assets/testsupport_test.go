package assets

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := openDatabase("sqlite", filepath.Join(t.TempDir(), "assets.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	return db
}

func migratedTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := openTestDB(t)
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func validAsset(id string) *Asset {
	return &Asset{
		ID:            id,
		Name:          "测试显示器",
		PurchaseDate:  "2025-03-01",
		Location:      "茶山",
		Price:         1299.5,
		InvoiceType:   "专票",
		TaxRate:       0.06,
		ModelSpec:     "Dell U2723QE 27寸",
		Category:      "电子设备",
		LastCheckDate: "2025-06-30",
		ImageURLs:     datatypes.NewJSONSlice([]string{}),
		Status:        "在用",
		StoragePlace:  "3楼机房",
		Owner:         "李雷",
	}
}

// fakeBlobStore records uploads and removals in memory. delay and failFor
// let tests shape completion order and inject upstream failures.
type fakeBlobStore struct {
	mu      sync.Mutex
	uploads []string
	removed []string
	delay   func(objectName string) time.Duration
	failFor string
}

func (f *fakeBlobStore) Upload(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	if f.delay != nil {
		time.Sleep(f.delay(objectName))
	}
	if f.failFor != "" && strings.Contains(objectName, f.failFor) {
		return "", errors.New("upstream unavailable")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, objectName)
	return "https://blob.test/assets-bucket/" + objectName, nil
}

func (f *fakeBlobStore) Remove(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, url)
	return nil
}

func (f *fakeBlobStore) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}
