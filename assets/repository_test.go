package assets

import (
	"context"
	"errors"
	"testing"

	"gorm.io/datatypes"
)

func TestRepositoryRoundTrip(t *testing.T) {
	repo := NewRepository(migratedTestDB(t))
	ctx := context.Background()

	asset := validAsset("ZC-2025-AB1")
	asset.ImageURLs = datatypes.NewJSONSlice([]string{"https://blob.test/a.jpg", "https://blob.test/b.jpg"})
	if err := repo.Insert(ctx, asset); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := repo.Get(ctx, "ZC-2025-AB1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != asset.ID || got.Name != asset.Name || got.Owner != asset.Owner ||
		got.PurchaseDate != asset.PurchaseDate || got.Price != asset.Price ||
		got.TaxRate != asset.TaxRate || got.Status != asset.Status {
		t.Fatalf("round trip mismatch: %#v", got)
	}
	if len(got.ImageURLs) != 2 || got.ImageURLs[0] != "https://blob.test/a.jpg" || got.ImageURLs[1] != "https://blob.test/b.jpg" {
		t.Fatalf("image urls mismatch: %#v", got.ImageURLs)
	}
}

func TestRepositoryGetMissing(t *testing.T) {
	repo := NewRepository(migratedTestDB(t))

	_, err := repo.Get(context.Background(), "ZC-2099-XXX")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRepositoryInsertConflict(t *testing.T) {
	repo := NewRepository(migratedTestDB(t))
	ctx := context.Background()

	if err := repo.Insert(ctx, validAsset("ZC-2025-DUP")); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	second := validAsset("ZC-2025-DUP")
	second.Name = "另一台设备"
	err := repo.Insert(ctx, second)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	// The original record must survive untouched.
	got, err := repo.Get(ctx, "ZC-2025-DUP")
	if err != nil {
		t.Fatalf("get after conflict: %v", err)
	}
	if got.Name != "测试显示器" {
		t.Fatalf("conflicting insert overwrote the record: %q", got.Name)
	}
}

func TestRepositoryReplace(t *testing.T) {
	repo := NewRepository(migratedTestDB(t))
	ctx := context.Background()

	if err := repo.Insert(ctx, validAsset("ZC-2025-RPL")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	updated := validAsset("ZC-2025-RPL")
	updated.Status = "维修中"
	updated.Price = 0
	if err := repo.Replace(ctx, updated); err != nil {
		t.Fatalf("replace: %v", err)
	}

	got, err := repo.Get(ctx, "ZC-2025-RPL")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != "维修中" {
		t.Fatalf("status not replaced: %q", got.Status)
	}
	if got.Price != 0 {
		t.Fatalf("zero-valued field not replaced: %v", got.Price)
	}
	if got.Name != updated.Name || got.Owner != updated.Owner {
		t.Fatalf("unexpected field change: %#v", got)
	}
}

func TestRepositoryReplaceMissing(t *testing.T) {
	repo := NewRepository(migratedTestDB(t))

	err := repo.Replace(context.Background(), validAsset("ZC-2099-XXX"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRepositoryDelete(t *testing.T) {
	repo := NewRepository(migratedTestDB(t))
	ctx := context.Background()

	if err := repo.Insert(ctx, validAsset("ZC-2025-DEL")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.Delete(ctx, "ZC-2025-DEL"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, "ZC-2025-DEL"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.Delete(ctx, "ZC-2025-DEL"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for second delete, got %v", err)
	}
}

func TestRepositoryExists(t *testing.T) {
	repo := NewRepository(migratedTestDB(t))
	ctx := context.Background()

	if err := repo.Insert(ctx, validAsset("ZC-2025-EXS")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	taken, err := repo.Exists(ctx, "ZC-2025-EXS")
	if err != nil || !taken {
		t.Fatalf("expected existing id, got taken=%v err=%v", taken, err)
	}
	taken, err = repo.Exists(ctx, "ZC-2025-NOP")
	if err != nil || taken {
		t.Fatalf("expected free id, got taken=%v err=%v", taken, err)
	}
}
