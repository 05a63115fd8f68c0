package assets

import (
	"context"
	"testing"
)

// legacySchema matches the table layout from before the multi-image column
// existed: a single imageUrl text column and no imageUrls.
const legacySchema = `
CREATE TABLE assets (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  purchaseDate TEXT,
  location TEXT,
  price REAL,
  invoiceType TEXT,
  taxRate REAL,
  modelSpec TEXT,
  category TEXT,
  lastCheckDate TEXT,
  imageUrl TEXT,
  status TEXT,
  storagePlace TEXT,
  owner TEXT
)`

func TestMigrateFreshDatabase(t *testing.T) {
	db := openTestDB(t)

	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	migrator := db.Migrator()
	if !migrator.HasTable(&Asset{}) {
		t.Fatal("assets table missing after migration")
	}
	if !migrator.HasColumn(&Asset{}, "imageUrls") {
		t.Fatal("imageUrls column missing after migration")
	}
}

func TestMigrateBackfillsLegacyImageColumn(t *testing.T) {
	db := openTestDB(t)

	if err := db.Exec(legacySchema).Error; err != nil {
		t.Fatalf("create legacy table: %v", err)
	}
	insert := `INSERT INTO assets (id, name, purchaseDate, location, price, invoiceType, taxRate,
		modelSpec, category, lastCheckDate, imageUrl, status, storagePlace, owner)
		VALUES (?, ?, '2024-01-15', '茶山', 100, '普票', 0.06, 'ThinkPad X1', '其他', '2024-06-01', ?, '在用', '仓库', '韩梅梅')`
	if err := db.Exec(insert, "ZC-2024-AAA", "旧笔记本", "https://blob.test/legacy-a.jpg").Error; err != nil {
		t.Fatalf("insert legacy row: %v", err)
	}
	if err := db.Exec(insert, "ZC-2024-BBB", "旧打印机", "").Error; err != nil {
		t.Fatalf("insert legacy row without image: %v", err)
	}

	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	repo := NewRepository(db)
	ctx := context.Background()

	withImage, err := repo.Get(ctx, "ZC-2024-AAA")
	if err != nil {
		t.Fatalf("get migrated row: %v", err)
	}
	if len(withImage.ImageURLs) != 1 || withImage.ImageURLs[0] != "https://blob.test/legacy-a.jpg" {
		t.Fatalf("legacy value not wrapped: %#v", withImage.ImageURLs)
	}
	if withImage.LegacyImage != "https://blob.test/legacy-a.jpg" {
		t.Fatalf("legacy column was not preserved: %q", withImage.LegacyImage)
	}

	withoutImage, err := repo.Get(ctx, "ZC-2024-BBB")
	if err != nil {
		t.Fatalf("get migrated row: %v", err)
	}
	if len(withoutImage.ImageURLs) != 0 {
		t.Fatalf("empty legacy value should not be wrapped: %#v", withoutImage.ImageURLs)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	if err := db.Exec(legacySchema).Error; err != nil {
		t.Fatalf("create legacy table: %v", err)
	}
	insert := `INSERT INTO assets (id, name, purchaseDate, location, price, invoiceType, taxRate,
		modelSpec, category, lastCheckDate, imageUrl, status, storagePlace, owner)
		VALUES ('ZC-2024-CCC', '旧设备', '2024-01-15', '其他', 50, '无票', 0,
		'ThinkPad X1', '其他', '2024-06-01', 'https://blob.test/legacy-c.jpg', '闲置', '仓库', '韩梅梅')`
	if err := db.Exec(insert).Error; err != nil {
		t.Fatalf("insert legacy row: %v", err)
	}

	if err := Migrate(db); err != nil {
		t.Fatalf("first migrate: %v", err)
	}

	repo := NewRepository(db)
	ctx := context.Background()
	first, err := repo.Get(ctx, "ZC-2024-CCC")
	if err != nil {
		t.Fatalf("get after first migrate: %v", err)
	}

	if err := Migrate(db); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	second, err := repo.Get(ctx, "ZC-2024-CCC")
	if err != nil {
		t.Fatalf("get after second migrate: %v", err)
	}

	if len(second.ImageURLs) != len(first.ImageURLs) {
		t.Fatalf("second migration changed imageUrls: %#v vs %#v", first.ImageURLs, second.ImageURLs)
	}
	for i := range first.ImageURLs {
		if first.ImageURLs[i] != second.ImageURLs[i] {
			t.Fatalf("second migration changed imageUrls: %#v vs %#v", first.ImageURLs, second.ImageURLs)
		}
	}
}
