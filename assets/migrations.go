package assets

import (
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// migrationStep 是一个可跳过的迁移步骤：done 判断后置条件是否已成立。
type migrationStep struct {
	name string
	done func(db *gorm.DB) (bool, error)
	run  func(db *gorm.DB) error
}

// Migrate 依次执行所有后置条件尚未成立的迁移步骤，可安全地重复调用。
func Migrate(db *gorm.DB) error {
	for _, step := range migrationSteps(db) {
		ok, err := step.done(db)
		if err != nil {
			return fmt.Errorf("assets: check migration %q: %w", step.name, err)
		}
		if ok {
			continue
		}
		if err := step.run(db); err != nil {
			return fmt.Errorf("assets: apply migration %q: %w", step.name, err)
		}
	}
	return nil
}

func migrationSteps(db *gorm.DB) []migrationStep {
	// 进入迁移前 imageUrls 列是否已存在：存在说明历史图片列早已回填过。
	migrator := db.Migrator()
	hadMultiColumn := migrator.HasTable(&Asset{}) && migrator.HasColumn(&Asset{}, "imageUrls")

	return []migrationStep{
		{
			name: "create assets schema",
			done: func(db *gorm.DB) (bool, error) {
				m := db.Migrator()
				return m.HasTable(&Asset{}) && m.HasColumn(&Asset{}, "imageUrls"), nil
			},
			run: func(db *gorm.DB) error {
				return db.AutoMigrate(&Asset{})
			},
		},
		{
			name: "backfill legacy imageUrl column",
			done: func(db *gorm.DB) (bool, error) {
				return hadMultiColumn, nil
			},
			run: backfillLegacyImages,
		},
	}
}

// backfillLegacyImages 把历史单图列包装成单元素的 imageUrls 列表。
// 只处理尚无多图数据的记录，历史列原样保留。
func backfillLegacyImages(db *gorm.DB) error {
	var records []Asset
	if err := db.Find(&records).Error; err != nil {
		return err
	}

	for i := range records {
		record := &records[i]
		legacy := strings.TrimSpace(record.LegacyImage)
		if legacy == "" || len(record.ImageURLs) > 0 {
			continue
		}
		urls := datatypes.NewJSONSlice([]string{legacy})
		if err := db.Model(&Asset{}).Where("id = ?", record.ID).Update("imageUrls", urls).Error; err != nil {
			return fmt.Errorf("backfill asset %s: %w", record.ID, err)
		}
	}
	return nil
}
