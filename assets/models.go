package assets

import (
	"gorm.io/datatypes"
)

// Asset 表示一条固定资产记录，列名与历史表结构保持一致。
type Asset struct {
	ID            string                      `gorm:"column:id;primaryKey;type:text" json:"id"`
	Name          string                      `gorm:"column:name;type:text;not null" json:"name"`
	PurchaseDate  string                      `gorm:"column:purchaseDate;type:text" json:"purchaseDate"`
	Location      string                      `gorm:"column:location;type:text" json:"location"`
	Price         float64                     `gorm:"column:price" json:"price"`
	InvoiceType   string                      `gorm:"column:invoiceType;type:text" json:"invoiceType"`
	TaxRate       float64                     `gorm:"column:taxRate" json:"taxRate"`
	ModelSpec     string                      `gorm:"column:modelSpec;type:text" json:"modelSpec"`
	Category      string                      `gorm:"column:category;type:text" json:"category"`
	LastCheckDate string                      `gorm:"column:lastCheckDate;type:text" json:"lastCheckDate"`
	LegacyImage   string                      `gorm:"column:imageUrl;type:text" json:"-"`
	ImageURLs     datatypes.JSONSlice[string] `gorm:"column:imageUrls" json:"imageUrls"`
	Status        string                      `gorm:"column:status;type:text" json:"status"`
	StoragePlace  string                      `gorm:"column:storagePlace;type:text" json:"storagePlace"`
	Owner         string                      `gorm:"column:owner;type:text" json:"owner"`
}

// TableName 指定 Asset 模型对应的数据库表名。
func (Asset) TableName() string {
	return "assets"
}

// 各枚举字段的固定取值集合，由服务层在写入前校验。
var (
	Locations    = []string{"茶山", "松山湖", "其他"}
	InvoiceTypes = []string{"普票", "专票", "无票"}
	Categories   = []string{"电子设备", "办公家具", "其他"}
	Statuses     = []string{"在用", "闲置", "维修中", "报废"}
)

func isOneOf(value string, set []string) bool {
	for _, candidate := range set {
		if value == candidate {
			return true
		}
	}
	return false
}
