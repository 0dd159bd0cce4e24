package models

// SeedRow is a synthetic row written by the load pipeline and read back by the
// report pipeline. The physical table name is configurable, so callers always
// pass it explicitly through gorm's Table.
type SeedRow struct {
	ID         int64 `gorm:"column:id;primaryKey;autoIncrement"`
	CountItems int   `gorm:"column:countItems;not null"`
}
