package models

// CodeSequence holds the last number handed out for a code prefix.
type CodeSequence struct {
	Prefix string `gorm:"size:10;primaryKey"`
	Value  int64  `gorm:"not null"`
}
