package models

// DomainRecord is one line of the domain report: how many live HTTP(S)
// connections resolved to Domain during the last tick and their share.
// The report is rebuilt every tick and carries no history.
type DomainRecord struct {
	Domain       string  `gorm:"primaryKey" json:"domain"`
	RequestCount int     `gorm:"not null" json:"request_count"`
	Percentage   float64 `json:"percentage"` // 0-100, 2 decimals
}

// TableName pins the GORM table name.
func (DomainRecord) TableName() string { return "domain_records" }
