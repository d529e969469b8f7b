package models

import (
	"path/filepath"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Document represents a file attached to a bid. StorageKey is the
// stored object name; SharePointURL is the URL recorded for the bid team.
type Document struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	BidID         uint      `gorm:"index" json:"bid_id"`
	Bid           Bid       `gorm:"foreignKey:BidID" json:"bid,omitempty"`
	DocumentName  string    `gorm:"not null" json:"document_name"`
	StorageKey    string    `gorm:"uniqueIndex" json:"storage_key"`
	SharePointURL string    `json:"sharepoint_url"`
	ContentType   string    `json:"content_type"`
	SizeBytes     int64     `json:"size_bytes"`
	UploadedBy    string    `json:"uploaded_by"`
	UploadedAt    time.Time `json:"uploaded_at"`
}

// Allowed document extensions
const (
	DocumentExtPDF  = ".pdf"
	DocumentExtDocx = ".docx"
	DocumentExtXlsx = ".xlsx"
)

// AllowedDocumentExts returns the file extensions accepted for upload
func AllowedDocumentExts() []string {
	return []string{DocumentExtPDF, DocumentExtDocx, DocumentExtXlsx}
}

// IsAllowedDocumentExt checks the filename's extension against the allowed set
func IsAllowedDocumentExt(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range AllowedDocumentExts() {
		if ext == allowed {
			return true
		}
	}
	return false
}

// MigrateDocumentModels runs database migrations for document models
func MigrateDocumentModels(db *gorm.DB) error {
	return db.AutoMigrate(&Document{})
}
