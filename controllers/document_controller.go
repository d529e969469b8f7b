package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"bid_monitoring_platform/models"
	"bid_monitoring_platform/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// DocumentController handles bid document uploads
type DocumentController struct {
	db         *gorm.DB
	bidService *services.BidService
}

// NewDocumentController creates a new document controller
func NewDocumentController(db *gorm.DB) *DocumentController {
	return &DocumentController{
		db:         db,
		bidService: services.NewBidService(db),
	}
}

// UploadDocument attaches an uploaded file to a bid
// POST /api/v1/bids/:id/documents
func (dc *DocumentController) UploadDocument(c *gin.Context) {
	id, ok := parseBidID(c)
	if !ok {
		return
	}

	bid, err := dc.bidService.GetBid(id)
	if err != nil {
		if errors.Is(err, services.ErrBidNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Bid not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch bid"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A file upload is required"})
		return
	}

	if !models.IsAllowedDocumentExt(fileHeader.Filename) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":              "File type not allowed",
			"allowed_extensions": models.AllowedDocumentExts(),
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read uploaded file"})
		return
	}
	defer file.Close()

	result, err := services.GlobalDocumentStorage.Upload(fileHeader.Filename, file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store document"})
		return
	}

	document := models.Document{
		BidID:         bid.ID,
		DocumentName:  fileHeader.Filename,
		StorageKey:    result.StorageKey,
		SharePointURL: result.URL,
		ContentType:   fileHeader.Header.Get("Content-Type"),
		SizeBytes:     result.SizeBytes,
		UploadedBy:    requestActor(c),
		UploadedAt:    time.Now(),
	}

	if err := dc.db.Create(&document).Error; err != nil {
		services.GlobalDocumentStorage.Delete(result.StorageKey)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save document record"})
		return
	}

	if services.GlobalNotificationService != nil {
		services.GlobalNotificationService.BroadcastEvent(services.EventDocumentUploaded, map[string]interface{}{
			"bid_id":        bid.ID,
			"title":         bid.Title,
			"document_name": document.DocumentName,
			"url":           document.SharePointURL,
		})
	}

	c.JSON(http.StatusCreated, gin.H{"data": document})
}

// DeleteDocument removes a document record and its stored file
// DELETE /api/v1/documents/:id
func (dc *DocumentController) DeleteDocument(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid document ID"})
		return
	}

	var document models.Document
	if err := dc.db.First(&document, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch document"})
		return
	}

	if err := dc.db.Delete(&document).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete document"})
		return
	}

	services.GlobalDocumentStorage.Delete(document.StorageKey)

	c.JSON(http.StatusOK, gin.H{"message": "Document deleted successfully"})
}
