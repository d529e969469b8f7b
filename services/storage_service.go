package services

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SharePointPlaceholderBase is the URL base recorded for documents when
// no remote storage is configured
const SharePointPlaceholderBase = "https://sharepoint.example.com"

// DocumentStorageService stores bid documents in a SharePoint-style
// document library, falling back to local disk when unconfigured
type DocumentStorageService struct {
	BaseURL     string
	AccessToken string
	Library     string
	LocalDir    string
	client      *http.Client
}

// Global document storage service
var GlobalDocumentStorage *DocumentStorageService

// UploadResult describes a stored document
type UploadResult struct {
	StorageKey string `json:"storage_key"`
	URL        string `json:"url"`
	SizeBytes  int64  `json:"size_bytes"`
}

// InitDocumentStorage initializes the document storage service
func InitDocumentStorage() error {
	baseURL := os.Getenv("SHAREPOINT_BASE_URL")
	token := os.Getenv("SHAREPOINT_ACCESS_TOKEN")
	library := os.Getenv("SHAREPOINT_LIBRARY")
	if library == "" {
		library = "Shared Documents"
	}
	localDir := os.Getenv("DOCUMENTS_DIR")
	if localDir == "" {
		localDir = "documents"
	}

	if err := os.MkdirAll(localDir, 0755); err != nil {
		return fmt.Errorf("failed to create documents directory: %w", err)
	}

	GlobalDocumentStorage = &DocumentStorageService{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		AccessToken: token,
		Library:     library,
		LocalDir:    localDir,
		client:      &http.Client{Timeout: 30 * time.Second},
	}

	if !GlobalDocumentStorage.IsConfigured() {
		log.Println("SharePoint storage not configured, using local file storage")
	} else {
		log.Println("SharePoint Storage Service initialized")
	}
	return nil
}

// IsConfigured returns true if remote storage is configured
func (s *DocumentStorageService) IsConfigured() bool {
	return s != nil && s.BaseURL != "" && s.AccessToken != ""
}

// Upload stores the document bytes and returns the storage key plus the
// URL recorded for the bid team. Unconfigured storage writes to the
// local documents directory and records the placeholder library URL.
func (s *DocumentStorageService) Upload(filename string, r io.Reader) (*UploadResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	key := fmt.Sprintf("%s_%s", uuid.New().String(), sanitizeFilename(filename))

	if s.IsConfigured() {
		remoteURL := fmt.Sprintf("%s/%s/%s", s.BaseURL, url.PathEscape(s.Library), url.PathEscape(key))
		req, err := http.NewRequest(http.MethodPut, remoteURL, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+s.AccessToken)
		req.Header.Set("Content-Type", "application/octet-stream")

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("sharepoint upload failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			return nil, fmt.Errorf("sharepoint error (%d): %s", resp.StatusCode, string(body))
		}

		return &UploadResult{
			StorageKey: key,
			URL:        remoteURL,
			SizeBytes:  int64(len(data)),
		}, nil
	}

	path := filepath.Join(s.LocalDir, key)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write document: %w", err)
	}

	return &UploadResult{
		StorageKey: key,
		URL:        fmt.Sprintf("%s/%s", SharePointPlaceholderBase, filename),
		SizeBytes:  int64(len(data)),
	}, nil
}

// Delete removes a stored document, best-effort on both backends
func (s *DocumentStorageService) Delete(key string) error {
	if s.IsConfigured() {
		remoteURL := fmt.Sprintf("%s/%s/%s", s.BaseURL, url.PathEscape(s.Library), url.PathEscape(key))
		req, err := http.NewRequest(http.MethodDelete, remoteURL, nil)
		if err == nil {
			req.Header.Set("Authorization", "Bearer "+s.AccessToken)
			if resp, err := s.client.Do(req); err == nil {
				resp.Body.Close()
			} else {
				log.Printf("Warning: failed to delete remote document %s: %v", key, err)
			}
		}
	}

	path := filepath.Join(s.LocalDir, key)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// LocalPath returns the on-disk location for a locally stored document
func (s *DocumentStorageService) LocalPath(key string) string {
	return filepath.Join(s.LocalDir, key)
}

// GetStatus returns storage status for the admin panel
func (s *DocumentStorageService) GetStatus() map[string]interface{} {
	mode := "local"
	if s.IsConfigured() {
		mode = "sharepoint"
	}
	return map[string]interface{}{
		"mode":      mode,
		"library":   s.Library,
		"local_dir": s.LocalDir,
	}
}

// sanitizeFilename strips path components and characters unsafe for
// storage keys
func sanitizeFilename(filename string) string {
	name := filepath.Base(filename)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
