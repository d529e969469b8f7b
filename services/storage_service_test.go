package services

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocalStorage(t *testing.T) *DocumentStorageService {
	t.Helper()
	return &DocumentStorageService{
		Library:  "Shared Documents",
		LocalDir: t.TempDir(),
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

func TestInitDocumentStorageDefaults(t *testing.T) {
	prev := GlobalDocumentStorage
	t.Cleanup(func() { GlobalDocumentStorage = prev })

	dir := t.TempDir()
	t.Setenv("DOCUMENTS_DIR", dir)
	t.Setenv("SHAREPOINT_BASE_URL", "")
	t.Setenv("SHAREPOINT_ACCESS_TOKEN", "")

	require.NoError(t, InitDocumentStorage())
	require.NotNil(t, GlobalDocumentStorage)
	assert.Equal(t, dir, GlobalDocumentStorage.LocalDir)
	assert.Equal(t, "Shared Documents", GlobalDocumentStorage.Library)
	assert.False(t, GlobalDocumentStorage.IsConfigured())
}

func TestUploadLocal(t *testing.T) {
	svc := newLocalStorage(t)

	result, err := svc.Upload("proposal.pdf", strings.NewReader("pdf bytes"))
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(result.StorageKey, "_proposal.pdf"))
	assert.Equal(t, "https://sharepoint.example.com/proposal.pdf", result.URL)
	assert.Equal(t, int64(9), result.SizeBytes)

	data, err := os.ReadFile(svc.LocalPath(result.StorageKey))
	require.NoError(t, err)
	assert.Equal(t, "pdf bytes", string(data))
}

func TestUploadSanitizesFilename(t *testing.T) {
	svc := newLocalStorage(t)

	result, err := svc.Upload("../path/to/my report (v2).pdf", strings.NewReader("x"))
	require.NoError(t, err)

	assert.NotContains(t, result.StorageKey, "/")
	assert.NotContains(t, result.StorageKey, "..")
	assert.True(t, strings.HasSuffix(result.StorageKey, "_my_report__v2_.pdf"))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "proposal.pdf", sanitizeFilename("proposal.pdf"))
	assert.Equal(t, "passwd", sanitizeFilename("../../etc/passwd"))
	assert.Equal(t, "a_b_c.docx", sanitizeFilename("a b&c.docx"))
	assert.Equal(t, "report-final_v2.xlsx", sanitizeFilename("report-final_v2.xlsx"))
}

func TestDeleteLocal(t *testing.T) {
	svc := newLocalStorage(t)

	result, err := svc.Upload("contract.docx", strings.NewReader("doc"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(result.StorageKey))
	_, err = os.Stat(svc.LocalPath(result.StorageKey))
	assert.True(t, os.IsNotExist(err))

	// Deleting an unknown key is not an error
	assert.NoError(t, svc.Delete("missing_key.pdf"))
}

func TestUploadRemote(t *testing.T) {
	var gotMethod, gotAuth, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.EscapedPath()
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	svc := &DocumentStorageService{
		BaseURL:     server.URL,
		AccessToken: "test-token",
		Library:     "Bid Documents",
		LocalDir:    t.TempDir(),
		client:      server.Client(),
	}
	require.True(t, svc.IsConfigured())

	result, err := svc.Upload("pricing.xlsx", strings.NewReader("cells"))
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Contains(t, gotPath, "Bid%20Documents")
	assert.True(t, strings.HasPrefix(result.URL, server.URL))
	assert.Equal(t, int64(5), result.SizeBytes)
}

func TestUploadRemoteError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	svc := &DocumentStorageService{
		BaseURL:     server.URL,
		AccessToken: "test-token",
		Library:     "Bid Documents",
		LocalDir:    t.TempDir(),
		client:      server.Client(),
	}

	_, err := svc.Upload("pricing.xlsx", strings.NewReader("cells"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestStorageGetStatus(t *testing.T) {
	svc := newLocalStorage(t)

	status := svc.GetStatus()
	assert.Equal(t, "local", status["mode"])
	assert.Equal(t, svc.LocalDir, status["local_dir"])

	svc.BaseURL = "https://tenant.sharepoint.com"
	svc.AccessToken = "token"
	status = svc.GetStatus()
	assert.Equal(t, "sharepoint", status["mode"])
}
