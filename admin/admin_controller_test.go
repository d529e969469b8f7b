package admin

import (
	"bytes"
	"encoding/json"
	"html/template"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"bid_monitoring_platform/models"
	"bid_monitoring_platform/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// newAdminUIRouter mounts the admin pages and actions without the session
// middleware, which has its own tests. Pages render against one-line
// stand-ins for the real templates.
func newAdminUIRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)

	tmpl := template.New("")
	for _, name := range []string{"dashboard.html", "bids.html", "bid_detail.html", "activity.html", "users.html"} {
		template.Must(tmpl.New(name).Parse("{{ .title }}"))
	}

	router := gin.New()
	router.SetHTMLTemplate(tmpl)

	ac := NewAdminController(db)
	router.GET("/admin", ac.Dashboard)
	router.GET("/admin/bids", ac.BidsPage)
	router.GET("/admin/bids/:id", ac.BidDetailPage)
	router.GET("/admin/activity", ac.ActivityPage)
	router.GET("/admin/users", ac.UsersPage)

	actions := router.Group("/admin/actions")
	{
		actions.POST("/create-bid", ac.CreateBidAction)
		actions.POST("/update-status", ac.UpdateStatusAction)
		actions.POST("/advance-stage", ac.AdvanceStageAction)
		actions.POST("/upload-document", ac.UploadDocumentAction)
		actions.POST("/create-user", ac.CreateUserAction)
		actions.POST("/update-user-role", ac.UpdateUserRoleAction)
		actions.POST("/update-user-status", ac.UpdateUserStatusAction)
		actions.POST("/create-admin-user", ac.CreateAdminUserAction)
	}

	return router
}

func postAction(router *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeActionBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func seedActionBid(t *testing.T, db *gorm.DB, title string) *models.Bid {
	t.Helper()

	bid, err := services.NewBidService(db).CreateBid(services.CreateBidInput{
		Title:      title,
		ClientName: "Acme Corp",
		AssignedTo: "alice",
		BidValue:   decimal.NewFromInt(100000),
		CreatedBy:  "seed",
	})
	require.NoError(t, err)
	return bid
}

func withActionDocumentStorage(t *testing.T) {
	t.Helper()

	prev := services.GlobalDocumentStorage
	t.Cleanup(func() { services.GlobalDocumentStorage = prev })

	t.Setenv("DOCUMENTS_DIR", t.TempDir())
	t.Setenv("SHAREPOINT_BASE_URL", "")
	t.Setenv("SHAREPOINT_ACCESS_TOKEN", "")
	t.Setenv("SHAREPOINT_LIBRARY", "")
	require.NoError(t, services.InitDocumentStorage())
}

func postDocumentAction(t *testing.T, router *gin.Engine, fields map[string]string, filename, content string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/admin/actions/upload-document", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestDashboardPage(t *testing.T) {
	db := setupAdminDB(t)
	router := newAdminUIRouter(db)
	seedActionBid(t, db, "Data center build")

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Dashboard", rec.Body.String())
}

func TestBidsPage(t *testing.T) {
	db := setupAdminDB(t)
	router := newAdminUIRouter(db)
	seedActionBid(t, db, "Data center build")

	req := httptest.NewRequest(http.MethodGet, "/admin/bids?status=Open&page=1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bids", rec.Body.String())
}

func TestBidDetailPage(t *testing.T) {
	db := setupAdminDB(t)
	router := newAdminUIRouter(db)
	bid := seedActionBid(t, db, "Data center build")

	req := httptest.NewRequest(http.MethodGet, "/admin/bids/"+strconv.Itoa(int(bid.ID)), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Data center build", rec.Body.String())
}

func TestBidDetailPageRedirectsOnMissingBid(t *testing.T) {
	db := setupAdminDB(t)
	router := newAdminUIRouter(db)

	for _, path := range []string{"/admin/bids/9999", "/admin/bids/abc"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/admin/bids", rec.Header().Get("Location"))
	}
}

func TestActivityAndUsersPages(t *testing.T) {
	db := setupAdminDB(t)
	router := newAdminUIRouter(db)

	req := httptest.NewRequest(http.MethodGet, "/admin/activity", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateBidAction(t *testing.T) {
	db := setupAdminDB(t)
	router := newAdminUIRouter(db)

	rec := postAction(router, "/admin/actions/create-bid", url.Values{
		"title":       {"Campus wifi refresh"},
		"client_name": {"Globex"},
		"assigned_to": {"bob"},
		"due_date":    {"2026-10-01"},
		"bid_value":   {"750000"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeActionBody(t, rec)
	assert.Equal(t, "Bid created", body["message"])

	var bid models.Bid
	require.NoError(t, db.First(&bid, uint(body["id"].(float64))).Error)
	assert.Equal(t, models.BidStatusOpen, bid.Status)
	assert.Equal(t, models.StageProposalDrafting, bid.Stage)
	require.NotNil(t, bid.DueDate)
	assert.Equal(t, time.October, bid.DueDate.Month())
}

func TestCreateBidActionValidation(t *testing.T) {
	db := setupAdminDB(t)
	router := newAdminUIRouter(db)

	rec := postAction(router, "/admin/actions/create-bid", url.Values{
		"title": {"Campus wifi refresh"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "required")

	rec = postAction(router, "/admin/actions/create-bid", url.Values{
		"title":       {"Campus wifi refresh"},
		"client_name": {"Globex"},
		"assigned_to": {"bob"},
		"due_date":    {"01/10/2026"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid due date format")

	rec = postAction(router, "/admin/actions/create-bid", url.Values{
		"title":       {"Campus wifi refresh"},
		"client_name": {"Globex"},
		"assigned_to": {"bob"},
		"bid_value":   {"a lot"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid bid value")
}

func TestUpdateStatusAction(t *testing.T) {
	db := setupAdminDB(t)
	router := newAdminUIRouter(db)
	bid := seedActionBid(t, db, "Campus wifi refresh")

	rec := postAction(router, "/admin/actions/update-status", url.Values{
		"bid_id": {strconv.Itoa(int(bid.ID))},
		"status": {models.BidStatusWon},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeActionBody(t, rec)
	assert.Equal(t, models.BidStatusWon, body["status"])
}

func TestUpdateStatusActionValidation(t *testing.T) {
	db := setupAdminDB(t)
	router := newAdminUIRouter(db)
	bid := seedActionBid(t, db, "Campus wifi refresh")
	bidID := strconv.Itoa(int(bid.ID))

	rec := postAction(router, "/admin/actions/update-status", url.Values{
		"bid_id": {"abc"},
		"status": {models.BidStatusWon},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postAction(router, "/admin/actions/update-status", url.Values{
		"bid_id": {bidID},
		"status": {"Pending"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid status")

	rec = postAction(router, "/admin/actions/update-status", url.Values{
		"bid_id": {bidID},
		"status": {models.BidStatusLost},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "loss reason is required")

	rec = postAction(router, "/admin/actions/update-status", url.Values{
		"bid_id": {"9999"},
		"status": {models.BidStatusWon},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdvanceStageAction(t *testing.T) {
	db := setupAdminDB(t)
	router := newAdminUIRouter(db)
	bid := seedActionBid(t, db, "Campus wifi refresh")
	bidID := strconv.Itoa(int(bid.ID))

	rec := postAction(router, "/admin/actions/advance-stage", url.Values{
		"bid_id": {bidID},
		"stage":  {models.StageLegalReview},
		"notes":  {"Contract terms review"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeActionBody(t, rec)
	assert.Equal(t, models.StageLegalReview, body["stage"])
	assert.Equal(t, "Legal Team", body["owner"])

	// The same stage cannot be opened twice for one bid.
	rec = postAction(router, "/admin/actions/advance-stage", url.Values{
		"bid_id": {bidID},
		"stage":  {models.StageLegalReview},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "already completed")

	rec = postAction(router, "/admin/actions/advance-stage", url.Values{
		"bid_id": {bidID},
		"stage":  {"Negotiation"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid stage")
}

func TestUploadDocumentAction(t *testing.T) {
	db := setupAdminDB(t)
	router := newAdminUIRouter(db)
	withActionDocumentStorage(t)
	bid := seedActionBid(t, db, "Campus wifi refresh")

	rec := postDocumentAction(t, router, map[string]string{
		"bid_id": strconv.Itoa(int(bid.ID)),
	}, "proposal.pdf", "pdf content")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeActionBody(t, rec)
	assert.Equal(t, "Document uploaded", body["message"])
	assert.Equal(t, "https://sharepoint.example.com/proposal.pdf", body["url"])

	var document models.Document
	require.NoError(t, db.Where("bid_id = ?", bid.ID).First(&document).Error)
	assert.Equal(t, "proposal.pdf", document.DocumentName)
	assert.Equal(t, int64(len("pdf content")), document.SizeBytes)
}

func TestUploadDocumentActionValidation(t *testing.T) {
	db := setupAdminDB(t)
	router := newAdminUIRouter(db)
	withActionDocumentStorage(t)
	bid := seedActionBid(t, db, "Campus wifi refresh")
	bidID := strconv.Itoa(int(bid.ID))

	rec := postDocumentAction(t, router, map[string]string{"bid_id": bidID}, "notes.txt", "plain text")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "File type not allowed")

	rec = postDocumentAction(t, router, map[string]string{"bid_id": bidID}, "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "file upload is required")

	rec = postDocumentAction(t, router, map[string]string{"bid_id": "9999"}, "proposal.pdf", "pdf content")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateUserAction(t *testing.T) {
	db := setupAdminDB(t)
	router := newAdminUIRouter(db)

	rec := postAction(router, "/admin/actions/create-user", url.Values{
		"username": {"dana"},
		"role":     {models.UserRoleManager},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var user models.User
	require.NoError(t, db.Where("username = ?", "dana").First(&user).Error)
	assert.Equal(t, models.UserRoleManager, user.Role)
	assert.True(t, user.IsActive)

	// Role defaults to salesperson when the form leaves it blank.
	rec = postAction(router, "/admin/actions/create-user", url.Values{"username": {"erin"}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, db.Where("username = ?", "erin").First(&user).Error)
	assert.Equal(t, models.UserRoleSalesperson, user.Role)

	rec = postAction(router, "/admin/actions/create-user", url.Values{"username": {"dana"}})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "Username already exists")

	rec = postAction(router, "/admin/actions/create-user", url.Values{"username": {"frank"}, "role": {"director"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postAction(router, "/admin/actions/create-user", url.Values{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Username is required")
}

func TestUpdateUserRoleAction(t *testing.T) {
	db := setupAdminDB(t)
	router := newAdminUIRouter(db)

	user := models.User{Username: "dana", Role: models.UserRoleSalesperson, IsActive: true}
	require.NoError(t, db.Create(&user).Error)
	userID := strconv.Itoa(int(user.ID))

	rec := postAction(router, "/admin/actions/update-user-role", url.Values{
		"user_id": {userID},
		"role":    {models.UserRoleManager},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated models.User
	require.NoError(t, db.First(&updated, user.ID).Error)
	assert.Equal(t, models.UserRoleManager, updated.Role)

	rec = postAction(router, "/admin/actions/update-user-role", url.Values{"role": {models.UserRoleManager}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postAction(router, "/admin/actions/update-user-role", url.Values{"user_id": {userID}, "role": {"director"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postAction(router, "/admin/actions/update-user-role", url.Values{"user_id": {"9999"}, "role": {models.UserRoleManager}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateUserStatusAction(t *testing.T) {
	db := setupAdminDB(t)
	router := newAdminUIRouter(db)

	user := models.User{Username: "dana", Role: models.UserRoleSalesperson, IsActive: true}
	require.NoError(t, db.Create(&user).Error)

	rec := postAction(router, "/admin/actions/update-user-status", url.Values{
		"user_id":   {strconv.Itoa(int(user.ID))},
		"is_active": {"false"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated models.User
	require.NoError(t, db.First(&updated, user.ID).Error)
	assert.False(t, updated.IsActive)

	rec = postAction(router, "/admin/actions/update-user-status", url.Values{"is_active": {"false"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postAction(router, "/admin/actions/update-user-status", url.Values{"user_id": {"abc"}, "is_active": {"true"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid user ID format")
}

func TestCreateAdminUserAction(t *testing.T) {
	db := setupAdminDB(t)
	router := newAdminUIRouter(db)

	rec := postAction(router, "/admin/actions/create-admin-user", url.Values{
		"username":  {"ops2"},
		"password":  {"another-secret-1"},
		"full_name": {"Second Operator"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var admin models.AdminUser
	require.NoError(t, db.Where("username = ?", "ops2").First(&admin).Error)
	assert.Equal(t, "admin", admin.Role, "role defaults to admin")
	assert.True(t, admin.CheckPassword("another-secret-1"))

	rec = postAction(router, "/admin/actions/create-admin-user", url.Values{
		"username": {"ops2"},
		"password": {"another-secret-1"},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = postAction(router, "/admin/actions/create-admin-user", url.Values{"username": {"ops3"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
