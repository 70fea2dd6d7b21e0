package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uintParam(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	gin.SetMode(gin.TestMode)

	setupTestDB(t)

	r := gin.New()
	SetupRoutes(r)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func tokenFor(t *testing.T, user *User) string {
	t.Helper()
	token, err := GenerateToken(user.ID)
	require.NoError(t, err)
	return token
}

func TestSignupAndLogin(t *testing.T) {
	r := setupTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/auth/register", "", gin.H{
		"username":         "newstudent",
		"email":            "newstudent@example.edu",
		"password":         "secret123",
		"confirm_password": "secret123",
		"first_name":       "New",
		"last_name":        "Student",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodPost, "/auth/login", "", gin.H{
		"username": "newstudent",
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["token"])
}

func TestLogin_WrongPassword(t *testing.T) {
	r := setupTestRouter(t)
	createTestUser(t, DB, "student1", RoleParticipant)

	w := doJSON(t, r, http.MethodPost, "/auth/login", "", gin.H{
		"username": "student1",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogin_PendingProfessor(t *testing.T) {
	r := setupTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/auth/register/professor", "", gin.H{
		"username":         "prof1",
		"email":            "prof1@example.edu",
		"password":         "secret123",
		"confirm_password": "secret123",
		"first_name":       "Pro",
		"last_name":        "Fessor",
		"department":       "Islamic Studies",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// account stays locked until an admin verifies it
	w = doJSON(t, r, http.MethodPost, "/auth/login", "", gin.H{
		"username": "prof1",
		"password": "secret123",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRegisterEndpoint(t *testing.T) {
	r := setupTestRouter(t)
	user := createTestUser(t, DB, "student1", RoleParticipant)
	ev := createTestEvent(t, DB, intPtr(10), time.Now().Add(24*time.Hour))
	token := tokenFor(t, user)

	path := "/api/events/" + uintParam(ev.ID) + "/register"

	w := doJSON(t, r, http.MethodPost, path, token, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// second attempt conflicts
	w = doJSON(t, r, http.MethodPost, path, token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRegisterEndpoint_FullEvent(t *testing.T) {
	r := setupTestRouter(t)
	first := createTestUser(t, DB, "student1", RoleParticipant)
	second := createTestUser(t, DB, "student2", RoleParticipant)
	ev := createTestEvent(t, DB, intPtr(1), time.Now().Add(24*time.Hour))

	path := "/api/events/" + uintParam(ev.ID) + "/register"

	w := doJSON(t, r, http.MethodPost, path, tokenFor(t, first), nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, path, tokenFor(t, second), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCancelEndpoint_NotRegistered(t *testing.T) {
	r := setupTestRouter(t)
	user := createTestUser(t, DB, "student1", RoleParticipant)
	ev := createTestEvent(t, DB, nil, time.Now().Add(24*time.Hour))

	w := doJSON(t, r, http.MethodPost, "/api/events/"+uintParam(ev.ID)+"/cancel", tokenFor(t, user), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestJoinCircleEndpoint(t *testing.T) {
	r := setupTestRouter(t)
	user := createTestUser(t, DB, "student1", RoleParticipant)
	circle := createTestCircle(t, DB, intPtr(5))
	token := tokenFor(t, user)

	path := "/api/circles/" + uintParam(circle.ID) + "/join"

	w := doJSON(t, r, http.MethodPost, path, token, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// joining again is acknowledged, not rejected
	w = doJSON(t, r, http.MethodPost, path, token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRequired(t *testing.T) {
	r := setupTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/dashboard", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/dashboard", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminGate(t *testing.T) {
	r := setupTestRouter(t)
	user := createTestUser(t, DB, "student1", RoleParticipant)
	admin := createTestUser(t, DB, "admin1", RoleAdmin)

	w := doJSON(t, r, http.MethodGet, "/api/admin/dashboard", tokenFor(t, user), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/admin/dashboard", tokenFor(t, admin), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMarkSessionAttendanceEndpoint_Forbidden(t *testing.T) {
	r := setupTestRouter(t)
	student := createTestUser(t, DB, "student1", RoleParticipant)
	circle := createTestCircle(t, DB, nil)
	member := addCircleMember(t, DB, circle.ID, student.ID, MemberRoleMember)
	session := createTestSession(t, DB, circle.ID, true)

	w := doJSON(t, r, http.MethodPost, "/api/sessions/"+uintParam(session.ID)+"/attendance",
		tokenFor(t, student), gin.H{"member_id": member.ID, "attended": true})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMarkSessionAttendanceEndpoint_Teacher(t *testing.T) {
	r := setupTestRouter(t)
	teacher := createTestUser(t, DB, "teacher1", RoleParticipant)
	student := createTestUser(t, DB, "student1", RoleParticipant)
	circle := createTestCircle(t, DB, nil)
	addCircleMember(t, DB, circle.ID, teacher.ID, MemberRoleTeacher)
	member := addCircleMember(t, DB, circle.ID, student.ID, MemberRoleMember)
	session := createTestSession(t, DB, circle.ID, true)

	w := doJSON(t, r, http.MethodPost, "/api/sessions/"+uintParam(session.ID)+"/attendance",
		tokenFor(t, teacher), gin.H{"member_id": member.ID, "attended": true, "late_minutes": 5})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestEventAttendanceEndpoint_StaffOnly(t *testing.T) {
	r := setupTestRouter(t)
	student := createTestUser(t, DB, "student1", RoleParticipant)
	staff := createTestUser(t, DB, "staff1", RoleManager)
	ev := createTestEvent(t, DB, nil, time.Now().Add(24*time.Hour))

	reg, err := RegisterForEvent(DB, student.ID, ev.ID)
	require.NoError(t, err)

	path := "/api/registrations/" + uintParam(reg.ID) + "/attendance"

	w := doJSON(t, r, http.MethodPut, path, tokenFor(t, student), gin.H{"attended": true})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, r, http.MethodPut, path, tokenFor(t, staff), gin.H{"attended": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated Registration
	require.NoError(t, DB.First(&updated, reg.ID).Error)
	assert.True(t, updated.Attended)
}

func TestPublicEventListing(t *testing.T) {
	r := setupTestRouter(t)
	createTestEvent(t, DB, nil, time.Now().Add(24*time.Hour))

	w := doJSON(t, r, http.MethodGet, "/events", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var events []Event
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	assert.Len(t, events, 1)
}

func TestAdminAnnouncements(t *testing.T) {
	r := setupTestRouter(t)
	admin := createTestUser(t, DB, "admin1", RoleAdmin)
	student := createTestUser(t, DB, "student1", RoleParticipant)

	// non-admins cannot broadcast
	w := doJSON(t, r, http.MethodPost, "/api/admin/announcements", tokenFor(t, student),
		gin.H{"title": "Eid schedule", "message": "Campus closed Thursday"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/admin/announcements", tokenFor(t, admin),
		gin.H{"title": "Eid schedule", "message": "Campus closed Thursday"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// every active user received the broadcast as a notification
	var n int64
	require.NoError(t, DB.Model(&Notification{}).Where("user_id = ?", student.ID).Count(&n).Error)
	assert.EqualValues(t, 1, n)

	w = doJSON(t, r, http.MethodGet, "/api/admin/announcements", tokenFor(t, admin), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var announcements []Announcement
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &announcements))
	require.Len(t, announcements, 1)
	assert.Equal(t, "Eid schedule", announcements[0].Title)
	assert.Equal(t, admin.ID, announcements[0].CreatedBy)
}

func TestAdminEventsIncludeInactive(t *testing.T) {
	r := setupTestRouter(t)
	admin := createTestUser(t, DB, "admin1", RoleAdmin)
	ev := createTestEvent(t, DB, nil, time.Now().Add(24*time.Hour))
	require.NoError(t, DB.Model(ev).Update("is_active", false).Error)

	// gone from the public listing
	w := doJSON(t, r, http.MethodGet, "/events", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var public []Event
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &public))
	assert.Empty(t, public)

	// still reachable for admins
	w = doJSON(t, r, http.MethodGet, "/api/admin/events", tokenFor(t, admin), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all []Event
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	require.Len(t, all, 1)
	assert.False(t, all[0].IsActive)
}

func TestEventSearch_CaseInsensitive(t *testing.T) {
	r := setupTestRouter(t)
	createTestEvent(t, DB, nil, time.Now().Add(24*time.Hour))

	w := doJSON(t, r, http.MethodGet, "/events?search=TAJWEED", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var events []Event
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	assert.Len(t, events, 1)
}
