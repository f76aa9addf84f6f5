package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfview/internal/api"
	"perfview/internal/config"
	"perfview/internal/credstore"
	"perfview/internal/session"
	"perfview/internal/web"
)

// fakeAnalyzer stands in for the upstream analyzer service.
type fakeAnalyzer struct {
	currentCode   *api.Code
	analytics     []api.TopicAverage
	syllabusFail  string
	answerScores  map[string]float64
	answerFail    string
	generateCalls int
}

func (f *fakeAnalyzer) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
			Code     string `json:"code"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		switch {
		case req.Username == "teacher" && req.Password == "teacher123":
			json.NewEncoder(w).Encode(map[string]any{
				"id": 1, "username": "teacher", "role": "teacher", "token": "teacher-token",
			})
		case req.Username == "student1" && req.Password == "student123":
			if req.Code != "GOOD1234" {
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"detail": "Invalid or expired code"})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"id": 2, "username": "student1", "role": "student", "token": "student-token",
			})
		default:
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"detail": "Invalid credentials"})
		}
	})

	mux.HandleFunc("GET /api/teacher/current-code", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(f.currentCode)
	})

	mux.HandleFunc("POST /api/teacher/generate-code", func(w http.ResponseWriter, r *http.Request) {
		f.generateCalls++
		f.currentCode = &api.Code{Code: "GOOD1234", ExpiresAt: "2026-08-30T13:00:00"}
		json.NewEncoder(w).Encode(f.currentCode)
	})

	mux.HandleFunc("GET /api/teacher/analytics", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"topic_averages": f.analytics})
	})

	mux.HandleFunc("POST /api/teacher/upload-syllabus", func(w http.ResponseWriter, r *http.Request) {
		if f.syllabusFail != "" {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"detail": f.syllabusFail})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"message": "Syllabus uploaded successfully",
			"topics":  []string{"Algebra", "Geometry", "Calculus"},
		})
	})

	mux.HandleFunc("POST /api/student/upload-answer", func(w http.ResponseWriter, r *http.Request) {
		if f.answerFail != "" {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"detail": f.answerFail})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"message": "ok", "scores": f.answerScores})
	})

	return mux
}

type testApp struct {
	engine   *gin.Engine
	sessions *session.Manager
	upstream *fakeAnalyzer
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	upstream := &fakeAnalyzer{}
	srv := httptest.NewServer(upstream.handler())
	t.Cleanup(srv.Close)

	store, err := credstore.Open(filepath.Join(t.TempDir(), "creds.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	var sessions *session.Manager
	client := api.NewClient(
		config.UpstreamConfig{BaseURL: srv.URL},
		api.TokenFunc(func() string { return sessions.Token() }),
		zerolog.Nop(),
	)
	sessions = session.NewManager(store, client, zerolog.Nop())
	sessions.Hydrate()

	templates, err := web.Templates()
	require.NoError(t, err)

	engine := gin.New()
	engine.SetHTMLTemplate(templates)
	NewHandlerSet(zerolog.Nop(), sessions, client).Register(engine)

	return &testApp{engine: engine, sessions: sessions, upstream: upstream}
}

func (a *testApp) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	a.engine.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) postForm(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	a.engine.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) postFile(t *testing.T, path, filename, contents string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(part, contents)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	a.engine.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) loginTeacher(t *testing.T) {
	t.Helper()
	rec := a.postForm(t, "/login", url.Values{
		"role": {"teacher"}, "username": {"teacher"}, "password": {"teacher123"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/teacher", rec.Header().Get("Location"))
}

func (a *testApp) loginStudent(t *testing.T) {
	t.Helper()
	rec := a.postForm(t, "/login", url.Values{
		"role": {"student"}, "username": {"student1"}, "password": {"student123"}, "code": {"good1234"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/student", rec.Header().Get("Location"))
}

func TestRootRedirectsToLogin(t *testing.T) {
	app := newTestApp(t)
	rec := app.get(t, "/")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestGuardRedirectsAnonymous(t *testing.T) {
	app := newTestApp(t)
	for _, path := range []string{"/teacher", "/student"} {
		rec := app.get(t, path)
		assert.Equal(t, http.StatusSeeOther, rec.Code, path)
		assert.Equal(t, "/login", rec.Header().Get("Location"), path)
	}
}

func TestGuardRedirectsWrongRole(t *testing.T) {
	app := newTestApp(t)
	app.loginTeacher(t)

	rec := app.get(t, "/student")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestLoginScreenBouncesSignedInUser(t *testing.T) {
	app := newTestApp(t)
	app.loginTeacher(t)

	rec := app.get(t, "/login")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/teacher", rec.Header().Get("Location"))
}

func TestTeacherLoginAndDashboard(t *testing.T) {
	app := newTestApp(t)
	app.loginTeacher(t)

	sess, ok := app.sessions.Snapshot()
	require.True(t, ok)
	assert.Equal(t, session.RoleTeacher, sess.Role)

	rec := app.get(t, "/teacher")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Welcome, teacher")
	assert.Contains(t, body, "No active code")
}

func TestStudentLoginUppercasesCode(t *testing.T) {
	app := newTestApp(t)
	app.loginStudent(t)

	sess, ok := app.sessions.Snapshot()
	require.True(t, ok)
	assert.Equal(t, session.RoleStudent, sess.Role)
}

func TestStudentLoginWithoutCode(t *testing.T) {
	app := newTestApp(t)
	rec := app.postForm(t, "/login", url.Values{
		"role": {"student"}, "username": {"student1"}, "password": {"student123"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Login code is required")

	_, ok := app.sessions.Snapshot()
	assert.False(t, ok, "no session may be created")
}

func TestStudentLoginWithInvalidCode(t *testing.T) {
	app := newTestApp(t)
	rec := app.postForm(t, "/login", url.Values{
		"role": {"student"}, "username": {"student1"}, "password": {"student123"}, "code": {"STALE999"},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid or expired code")

	_, ok := app.sessions.Snapshot()
	assert.False(t, ok)
}

func TestGenerateCodeThenCurrentCode(t *testing.T) {
	app := newTestApp(t)
	app.loginTeacher(t)

	rec := app.postForm(t, "/teacher/generate-code", url.Values{})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/teacher", rec.Header().Get("Location"))

	rec = app.get(t, "/teacher")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "GOOD1234")
	assert.Contains(t, rec.Body.String(), "Regenerate Code")
	assert.Equal(t, 1, app.upstream.generateCalls)
}

func TestSyllabusUploadRefreshesAnalytics(t *testing.T) {
	app := newTestApp(t)
	app.loginTeacher(t)

	app.upstream.analytics = []api.TopicAverage{
		{TopicID: 1, TopicName: "Algebra", AverageScore: 72.5},
	}

	rec := app.postFile(t, "/teacher/upload-syllabus", "syllabus.pdf", "%PDF-fake")
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = app.get(t, "/teacher")
	body := rec.Body.String()
	assert.Contains(t, body, "Extracted 3 topics")
	assert.Contains(t, body, "Algebra")
	assert.Contains(t, body, "72.50%")
}

func TestSyllabusUploadFailure(t *testing.T) {
	app := newTestApp(t)
	app.loginTeacher(t)
	app.upstream.syllabusFail = "Error processing syllabus: no text"

	rec := app.postFile(t, "/teacher/upload-syllabus", "syllabus.pdf", "junk")
	require.Equal(t, http.StatusSeeOther, rec.Code)

	body := app.get(t, "/teacher").Body.String()
	assert.Contains(t, body, "Error: Error processing syllabus: no text")
}

func TestAnswerUploadShowsScores(t *testing.T) {
	app := newTestApp(t)
	app.loginStudent(t)
	app.upstream.answerScores = map[string]float64{"Algebra": 85.25, "Geometry": 40}

	rec := app.postFile(t, "/student/upload-answer", "answers.pdf", "%PDF-fake")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/student", rec.Header().Get("Location"))

	body := app.get(t, "/student").Body.String()
	assert.Contains(t, body, "analyzed successfully")
	assert.Contains(t, body, "Algebra")
	assert.Contains(t, body, "85.2%")
	assert.Contains(t, body, "40.0%")
}

func TestAnswerUploadFailureClearsScores(t *testing.T) {
	app := newTestApp(t)
	app.loginStudent(t)

	app.upstream.answerScores = map[string]float64{"Algebra": 85}
	app.postFile(t, "/student/upload-answer", "answers.pdf", "%PDF-fake")

	app.upstream.answerFail = "Unreadable PDF"
	rec := app.postFile(t, "/student/upload-answer", "answers.pdf", "junk")
	require.Equal(t, http.StatusSeeOther, rec.Code)

	body := app.get(t, "/student").Body.String()
	assert.Contains(t, body, "Error: Unreadable PDF")
	assert.NotContains(t, body, "Your Topic Scores", "no score grid after a failure")
}

func TestLogoutEndsSession(t *testing.T) {
	app := newTestApp(t)
	app.loginTeacher(t)

	rec := app.postForm(t, "/logout", url.Values{})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = app.get(t, "/teacher")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestLogoutDiscardsStudentDashboardState(t *testing.T) {
	app := newTestApp(t)
	app.loginStudent(t)
	app.upstream.answerScores = map[string]float64{"Algebra": 85}

	app.postFile(t, "/student/upload-answer", "answers.pdf", "%PDF-fake")
	require.Contains(t, app.get(t, "/student").Body.String(), "Your Topic Scores")

	app.postForm(t, "/logout", url.Values{})
	app.loginStudent(t)

	body := app.get(t, "/student").Body.String()
	assert.NotContains(t, body, "Your Topic Scores", "previous user's scores must not survive logout")
	assert.NotContains(t, body, "85.0%")
	assert.NotContains(t, body, "analyzed successfully")
}

func TestLogoutDiscardsTeacherDashboardState(t *testing.T) {
	app := newTestApp(t)
	app.loginTeacher(t)
	app.upstream.syllabusFail = "Error processing syllabus: no text"

	app.postFile(t, "/teacher/upload-syllabus", "syllabus.pdf", "junk")
	require.Contains(t, app.get(t, "/teacher").Body.String(), "Error processing syllabus")

	app.postForm(t, "/logout", url.Values{})
	app.loginTeacher(t)

	body := app.get(t, "/teacher").Body.String()
	assert.NotContains(t, body, "Error processing syllabus", "previous user's upload message must not survive logout")
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)

	rec := app.get(t, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.NotContains(t, rec.Body.String(), "role")

	app.loginTeacher(t)
	rec = app.get(t, "/healthz")
	assert.Contains(t, rec.Body.String(), `"role":"teacher"`)
}
