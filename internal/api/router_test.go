package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhall/engine/internal/api"
	"github.com/taskhall/engine/internal/api/handlers"
	"github.com/taskhall/engine/internal/repository"
	"github.com/taskhall/engine/internal/services"
	"github.com/taskhall/engine/internal/testutil"
)

type testServer struct {
	t       *testing.T
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := testutil.NewDB(t)

	users := repository.NewUserRepository(db)
	surveys := repository.NewSurveyRepository(db)
	fills := repository.NewFillRepository(db)
	ledger := services.NewLedgerService(db, users, repository.NewLedgerRepository(db))
	auth := services.NewAuthService(db, users, ledger, services.NewMemoryDenylist(), services.AuthOptions{
		Secret:      []byte(strings.Repeat("k", 32)),
		TokenTTL:    time.Hour,
		SignupBonus: 100,
	})
	userSvc := services.NewUserService(users, 85)
	surveySvc := services.NewSurveyService(db, surveys, ledger, services.PublishCostPolicy{Percent: 100})
	fillSvc := services.NewFillService(db, fills, surveys, users, ledger, services.FillPolicy{
		MaxDuration:     4 * time.Hour,
		CreditOnApprove: 1,
		CreditOnReject:  -2,
	})

	h := api.NewRouter(api.Dependencies{
		Sessions:       auth,
		RequestTimeout: 5 * time.Second,
		HealthHandler:  handlers.NewHealthHandler(db),
		AuthHandler:    handlers.NewAuthHandler(auth, 85),
		UsersHandler:   handlers.NewUsersHandler(userSvc, services.NewProfileService(repository.NewProfileRepository(db))),
		SurveysHandler: handlers.NewSurveysHandler(surveySvc, fillSvc),
		FillsHandler:   handlers.NewFillsHandler(fillSvc),
		PointsHandler:  handlers.NewPointsHandler(ledger, userSvc),
		ReportsHandler: handlers.NewReportsHandler(services.NewReportService(
			repository.NewReportRepository(db), users, surveys,
		)),
	})
	return &testServer{t: t, handler: h}
}

func (s *testServer) do(method, path, token string, body any) (int, map[string]any) {
	s.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)

	out := map[string]any{}
	if rr.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	}
	return rr.Code, out
}

func (s *testServer) register(email, nickname string) (string, map[string]any) {
	s.t.Helper()
	code, body := s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"email": email, "nickname": nickname, "password": "secret1",
	})
	require.Equal(s.t, http.StatusCreated, code, body)
	return body["access_token"].(string), body["user"].(map[string]any)
}

func errCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	c, _ := e["code"].(string)
	return c
}

func TestPublishFillApproveFlow(t *testing.T) {
	s := newTestServer(t)
	ownerTok, owner := s.register("owner@campus.test", "owner")
	fillerTok, _ := s.register("filler@campus.test", "filler")
	assert.Equal(t, float64(100), owner["points"])

	code, survey := s.do(http.MethodPost, "/api/v1/surveys", ownerTok, map[string]any{
		"title":         "Dining hall habits",
		"link":          "https://forms.campus.test/dining",
		"reward_points": 50,
	})
	require.Equal(t, http.StatusCreated, code, survey)
	assert.Equal(t, "active", survey["status"])
	surveyID := survey["id"].(string)

	code, bal := s.do(http.MethodGet, "/api/v1/points/balance", ownerTok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(50), bal["points"])

	code, fill := s.do(http.MethodPost, "/api/v1/surveys/"+surveyID+"/fills", fillerTok, map[string]any{"duration_seconds": 300})
	require.Equal(t, http.StatusCreated, code, fill)
	assert.Equal(t, "pending", fill["status"])
	fillID := fill["id"].(string)

	code, body := s.do(http.MethodPost, "/api/v1/surveys/"+surveyID+"/fills", fillerTok, map[string]any{"duration_seconds": 300})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "already_filled", errCode(body))

	code, body = s.do(http.MethodPost, "/api/v1/fills/"+fillID+"/review", fillerTok, map[string]any{"decision": "approve"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "not_survey_owner", errCode(body))

	code, fill = s.do(http.MethodPost, "/api/v1/fills/"+fillID+"/review", ownerTok, map[string]any{"status": "approved"})
	require.Equal(t, http.StatusOK, code, fill)
	assert.Equal(t, "approved", fill["status"])

	code, body = s.do(http.MethodPost, "/api/v1/fills/"+fillID+"/review", ownerTok, map[string]any{"decision": "reject"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "already_reviewed", errCode(body))

	code, bal = s.do(http.MethodGet, "/api/v1/points/balance", fillerTok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(150), bal["points"])
	assert.Equal(t, float64(50), bal["activity_points"])

	code, bal = s.do(http.MethodGet, "/api/v1/points/balance", ownerTok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(50), bal["points"])

	code, logs := s.do(http.MethodGet, "/api/v1/points/logs?type=earn", fillerTok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), logs["total"])
	user := logs["user"].(map[string]any)
	assert.Equal(t, float64(150), user["points"])

	code, list := s.do(http.MethodGet, "/api/v1/surveys/"+surveyID+"/fills", ownerTok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), list["total"])

	code, body = s.do(http.MethodGet, "/api/v1/surveys/"+surveyID+"/fills", fillerTok, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "not_survey_owner", errCode(body))

	code, mine := s.do(http.MethodGet, "/api/v1/fills/me", fillerTok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), mine["total"])

	code, closed := s.do(http.MethodPost, "/api/v1/surveys/"+surveyID+"/close", ownerTok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "closed", closed["status"])

	code, body = s.do(http.MethodPost, "/api/v1/surveys/"+surveyID+"/close", ownerTok, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "already_closed", errCode(body))
}

func TestPublishBeyondBalance(t *testing.T) {
	s := newTestServer(t)
	tok, _ := s.register("poor@campus.test", "poor")

	code, body := s.do(http.MethodPost, "/surveys", tok, map[string]any{
		"title":         "Too generous",
		"link":          "https://forms.campus.test/x",
		"reward_points": 500,
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "insufficient_balance", errCode(body))

	code, body = s.do(http.MethodPost, "/surveys", tok, map[string]any{
		"title":         "Overflowing reward",
		"link":          "https://forms.campus.test/x",
		"reward_points": int64(92233720368547759),
	})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "validation_error", errCode(body))

	code, bal := s.do(http.MethodGet, "/points/balance", tok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(100), bal["points"])
}

func TestAuthErrors(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(http.MethodGet, "/api/v1/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "unauthenticated", errCode(body))

	code, body = s.do(http.MethodGet, "/api/v1/users/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "unauthenticated", errCode(body))

	code, body = s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]any{"email": "bad", "password": "1"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Contains(t, details, "email")
	assert.Contains(t, details, "nickname")
	assert.Contains(t, details, "password")

	tok, _ := s.register("eve@campus.test", "eve")
	code, _ = s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"email": "eve@campus.test", "nickname": "eve2", "password": "secret1",
	})
	assert.Equal(t, http.StatusConflict, code)

	code, body = s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]any{"email": "eve@campus.test", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "invalid_credential", errCode(body))

	code, login := s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]any{"email": "eve@campus.test", "password": "secret1"})
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, login["access_token"])

	code, _ = s.do(http.MethodPost, "/api/v1/auth/logout", tok, nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = s.do(http.MethodGet, "/api/v1/users/me", tok, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, me := s.do(http.MethodGet, "/users/me", login["access_token"].(string), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "eve", me["nickname"])
}

func TestSurveyListingIsPublic(t *testing.T) {
	s := newTestServer(t)
	tok, _ := s.register("pub@campus.test", "pub")
	for _, title := range []string{"one", "two"} {
		code, _ := s.do(http.MethodPost, "/surveys", tok, map[string]any{
			"title": title, "link": "https://forms.campus.test/" + title, "reward_points": 10, "estimated_minutes": 5,
		})
		require.Equal(t, http.StatusCreated, code)
	}

	code, page := s.do(http.MethodGet, "/api/v1/surveys?page_size=1", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), page["total"])
	assert.Len(t, page["items"], 1)
	assert.Equal(t, "two", page["items"].([]any)[0].(map[string]any)["title"])

	code, page = s.do(http.MethodGet, "/api/v1/surveys?min_points=11", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(0), page["total"])

	code, page = s.do(http.MethodGet, "/surveys?keyword=ON", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), page["total"])
	assert.Equal(t, "one", page["items"].([]any)[0].(map[string]any)["title"])

	code, body := s.do(http.MethodGet, "/api/v1/surveys?mine=true", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "unauthenticated", errCode(body))

	code, page = s.do(http.MethodGet, "/api/v1/surveys?mine=true", tok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), page["total"])

	code, body = s.do(http.MethodGet, "/api/v1/surveys?page=x", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, body["error"].(map[string]any)["details"], "page")

	code, body = s.do(http.MethodGet, "/api/v1/surveys/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = s.do(http.MethodGet, "/api/v1/surveys/01890000-0000-7000-8000-000000000000", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestProfileAndMatches(t *testing.T) {
	s := newTestServer(t)
	aliceTok, _ := s.register("alice@campus.test", "alice")
	bobTok, _ := s.register("bob@campus.test", "bob")

	code, p := s.do(http.MethodGet, "/api/v1/users/me/profile", aliceTok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(0), p["profile_completion"])

	code, p = s.do(http.MethodPatch, "/api/v1/users/me/profile", aliceTok, map[string]any{
		"college": "Engineering", "major": "CS", "mbti": "intj", "skills": []string{"go", " "},
	})
	require.Equal(t, http.StatusOK, code, p)
	assert.Equal(t, "INTJ", p["mbti"])
	assert.Equal(t, []any{"go"}, p["skills"])

	code, p = s.do(http.MethodPatch, "/api/v1/users/me/profile", bobTok, map[string]any{"college": "Engineering"})
	require.Equal(t, http.StatusOK, code, p)

	code, p = s.do(http.MethodPatch, "/api/v1/users/me/profile", bobTok, map[string]any{"age": 500})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, p["error"].(map[string]any)["details"], "age")

	code, m := s.do(http.MethodGet, "/api/v1/users/me/profile/matches?college=engineer", bobTok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), m["count"])
	assert.Equal(t, "INTJ", m["items"].([]any)[0].(map[string]any)["mbti"])

	code, m = s.do(http.MethodGet, "/api/v1/users/me/profile/matches", aliceTok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), m["count"], "defaults to the caller's college")

	code, m = s.do(http.MethodGet, "/api/v1/users/me/profile/matches?mbti=INTJ&college=", bobTok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), m["count"])

	code, p = s.do(http.MethodPut, "/api/v1/users/me/profile", aliceTok, map[string]any{"major": "Math"})
	require.Equal(t, http.StatusOK, code)
	assert.Nil(t, p["college"])
	assert.Equal(t, "Math", p["major"])

	code, m = s.do(http.MethodGet, "/api/v1/users/me/profile/matches?college=engineer", bobTok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(0), m["count"])
	assert.Equal(t, []any{}, m["items"])
}

func TestReports(t *testing.T) {
	s := newTestServer(t)
	tok, user := s.register("rep@campus.test", "rep")

	code, body := s.do(http.MethodPost, "/api/v1/reports", tok, map[string]any{
		"target_type": "user", "target_id": user["id"], "reason": "testing",
	})
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "open", body["status"])

	code, body = s.do(http.MethodPost, "/api/v1/reports", tok, map[string]any{
		"target_type": "comment", "target_id": "nope",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Contains(t, details, "target_type")
	assert.Contains(t, details, "target_id")
	assert.Contains(t, details, "reason")
}

func TestMalformedBody(t *testing.T) {
	s := newTestServer(t)
	tok, _ := s.register("mal@campus.test", "mal")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/surveys", strings.NewReader("{"))
	req.Header.Set("Authorization", "Bearer "+tok)
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "validation_error")
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	code, body := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	code, body = s.do(http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", body["status"])
}
