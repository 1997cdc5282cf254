package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/oksasatya/go-expense-split/config"
	"github.com/oksasatya/go-expense-split/internal/container"
	"github.com/oksasatya/go-expense-split/internal/infrastructure/notify"
	"github.com/oksasatya/go-expense-split/internal/interface/middleware"
	"github.com/oksasatya/go-expense-split/pkg/helpers"
	"github.com/oksasatya/go-expense-split/pkg/validation"
)

type envelope struct {
	Status  int             `json:"status"`
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

type testServer struct {
	t      *testing.T
	engine *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validation.Init()
	helpers.PasswordCost = bcrypt.MinCost
	container.Reset()
	t.Cleanup(container.Reset)

	cfg := &config.Config{
		JWTAccessSecret:     "test-access",
		JWTRefreshSecret:    "test-refresh",
		AccessTTL:           time.Hour,
		RefreshTTL:          24 * time.Hour,
		SessionTTL:          24 * time.Hour,
		VerificationCodeTTL: time.Hour,
		ResetTokenTTL:       10 * time.Minute,
		ResetPasswordURL:    "http://localhost:3000/reset-password",
		ResendCodeRateLimit: 5,
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	container.SetConfig(cfg)
	container.SetLogger(logger)
	container.SetJWT(helpers.NewJWTManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTTL, cfg.RefreshTTL))

	r := gin.New()
	r.Use(middleware.RequestIDMiddleware(), middleware.RealIP())
	reg := NewRegistry(r)
	InitModules(reg)
	reg.RegisterAll()
	return &testServer{t: t, engine: r}
}

type reqOpt func(*http.Request)

func bearer(token string) reqOpt {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func header(k, v string) reqOpt {
	return func(r *http.Request) { r.Header.Set(k, v) }
}

func cookie(c *http.Cookie) reqOpt {
	return func(r *http.Request) { r.AddCookie(c) }
}

func (s *testServer) do(method, path string, body any, opts ...reqOpt) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, o := range opts {
		o(req)
	}
	return s.serve(req)
}

func (s *testServer) serve(req *http.Request) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func signUpBody(username, college string) map[string]any {
	return map[string]any{
		"username":         username,
		"email":            username + "@x.com",
		"password":         "Pw1!",
		"confirm_password": "Pw1!",
		"college":          college,
		"semester":         "3",
		"payment_method":   "Cash",
	}
}

func (s *testServer) pendingCode(email string) string {
	s.t.Helper()
	u, err := container.GetMemoryStore().Users().GetByEmail(context.Background(), email)
	require.NoError(s.t, err)
	require.True(s.t, u.HasOutstandingCode())
	return *u.VerificationCode
}

type loginData struct {
	Username             string `json:"username"`
	College              string `json:"college"`
	Semester             int    `json:"semester"`
	DefaultPaymentMethod string `json:"default_payment_method"`
	Token                string `json:"token"`
	RefreshToken         string `json:"refresh_token"`
}

// register signs up, verifies and logs in, returning the access token and session cookie.
func (s *testServer) register(username, college string) (string, *http.Cookie) {
	s.t.Helper()
	email := username + "@x.com"
	rec, _ := s.do(http.MethodPost, "/api/signup", signUpBody(username, college))
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	rec, _ = s.do(http.MethodPost, "/api/verify_code", map[string]string{"email": email, "code": s.pendingCode(email)})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	rec, env := s.do(http.MethodPost, "/api/login", map[string]string{"email": email, "password": "Pw1!"})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())

	var session *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == helpers.SessionCookieName {
			session = c
		}
	}
	require.NotNil(s.t, session)
	return decode[loginData](s.t, env.Data).Token, session
}

func TestSignUpVerifyLoginFlow(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(http.MethodPost, "/api/signup", signUpBody("alice", "MIT"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, env := s.do(http.MethodPost, "/api/signup", signUpBody("alice", "MIT"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, env.Success)

	login := map[string]string{"email": "alice@x.com", "password": "Pw1!"}
	rec, env = s.do(http.MethodPost, "/api/login", login)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, env.Message, "not verified")

	code := s.pendingCode("alice@x.com")
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	rec, _ = s.do(http.MethodPost, "/api/verify_code", map[string]string{"email": "alice@x.com", "code": wrong})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(http.MethodPost, "/api/verify_code", map[string]string{"email": "nobody@x.com", "code": code})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = s.do(http.MethodPost, "/api/verify_code", map[string]string{"email": "alice@x.com", "code": code})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env = s.do(http.MethodPost, "/api/login", map[string]string{"email": "alice@x.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, env = s.do(http.MethodPost, "/api/login", login)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decode[loginData](t, env.Data)
	assert.Equal(t, "alice", data.Username)
	assert.Equal(t, "MIT", data.College)
	assert.Equal(t, 3, data.Semester)
	assert.Equal(t, "Cash", data.DefaultPaymentMethod)
	assert.NotEmpty(t, data.Token)
	assert.NotEmpty(t, data.RefreshToken)

	rec, env = s.do(http.MethodPost, "/api/token/refresh", map[string]string{"refresh_token": data.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decode[map[string]string](t, env.Data)["token"])

	rec, _ = s.do(http.MethodPost, "/api/token/refresh", map[string]string{"refresh_token": data.Token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignUpValidation(t *testing.T) {
	s := newTestServer(t)

	body := signUpBody("bob", "MIT")
	body["email"] = "nope"
	body["semester"] = 9
	body["college"] = ""
	rec, env := s.do(http.MethodPost, "/api/signup", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields := decode[map[string]string](t, env.Error)
	assert.Equal(t, "must be a valid email", fields["email"])
	assert.Equal(t, "must be between 1 and 8", fields["semester"])
	assert.Equal(t, "is required", fields["college"])

	body = signUpBody("bob", "MIT")
	body["confirm_password"] = "other"
	rec, env = s.do(http.MethodPost, "/api/signup", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[map[string]string](t, env.Error), "confirm_password")

	body = signUpBody("bob", "MIT")
	delete(body, "payment_method")
	rec, _ = s.do(http.MethodPost, "/api/signup", body)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, env = s.do(http.MethodPost, "/api/signup", map[string]any{"semester": "third"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid payload", env.Message)
}

func TestAuthenticationModes(t *testing.T) {
	s := newTestServer(t)
	token, session := s.register("alice", "MIT")

	rec, _ := s.do(http.MethodGet, "/api/categories", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = s.do(http.MethodGet, "/api/categories", nil, bearer(token))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(http.MethodGet, "/api/categories", nil, cookie(session))
	assert.Equal(t, http.StatusOK, rec.Code)

	// A bad header is not rescued by a valid session cookie.
	rec, _ = s.do(http.MethodGet, "/api/categories", nil, header("Authorization", "Token "+token), cookie(session))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, _ = s.do(http.MethodGet, "/api/categories", nil, bearer("garbage"), cookie(session))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = s.do(http.MethodPost, "/api/logout", nil, cookie(session))
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.do(http.MethodGet, "/api/categories", nil, cookie(session))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Bearer tokens are stateless and survive logout until they expire.
	rec, _ = s.do(http.MethodGet, "/api/categories", nil, bearer(token))
	assert.Equal(t, http.StatusOK, rec.Code)
}

type groupData struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type settlementData struct {
	ID            int64  `json:"id"`
	Amount        string `json:"amount"`
	PaymentStatus string `json:"payment_status"`
	GroupName     string `json:"group_name"`
}

func TestGroupsExpensesAndSettlements(t *testing.T) {
	s := newTestServer(t)
	alice, _ := s.register("alice", "MIT")
	bob, _ := s.register("bob", "MIT")
	carol, _ := s.register("carol", "MIT")
	s.register("dave", "Stanford")

	rec, env := s.do(http.MethodGet, "/api/categories", nil, bearer(alice))
	require.Equal(t, http.StatusOK, rec.Code)
	cats := decode[[]struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}](t, env.Data)
	require.NotEmpty(t, cats)
	food := cats[0].ID

	rec, env = s.do(http.MethodPost, "/api/groups", map[string]string{"name": "Trip"}, bearer(alice))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	g := decode[groupData](t, env.Data)
	gp := "/api/groups/" + strconv.FormatInt(g.ID, 10)

	rec, _ = s.do(http.MethodPost, "/api/groups", map[string]string{"name": "Trip"}, bearer(alice))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = s.do(http.MethodPost, gp+"/add_member", map[string]string{"username": "bob"}, bearer(alice))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec, _ = s.do(http.MethodPost, gp+"/add_member", map[string]string{"username": "bob"}, bearer(alice))
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec, _ = s.do(http.MethodPost, gp+"/add_member", map[string]string{"username": "zed"}, bearer(alice))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = s.do(http.MethodPost, gp+"/add_member", map[string]string{"username": "carol"}, bearer(bob))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = s.do(http.MethodPost, "/api/groups/999/add_member", map[string]string{"username": "carol"}, bearer(alice))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = s.do(http.MethodGet, gp, nil, bearer(alice), header("X-Username", "alice"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	details := decode[struct {
		Group struct {
			Members []struct {
				Username string `json:"username"`
			} `json:"members"`
		} `json:"group"`
		Available []struct {
			Username string `json:"username"`
		} `json:"available_members"`
	}](t, env.Data)
	require.Len(t, details.Group.Members, 2)
	assert.Equal(t, "alice", details.Group.Members[0].Username)
	require.Len(t, details.Available, 1)
	assert.Equal(t, "carol", details.Available[0].Username)

	rec, _ = s.do(http.MethodGet, gp, nil, bearer(alice), header("X-Username", "bob"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = s.do(http.MethodGet, gp, nil, bearer(carol))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = s.do(http.MethodGet, "/api/groups/999", nil, bearer(alice))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = s.do(http.MethodGet, "/api/groups", nil, bearer(bob), header("X-Username", "bob"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[map[string][]groupData](t, env.Data)["groups"], 1)
	rec, env = s.do(http.MethodGet, "/api/groups", nil, bearer(carol), header("X-Username", "carol"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[map[string][]groupData](t, env.Data)["groups"])
	rec, _ = s.do(http.MethodGet, "/api/groups", nil, bearer(bob))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = s.do(http.MethodPost, gp+"/add_member", map[string]string{"username": "carol"}, bearer(alice))
	require.Equal(t, http.StatusOK, rec.Code)

	ep := "/api/expenses/" + strconv.FormatInt(g.ID, 10)
	rec, env = s.do(http.MethodPost, ep, map[string]any{"amount": "10.00", "category": food, "split_type": "equal"}, bearer(bob))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[struct {
		Expense struct {
			Amount string `json:"amount"`
		} `json:"expense"`
		Settlements []settlementData `json:"settlements"`
	}](t, env.Data)
	assert.Equal(t, "10.00", created.Expense.Amount)
	require.Len(t, created.Settlements, 3)
	assert.Equal(t, "3.34", created.Settlements[0].Amount)
	assert.Equal(t, "3.33", created.Settlements[1].Amount)
	assert.Equal(t, "3.33", created.Settlements[2].Amount)

	rec, env = s.do(http.MethodPost, ep, map[string]any{"amount": 0, "category": food}, bearer(bob))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[map[string]string](t, env.Error), "amount")
	rec, _ = s.do(http.MethodPost, ep, map[string]any{"amount": "5", "category": food, "split_type": "percent"}, bearer(bob))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = s.do(http.MethodPost, ep, map[string]any{"amount": "5", "category": food, "date": "03/01/2024"}, bearer(bob))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = s.do(http.MethodPost, "/api/expenses/999", map[string]any{"amount": "5", "category": food}, bearer(bob))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = s.do(http.MethodGet, "/api/settlements/carol", nil, bearer(carol))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	mine := decode[map[string][]settlementData](t, env.Data)["settlements"]
	require.Len(t, mine, 1)
	assert.Equal(t, "3.33", mine[0].Amount)
	assert.Equal(t, "Pending", mine[0].PaymentStatus)
	assert.Equal(t, "Trip", mine[0].GroupName)

	rec, _ = s.do(http.MethodGet, "/api/settlements/bob", nil, bearer(carol))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	sp := "/api/settlements/" + strconv.FormatInt(mine[0].ID, 10)
	rec, _ = s.do(http.MethodPatch, sp, map[string]string{"payment_status": "Done"}, bearer(carol))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = s.do(http.MethodPatch, sp, map[string]string{"payment_status": "Completed"}, bearer(alice))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, env = s.do(http.MethodPatch, sp, map[string]string{"payment_status": "Completed"}, bearer(carol))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Completed", decode[settlementData](t, env.Data).PaymentStatus)
	rec, env = s.do(http.MethodPatch, sp, map[string]string{"payment_status": "Pending"}, bearer(carol))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Pending", decode[settlementData](t, env.Data).PaymentStatus)
}

func TestAddExpenseMultipart(t *testing.T) {
	s := newTestServer(t)
	alice, _ := s.register("alice", "MIT")
	rec, env := s.do(http.MethodPost, "/api/groups", map[string]string{"name": "Flat"}, bearer(alice))
	require.Equal(t, http.StatusCreated, rec.Code)
	ep := "/api/expenses/" + strconv.FormatInt(decode[groupData](t, env.Data).ID, 10)

	form := func(withFile bool) *http.Request {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		require.NoError(t, w.WriteField("amount", "42.50"))
		require.NoError(t, w.WriteField("category", "1"))
		require.NoError(t, w.WriteField("date", "2024-03-01"))
		if withFile {
			fw, err := w.CreateFormFile("receipt", "r.png")
			require.NoError(t, err)
			_, _ = fw.Write([]byte("png"))
		}
		require.NoError(t, w.Close())
		req := httptest.NewRequest(http.MethodPost, ep, &buf)
		req.Header.Set("Content-Type", w.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+alice)
		return req
	}

	rec, env = s.serve(form(false))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[struct {
		Expense struct {
			Amount string `json:"amount"`
			Date   string `json:"date"`
		} `json:"expense"`
		Settlements []settlementData `json:"settlements"`
	}](t, env.Data)
	assert.Equal(t, "42.50", created.Expense.Amount)
	assert.Equal(t, "2024-03-01", created.Expense.Date)
	require.Len(t, created.Settlements, 1)
	assert.Equal(t, "42.50", created.Settlements[0].Amount)

	// No receipt storage is configured in tests.
	rec, env = s.serve(form(true))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[map[string]string](t, env.Error), "receipt")
}

func TestPasswordResetFlow(t *testing.T) {
	s := newTestServer(t)
	s.register("alice", "MIT")

	rec, _ := s.do(http.MethodPost, "/api/password/reset", map[string]string{"email": "nobody@x.com"})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.do(http.MethodPost, "/api/password/reset", map[string]string{"email": "alice@x.com"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env := s.do(http.MethodPost, "/api/password/reset/confirm", map[string]string{"token": "bogus", "new_password": "New1!"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid or expired token", env.Message)
}

func TestResendCode(t *testing.T) {
	s := newTestServer(t)
	rec, _ := s.do(http.MethodPost, "/api/signup", signUpBody("alice", "MIT"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = s.do(http.MethodPost, "/api/resend_code", map[string]string{"email": "alice@x.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	code := s.pendingCode("alice@x.com")
	rec, _ = s.do(http.MethodPost, "/api/verify_code", map[string]string{"email": "alice@x.com", "code": code})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(http.MethodPost, "/api/resend_code", map[string]string{"email": "nobody@x.com"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndUnknownRoutes(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "memory", decode[map[string]string](t, env.Data)["storage"])

	rec, env = s.do(http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "route not found", env.Message)

	rec, env = s.do(http.MethodGet, "/api/signup", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "method not allowed", env.Message)
}

func TestNotifierWithoutBrokerHasNoPublisher(t *testing.T) {
	newTestServer(t)
	n, ok := buildNotifier().(*notify.QueueNotifier)
	require.True(t, ok)
	assert.True(t, n.Pub == nil, "publisher must be an untyped nil, got %T", n.Pub)
}
