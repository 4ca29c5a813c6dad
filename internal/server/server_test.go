package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-e/apiserver/config"
	"github.com/tech-e/apiserver/internal/auth"
	"github.com/tech-e/apiserver/internal/mail"
	"github.com/tech-e/apiserver/internal/payments"
	"github.com/tech-e/apiserver/internal/storage"
	"github.com/tech-e/apiserver/internal/store/storetest"
	"github.com/tech-e/apiserver/types"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "router-test-secret"

type capturedMail struct {
	mu   sync.Mutex
	msgs []mail.Message
}

func (c *capturedMail) Notify(_ context.Context, msg mail.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return nil
}

type stubGateway struct{}

func (stubGateway) CreateIntent(_ context.Context, amount int64, _ string) (payments.Intent, error) {
	return payments.Intent{ID: "pi_test_" + time.Now().Format("150405.000000000"), ClientSecret: "pi_secret_test"}, nil
}

type testAPI struct {
	t      *testing.T
	server *httptest.Server
	users  *storetest.Users
	mail   *capturedMail
}

func newTestAPI(t *testing.T, mutate func(*Deps)) *testAPI {
	t.Helper()
	api := &testAPI{t: t, users: storetest.NewUsers(), mail: &capturedMail{}}
	deps := Deps{
		Config: config.Config{
			Env:        config.EnvProduction,
			CORSOrigin: "http://localhost:3000",
			Auth:       config.AuthConfig{JWTSecret: testSecret, TokenTTL: time.Hour, BcryptCost: bcrypt.MinCost},
			Payments:   config.PaymentsConfig{Currency: "usd"},
		},
		Users:    api.users,
		Packages: storetest.NewPackages(),
		Payments: storetest.NewPayments(),
		Contacts: storetest.NewContacts(),
		Notifier: api.mail,
	}
	if mutate != nil {
		mutate(&deps)
	}
	router, err := NewRouter(deps)
	require.NoError(t, err)
	api.server = httptest.NewServer(router)
	t.Cleanup(api.server.Close)
	return api
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (r response) json(t *testing.T) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(r.body, &out), string(r.body))
	return out
}

func (api *testAPI) do(method, path, token string, body any) response {
	api.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(api.t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, api.server.URL+path, reader)
	require.NoError(api.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return api.send(req)
}

func (api *testAPI) send(req *http.Request) response {
	api.t.Helper()
	resp, err := api.server.Client().Do(req)
	require.NoError(api.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(api.t, err)
	return response{status: resp.StatusCode, header: resp.Header, body: data}
}

func (api *testAPI) register(name, email, password string) {
	api.t.Helper()
	resp := api.do(http.MethodPost, "/register", "", map[string]string{"name": name, "email": email, "password": password})
	require.Equal(api.t, http.StatusCreated, resp.status, string(resp.body))
}

func (api *testAPI) login(email, password string) (token, userID string) {
	api.t.Helper()
	resp := api.do(http.MethodPost, "/login", "", map[string]string{"email": email, "password": password})
	require.Equal(api.t, http.StatusOK, resp.status, string(resp.body))
	body := resp.json(api.t)
	return body["token"].(string), body["userId"].(string)
}

// promote stands in for the operator CLI.
func (api *testAPI) promote(email string) {
	api.t.Helper()
	user, err := api.users.FindByEmail(context.Background(), email)
	require.NoError(api.t, err)
	user.Role = types.RoleAdmin
	_, err = api.users.Save(context.Background(), user)
	require.NoError(api.t, err)
}

func (api *testAPI) adminToken() string {
	api.register("Root", "root@example.com", "rootpass")
	api.promote("root@example.com")
	token, _ := api.login("root@example.com", "rootpass")
	return token
}

func TestAccountLifecycle(t *testing.T) {
	api := newTestAPI(t, nil)

	resp := api.do(http.MethodPost, "/register", "", map[string]string{"name": "Alice", "email": "a@x.com", "password": "p1"})
	require.Equal(t, http.StatusCreated, resp.status)
	assert.Equal(t, "User registered successfully!", resp.json(t)["message"])

	resp = api.do(http.MethodPost, "/login", "", map[string]string{"email": "a@x.com", "password": "p1"})
	require.Equal(t, http.StatusOK, resp.status)
	body := resp.json(t)
	assert.Equal(t, "Login successful!", body["message"])
	assert.Equal(t, "user", body["role"])
	aliceToken := body["token"].(string)
	aliceID := body["userId"].(string)
	require.NotEmpty(t, aliceToken)

	setCookie := resp.header.Get("Set-Cookie")
	assert.Contains(t, setCookie, auth.CookieName+"="+aliceToken)
	assert.Contains(t, setCookie, "HttpOnly")
	assert.Contains(t, setCookie, "Secure")

	resp = api.do(http.MethodGet, "/users", aliceToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.status)

	adminToken := api.adminToken()

	resp = api.do(http.MethodPatch, "/users/"+aliceID+"/block", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, "User blocked successfully!", resp.json(t)["message"])

	resp = api.do(http.MethodGet, "/users/"+aliceID, adminToken, nil)
	require.Equal(t, http.StatusOK, resp.status)
	user := resp.json(t)
	assert.Equal(t, true, user["blocked"])
	assert.NotContains(t, user, "password")
	assert.NotContains(t, user, "PasswordHash")

	resp = api.do(http.MethodPatch, "/users/"+aliceID+"/block", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, "User unblocked successfully!", resp.json(t)["message"])

	resp = api.do(http.MethodGet, "/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.status)

	resp = api.do(http.MethodGet, "/users/nonexistent", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.status)

	resp = api.do(http.MethodGet, "/users", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.NotContains(t, string(resp.body), "$2a$")
}

func TestLoginErrorsHaveIdenticalShape(t *testing.T) {
	api := newTestAPI(t, nil)
	api.register("Alice", "a@x.com", "p1")

	wrongPassword := api.do(http.MethodPost, "/login", "", map[string]string{"email": "a@x.com", "password": "nope"})
	unknownEmail := api.do(http.MethodPost, "/login", "", map[string]string{"email": "b@x.com", "password": "nope"})

	assert.Equal(t, http.StatusBadRequest, wrongPassword.status)
	assert.Equal(t, wrongPassword.status, unknownEmail.status)
	assert.JSONEq(t, string(wrongPassword.body), string(unknownEmail.body))
	assert.Equal(t, "Invalid email or password.", wrongPassword.json(t)["error"])
}

func TestRegisterErrors(t *testing.T) {
	api := newTestAPI(t, nil)
	api.register("Alice", "a@x.com", "p1")

	resp := api.do(http.MethodPost, "/register", "", map[string]string{"name": "A", "email": "A@X.com", "password": "p2"})
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Equal(t, "User already exists.", resp.json(t)["error"])

	resp = api.do(http.MethodPost, "/register", "", map[string]string{"email": "c@x.com"})
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Equal(t, "All fields are required.", resp.json(t)["error"])

	req, err := http.NewRequest(http.MethodPost, api.server.URL+"/register", strings.NewReader("{broken"))
	require.NoError(t, err)
	resp = api.send(req)
	assert.Equal(t, http.StatusBadRequest, resp.status)

	api.mail.mu.Lock()
	defer api.mail.mu.Unlock()
	require.Len(t, api.mail.msgs, 1)
	assert.Equal(t, "a@x.com", api.mail.msgs[0].To)
}

func TestCookieSessionAndLogout(t *testing.T) {
	api := newTestAPI(t, nil)
	api.register("Alice", "a@x.com", "p1")
	token, userID := api.login("a@x.com", "p1")

	req, err := http.NewRequest(http.MethodGet, api.server.URL+"/me", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	resp := api.send(req)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, userID, resp.json(t)["id"])

	resp = api.do(http.MethodPost, "/logout", "", nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, "Logout successful!", resp.json(t)["message"])
	assert.Contains(t, resp.header.Get("Set-Cookie"), auth.CookieName+"=;")

	resp = api.do(http.MethodGet, "/me", "garbage.token.value", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.status)
}

func TestStaleCookieDoesNotMaskBearer(t *testing.T) {
	api := newTestAPI(t, nil)
	api.register("Alice", "a@x.com", "p1")
	token, userID := api.login("a@x.com", "p1")

	req, err := http.NewRequest(http.MethodGet, api.server.URL+"/me", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: "stale.cookie.value"})
	req.Header.Set("Authorization", "Bearer "+token)
	resp := api.send(req)
	require.Equal(t, http.StatusOK, resp.status, string(resp.body))
	assert.Equal(t, userID, resp.json(t)["id"])
}

func TestExpiredTokenIsRejected(t *testing.T) {
	api := newTestAPI(t, nil)
	api.register("Alice", "a@x.com", "p1")
	user, err := api.users.FindByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)

	past := time.Now().Add(-2 * time.Hour)
	issuer := auth.NewTokenIssuer(testSecret, time.Hour).WithClock(func() time.Time { return past })
	token, _, err := issuer.Issue(user.ID, user.Role)
	require.NoError(t, err)

	resp := api.do(http.MethodGet, "/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.status)
}

func TestSecurityHeadersAndHealth(t *testing.T) {
	api := newTestAPI(t, nil)

	resp := api.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, "nosniff", resp.header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, resp.header.Get("Strict-Transport-Security"))

	resp = api.do(http.MethodGet, "/no-such-route", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.status)
	assert.Equal(t, "Route not found.", resp.json(t)["error"])

	api.do(http.MethodGet, "/me", "not-a-token", nil)
	resp = api.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, string(resp.body), "auth_token_verifications_total")
}

func TestCORSPreflight(t *testing.T) {
	api := newTestAPI(t, nil)

	req, err := http.NewRequest(http.MethodOptions, api.server.URL+"/login", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp := api.send(req)

	assert.Equal(t, "http://localhost:3000", resp.header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.header.Get("Access-Control-Allow-Credentials"))
}

func TestContactRoutes(t *testing.T) {
	api := newTestAPI(t, nil)

	resp := api.do(http.MethodPost, "/contact", "", map[string]string{"name": "John", "email": "bad", "phone": "x", "message": "hi"})
	require.Equal(t, http.StatusBadRequest, resp.status)
	var verr struct {
		Errors []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(resp.body, &verr))
	assert.Len(t, verr.Errors, 2)

	resp = api.do(http.MethodPost, "/contact", "", map[string]string{"name": "John", "email": "john@example.com", "phone": "+1234567890", "message": "hi"})
	require.Equal(t, http.StatusCreated, resp.status)
	assert.Equal(t, "Contact message submitted successfully!", resp.json(t)["message"])

	resp = api.do(http.MethodGet, "/contact", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.status)

	admin := api.adminToken()
	resp = api.do(http.MethodGet, "/contact", admin, nil)
	require.Equal(t, http.StatusOK, resp.status)
	var list []types.Contact
	require.NoError(t, json.Unmarshal(resp.body, &list))
	require.Len(t, list, 1)

	resp = api.do(http.MethodGet, "/contact/"+list[0].ID, admin, nil)
	assert.Equal(t, http.StatusOK, resp.status)
	resp = api.do(http.MethodGet, "/contact/missing", admin, nil)
	assert.Equal(t, http.StatusNotFound, resp.status)
}

func TestPackageRoutes(t *testing.T) {
	api := newTestAPI(t, nil)
	api.register("Alice", "a@x.com", "p1")
	userToken, _ := api.login("a@x.com", "p1")
	admin := api.adminToken()

	pkg := map[string]string{"name": "Pro", "version": "1.0", "description": "All", "price": "$20"}
	resp := api.do(http.MethodPost, "/packages", userToken, pkg)
	assert.Equal(t, http.StatusForbidden, resp.status)

	resp = api.do(http.MethodPost, "/packages", admin, pkg)
	require.Equal(t, http.StatusCreated, resp.status)
	id := resp.json(t)["id"].(string)

	resp = api.do(http.MethodGet, "/packages/"+id, "", nil)
	require.Equal(t, http.StatusOK, resp.status)

	resp = api.do(http.MethodPut, "/packages/"+id, admin, map[string]string{"version": "2.0"})
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, "2.0", resp.json(t)["version"])

	resp = api.do(http.MethodGet, "/packages/"+id+"/image", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.status)

	resp = api.do(http.MethodDelete, "/packages/"+id, admin, nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, "Package deleted successfully", resp.json(t)["message"])

	resp = api.do(http.MethodGet, "/packages/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.status)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPackageImageUpload(t *testing.T) {
	api := newTestAPI(t, func(d *Deps) { d.Objects = storage.NewMemoryStorage() })
	admin := api.adminToken()

	resp := api.do(http.MethodPost, "/packages", admin, map[string]string{"name": "Pro", "version": "1", "description": "d", "price": "$1"})
	require.Equal(t, http.StatusCreated, resp.status)
	id := resp.json(t)["id"].(string)

	data := pngBytes(t)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "logo.png")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPut, api.server.URL+"/packages/"+id+"/image", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+admin)
	resp = api.send(req)
	require.Equal(t, http.StatusOK, resp.status, string(resp.body))
	assert.Equal(t, storage.PackageImageKey(id, "logo.png"), resp.json(t)["image_key"])

	resp = api.do(http.MethodGet, "/packages/"+id+"/image", "", nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, "image/png", resp.header.Get("Content-Type"))
	assert.Equal(t, data, resp.body)
}

func TestPaymentRoutes(t *testing.T) {
	api := newTestAPI(t, func(d *Deps) { d.Gateway = stubGateway{} })
	api.register("Alice", "a@x.com", "p1")
	userToken, _ := api.login("a@x.com", "p1")

	resp := api.do(http.MethodPost, "/payments/payment-intent", "", map[string]any{"amount": 1000})
	assert.Equal(t, http.StatusUnauthorized, resp.status)

	resp = api.do(http.MethodPost, "/payments/payment-intent", userToken, map[string]any{"amount": 0})
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Equal(t, "Invalid amount", resp.json(t)["error"])

	resp = api.do(http.MethodPost, "/payments/payment-intent", userToken, map[string]any{"amount": 1000})
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, "pi_secret_test", resp.json(t)["clientSecret"])

	resp = api.do(http.MethodGet, "/payments/payment-intents", userToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.status)

	admin := api.adminToken()
	resp = api.do(http.MethodGet, "/payments/payment-intents", admin, nil)
	require.Equal(t, http.StatusOK, resp.status)
	var list []types.Payment
	require.NoError(t, json.Unmarshal(resp.body, &list))
	require.Len(t, list, 1)

	resp = api.do(http.MethodGet, "/payments/payment-intent/"+list[0].PaymentIntentID, userToken, nil)
	require.Equal(t, http.StatusOK, resp.status)
	resp = api.do(http.MethodGet, "/payments/payment-intent/pi_missing", userToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.status)
}

func TestPaymentsDisabled(t *testing.T) {
	api := newTestAPI(t, nil)
	api.register("Alice", "a@x.com", "p1")
	token, _ := api.login("a@x.com", "p1")

	resp := api.do(http.MethodPost, "/payments/payment-intent", token, map[string]any{"amount": 1000})
	assert.Equal(t, http.StatusServiceUnavailable, resp.status)
}

func TestRejectBlockedLogin(t *testing.T) {
	api := newTestAPI(t, func(d *Deps) { d.Config.Auth.RejectBlocked = true })
	api.register("Alice", "a@x.com", "p1")
	_, aliceID := api.login("a@x.com", "p1")
	admin := api.adminToken()

	resp := api.do(http.MethodPatch, "/users/"+aliceID+"/block", admin, nil)
	require.Equal(t, http.StatusOK, resp.status)

	resp = api.do(http.MethodPost, "/login", "", map[string]string{"email": "a@x.com", "password": "p1"})
	assert.Equal(t, http.StatusForbidden, resp.status)
}

func TestNewRouterRequiresSecret(t *testing.T) {
	_, err := NewRouter(Deps{})
	assert.Error(t, err)
}

func TestDevelopmentModeWarnsAndTracesOrigin(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	api := newTestAPI(t, func(d *Deps) {
		d.Config.Env = config.EnvDevelopment
		d.Logger = zap.New(core)
	})
	require.Equal(t, 1, logs.FilterMessageSnippet("development mode").Len())

	api.users.Err = errors.New("connection refused")
	resp := api.do(http.MethodPost, "/register", "", map[string]string{"name": "A", "email": "a@x.com", "password": "p1"})
	require.Equal(t, http.StatusInternalServerError, resp.status)

	body := resp.json(t)
	assert.Equal(t, "Server error. Please try again later.", body["error"])
	trace, _ := body["trace"].(string)
	assert.Contains(t, trace, "connection refused")
	assert.Contains(t, trace, "(*UserService).Register")
}

func TestProductionModeHidesTrace(t *testing.T) {
	api := newTestAPI(t, nil)
	api.users.Err = errors.New("connection refused")

	resp := api.do(http.MethodPost, "/register", "", map[string]string{"name": "A", "email": "a@x.com", "password": "p1"})
	require.Equal(t, http.StatusInternalServerError, resp.status)
	_, hasTrace := resp.json(t)["trace"]
	assert.False(t, hasTrace)
}
