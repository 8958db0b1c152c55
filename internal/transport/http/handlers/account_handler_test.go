package handlers

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vedran77/v3kn/internal/logging"
	"github.com/vedran77/v3kn/internal/repository/jsonfile"
	"github.com/vedran77/v3kn/internal/service"
	"github.com/vedran77/v3kn/internal/transport/http/middleware"
)

func newTestHandler(t *testing.T) *AccountHandler {
	t.Helper()
	dir := t.TempDir()
	log, err := logging.NewDomain(filepath.Join(dir, "v3kn.log"), filepath.Join(dir, "logs"))
	if err != nil {
		t.Fatalf("NewDomain: %v", err)
	}

	users := jsonfile.NewUserRepo(dir)
	storageRepo := jsonfile.NewStorageRepo(dir)

	auth := service.NewAuthService(users, storageRepo, log, 1024)
	storage := service.NewStorageService(storageRepo, auth, log)
	return NewAccountHandler(auth, storage)
}

func password(raw string) string {
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

func TestAccountCreateAndLoginRoundTrip(t *testing.T) {
	h := newTestHandler(t)

	form := url.Values{"npid": {"alice123"}, "password": {password("hunter2")}}
	req := httptest.NewRequest(http.MethodPost, "/create", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	body := rec.Body.String()
	if !strings.HasPrefix(body, "OK:") {
		t.Fatalf("Create body = %q, want OK: prefix", body)
	}
	token := strings.TrimPrefix(body, "OK:")
	if token == "" {
		t.Fatal("Create returned an empty token")
	}

	loginForm := url.Values{"npid": {"alice123"}, "password": {password("hunter2")}}
	loginReq := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(loginForm.Encode()))
	loginReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	loginRec := httptest.NewRecorder()

	h.Login(loginRec, loginReq)

	loginBody := loginRec.Body.String()
	if !strings.HasPrefix(loginBody, "OK:"+token+":") {
		t.Errorf("Login body = %q, want it to reuse the create-time token %q", loginBody, token)
	}
}

func TestAccountCreateRejectsDuplicateNPID(t *testing.T) {
	h := newTestHandler(t)

	form := url.Values{"npid": {"alice123"}, "password": {password("hunter2")}}
	first := httptest.NewRequest(http.MethodPost, "/create", strings.NewReader(form.Encode()))
	first.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	h.Create(httptest.NewRecorder(), first)

	second := httptest.NewRequest(http.MethodPost, "/create", strings.NewReader(form.Encode()))
	second.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.Create(rec, second)

	if got := rec.Body.String(); got != "ERR:UserExists" {
		t.Errorf("second Create body = %q, want ERR:UserExists", got)
	}
}

func TestAccountCheckRequiresAuth(t *testing.T) {
	h := newTestHandler(t)

	mux := http.NewServeMux()
	mux.Handle("GET /check", middleware.Auth(h.auth)(http.HandlerFunc(h.Check)))

	req := httptest.NewRequest(http.MethodGet, "/check", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if got := rec.Body.String(); got != "ERR:MissingToken" {
		t.Errorf("Check without a bearer token = %q, want ERR:MissingToken", got)
	}
}

func TestAccountCheckSucceedsWithValidToken(t *testing.T) {
	h := newTestHandler(t)

	form := url.Values{"npid": {"alice123"}, "password": {password("hunter2")}}
	createReq := httptest.NewRequest(http.MethodPost, "/create", strings.NewReader(form.Encode()))
	createReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	createRec := httptest.NewRecorder()
	h.Create(createRec, createReq)
	token := strings.TrimPrefix(createRec.Body.String(), "OK:")

	mux := http.NewServeMux()
	mux.Handle("GET /check", middleware.Auth(h.auth)(http.HandlerFunc(h.Check)))

	req := httptest.NewRequest(http.MethodGet, "/check", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if got := rec.Body.String(); !strings.HasPrefix(got, "OK:") {
		t.Errorf("Check with a valid token = %q, want an OK: response", got)
	}
}

func TestAccountDeleteRejectsWrongPassword(t *testing.T) {
	h := newTestHandler(t)

	form := url.Values{"npid": {"alice123"}, "password": {password("hunter2")}}
	createReq := httptest.NewRequest(http.MethodPost, "/create", strings.NewReader(form.Encode()))
	createReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	createRec := httptest.NewRecorder()
	h.Create(createRec, createReq)
	token := strings.TrimPrefix(createRec.Body.String(), "OK:")

	mux := http.NewServeMux()
	mux.Handle("POST /delete", middleware.Auth(h.auth)(http.HandlerFunc(h.Delete)))

	deleteForm := url.Values{"password": {password("wrong")}}
	req := httptest.NewRequest(http.MethodPost, "/delete", strings.NewReader(deleteForm.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if got := rec.Body.String(); got != "ERR:InvalidPassword" {
		t.Errorf("Delete with wrong password = %q, want ERR:InvalidPassword", got)
	}
}
