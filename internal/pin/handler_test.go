package pin

import (
	"context"
	"io"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/waply/waply-web/internal/logging"
	"github.com/waply/waply-web/internal/middleware"
	"github.com/waply/waply-web/internal/session"
	"github.com/waply/waply-web/internal/upstream"
	"github.com/waply/waply-web/internal/web"
)

type fakeAPI struct {
	pinStatus    upstream.PinStatus
	pinStatusErr error

	loginToken string
	loginErr   error
	loginCalls int
	lastPin    string

	setPinErr   error
	setPinCalls int
	lastSetPin  string
}

func (f *fakeAPI) CheckPinStatus(_ context.Context, _ string) (upstream.PinStatus, error) {
	return f.pinStatus, f.pinStatusErr
}

func (f *fakeAPI) Login(_ context.Context, _, pin string) (string, error) {
	f.loginCalls++
	f.lastPin = pin
	return f.loginToken, f.loginErr
}

func (f *fakeAPI) SetPin(_ context.Context, _, pin string) error {
	f.setPinCalls++
	f.lastSetPin = pin
	return f.setPinErr
}

func (f *fakeAPI) ListReminders(_ context.Context, _ string, _ int, _ string) ([]upstream.Reminder, error) {
	return nil, nil
}

func (f *fakeAPI) UpdateReminder(_ context.Context, _, _, _ string, _ bool) error { return nil }

func (f *fakeAPI) DeleteReminder(_ context.Context, _, _ string, _ bool) error { return nil }

func setupApp(t *testing.T, api upstream.API) (*fiber.App, *session.Store, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := session.New(cache, time.Hour)

	h := NewHandler(api, store, web.New(), logging.Discard())

	app := fiber.New()
	app.Use(middleware.Session(time.Hour))
	app.Get("/enter-pin/:urlId", h.EnterPinPage)
	app.Post("/enter-pin/:urlId/key", h.Keypress)
	app.Get("/set-pin/:urlId", h.SetPinPage)
	app.Post("/set-pin/:urlId", h.SetPinSubmit)
	app.Get("/error", h.ErrorPage)
	app.Get("/:urlId", h.Status)

	cleanup := func() {
		cache.Close()
		mr.Close()
	}
	return app, store, cleanup
}

const testCookie = session.CookieName + "=sid1"

func TestStatusRedirectsToEnterPin(t *testing.T) {
	api := &fakeAPI{pinStatus: upstream.PinStatus{IsPinSet: true, User: upstream.Profile{ProfileName: "Sam"}}}
	app, _, cleanup := setupApp(t, api)
	defer cleanup()

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/abc123", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusFound {
		t.Fatalf("expected 302, got %d", resp.StatusCode)
	}

	loc, err := url.Parse(resp.Header.Get(fiber.HeaderLocation))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	if loc.Path != "/enter-pin/abc123" {
		t.Fatalf("unexpected redirect path %s", loc.Path)
	}
	q := loc.Query()
	if q.Get("profileName") != "Sam" {
		t.Fatalf("profileName not forwarded: %v", q)
	}
	for _, key := range []string{"phoneNumber", "role", "timezone"} {
		if _, ok := q[key]; !ok {
			t.Fatalf("missing field %s should still be present (empty): %v", key, q)
		}
	}
}

func TestStatusRedirectsToSetPin(t *testing.T) {
	api := &fakeAPI{pinStatus: upstream.PinStatus{IsPinSet: false}}
	app, _, cleanup := setupApp(t, api)
	defer cleanup()

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/abc123", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	loc, _ := url.Parse(resp.Header.Get(fiber.HeaderLocation))
	if loc.Path != "/set-pin/abc123" {
		t.Fatalf("unexpected redirect path %s", loc.Path)
	}
}

func TestStatusFailureRedirectsToError(t *testing.T) {
	api := &fakeAPI{pinStatusErr: &upstream.StatusError{Code: 500}}
	app, _, cleanup := setupApp(t, api)
	defer cleanup()

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/abc123", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if got := resp.Header.Get(fiber.HeaderLocation); got != "/error" {
		t.Fatalf("expected redirect to /error, got %s", got)
	}
}

func postKey(t *testing.T, app *fiber.App, key string) (int, string, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/enter-pin/abc123/key", strings.NewReader("key="+key))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	req.Header.Set("Cookie", testCookie)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp.StatusCode, resp.Header.Get(fiber.HeaderLocation), string(body)
}

func TestKeypadVerifiesOnFourthDigit(t *testing.T) {
	api := &fakeAPI{loginToken: "T"}
	app, store, cleanup := setupApp(t, api)
	defer cleanup()

	for _, key := range []string{"1", "2", "3"} {
		status, _, _ := postKey(t, app, key)
		if status != fiber.StatusOK {
			t.Fatalf("expected 200 while entering, got %d", status)
		}
		if api.loginCalls != 0 {
			t.Fatal("verification must not run before the buffer completes")
		}
	}

	status, loc, _ := postKey(t, app, "4")
	if status != fiber.StatusFound || loc != "/events/abc123" {
		t.Fatalf("expected redirect to events, got %d %s", status, loc)
	}
	if api.loginCalls != 1 || api.lastPin != "1234" {
		t.Fatalf("expected one login with 1234, got %d %q", api.loginCalls, api.lastPin)
	}

	token, err := store.Token(context.Background(), "sid1")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if token != "T" {
		t.Fatalf("expected stored token T, got %q", token)
	}
}

func TestKeypadClearRemovesRightmost(t *testing.T) {
	api := &fakeAPI{}
	app, store, cleanup := setupApp(t, api)
	defer cleanup()

	postKey(t, app, "1")
	postKey(t, app, "2")
	postKey(t, app, "clear")

	digits, err := store.PinBuffer(context.Background(), "sid1")
	if err != nil {
		t.Fatalf("pin buffer: %v", err)
	}
	if digits != "1" {
		t.Fatalf("expected buffer 1 after clear, got %q", digits)
	}

	// Clearing an empty buffer is a no-op.
	postKey(t, app, "clear")
	postKey(t, app, "clear")
	digits, _ = store.PinBuffer(context.Background(), "sid1")
	if digits != "" {
		t.Fatalf("expected empty buffer, got %q", digits)
	}
}

func TestKeypadWrongPinClearsBuffer(t *testing.T) {
	api := &fakeAPI{loginErr: upstream.ErrWrongPin}
	app, store, cleanup := setupApp(t, api)
	defer cleanup()

	for _, key := range []string{"9", "9", "9"} {
		postKey(t, app, key)
	}
	status, _, body := postKey(t, app, "9")
	if status != fiber.StatusOK {
		t.Fatalf("expected re-render, got %d", status)
	}
	if !strings.Contains(body, msgWrongPin) {
		t.Fatal("expected wrong PIN message in response")
	}

	digits, _ := store.PinBuffer(context.Background(), "sid1")
	if digits != "" {
		t.Fatalf("expected cleared buffer, got %q", digits)
	}
}

func TestKeypadGenericFailureClearsBuffer(t *testing.T) {
	api := &fakeAPI{loginErr: &upstream.StatusError{Code: 500, Message: "boom"}}
	app, store, cleanup := setupApp(t, api)
	defer cleanup()

	for _, key := range []string{"1", "2", "3"} {
		postKey(t, app, key)
	}
	_, _, body := postKey(t, app, "4")
	if !strings.Contains(body, msgVerifyFailed) {
		t.Fatal("expected generic failure message in response")
	}
	digits, _ := store.PinBuffer(context.Background(), "sid1")
	if digits != "" {
		t.Fatalf("expected cleared buffer, got %q", digits)
	}
}

func postSetPin(t *testing.T, app *fiber.App, pin, confirm string) (int, string, string) {
	t.Helper()
	form := url.Values{}
	form.Set("pin", pin)
	form.Set("confirmPin", confirm)
	req := httptest.NewRequest(fiber.MethodPost, "/set-pin/abc123", strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	req.Header.Set("Cookie", testCookie)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp.StatusCode, resp.Header.Get(fiber.HeaderLocation), string(body)
}

func TestSetPinIncompleteNeverCallsNetwork(t *testing.T) {
	api := &fakeAPI{}
	app, _, cleanup := setupApp(t, api)
	defer cleanup()

	_, _, body := postSetPin(t, app, "12", "34")
	if api.setPinCalls != 0 {
		t.Fatal("incomplete buffers must not reach the network")
	}
	if !strings.Contains(body, ErrIncomplete.Error()) {
		t.Fatal("expected incomplete message")
	}
}

func TestSetPinMismatchNeverCallsNetwork(t *testing.T) {
	api := &fakeAPI{}
	app, _, cleanup := setupApp(t, api)
	defer cleanup()

	_, _, body := postSetPin(t, app, "1234", "4321")
	if api.setPinCalls != 0 {
		t.Fatal("mismatched buffers must not reach the network")
	}
	if !strings.Contains(body, ErrMismatch.Error()) {
		t.Fatal("expected mismatch message")
	}
}

func TestSetPinRejectsNonNumeric(t *testing.T) {
	api := &fakeAPI{}
	app, _, cleanup := setupApp(t, api)
	defer cleanup()

	_, _, body := postSetPin(t, app, "12a4", "12a4")
	if api.setPinCalls != 0 {
		t.Fatal("non-numeric input must not reach the network")
	}
	if !strings.Contains(body, ErrNotNumeric.Error()) {
		t.Fatal("expected numeric-only message")
	}
}

func TestSetPinSuccessRedirectsToStatus(t *testing.T) {
	api := &fakeAPI{}
	app, _, cleanup := setupApp(t, api)
	defer cleanup()

	status, loc, _ := postSetPin(t, app, "1234", "1234")
	if status != fiber.StatusFound || loc != "/abc123" {
		t.Fatalf("expected redirect to /abc123, got %d %s", status, loc)
	}
	if api.setPinCalls != 1 || api.lastSetPin != "1234" {
		t.Fatalf("expected one set-pin call with 1234, got %d %q", api.setPinCalls, api.lastSetPin)
	}
}

func TestSetPinFailureRetainsBuffers(t *testing.T) {
	api := &fakeAPI{setPinErr: &upstream.StatusError{Code: 500}}
	app, _, cleanup := setupApp(t, api)
	defer cleanup()

	status, _, body := postSetPin(t, app, "1234", "1234")
	if status != fiber.StatusOK {
		t.Fatalf("expected re-render, got %d", status)
	}
	if !strings.Contains(body, msgSetFailed) {
		t.Fatal("expected failure message")
	}
	// Unlike the verifier, the setter keeps the entered values on failure.
	if !strings.Contains(body, `value="1234"`) {
		t.Fatal("expected entered PIN to be retained")
	}
}
