package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/fieldpass/fieldpass/domain"
	"github.com/fieldpass/fieldpass/worker"
)

type fakeWorkerStore struct {
	workers map[string]*worker.Worker
}

func (f *fakeWorkerStore) CreateWorker(ctx context.Context, w *worker.Worker) error {
	f.workers[w.ID] = w
	return nil
}

func (f *fakeWorkerStore) GetWorker(ctx context.Context, id string) (*worker.Worker, error) {
	return f.workers[id], nil
}

func (f *fakeWorkerStore) GetWorkerBySubject(ctx context.Context, subjectID string) (*worker.Worker, error) {
	for _, w := range f.workers {
		if w.SubjectID == subjectID {
			return w, nil
		}
	}
	return nil, nil
}

func (f *fakeWorkerStore) UpdateWorker(ctx context.Context, w *worker.Worker) error {
	f.workers[w.ID] = w
	return nil
}

func (f *fakeWorkerStore) SetModalityFlags(ctx context.Context, workerID string, fingerprint, face *bool) error {
	return nil
}

type fakeAlertService struct {
	read     []string
	resolved []string
}

func (f *fakeAlertService) List(ctx context.Context, onlyOpen bool, limit int) ([]worker.Alert, error) {
	return []worker.Alert{{ID: "a-1", Type: worker.AlertGeofence}}, nil
}

func (f *fakeAlertService) MarkRead(ctx context.Context, id string) error {
	if id == "a-1" {
		f.read = append(f.read, id)
		return nil
	}
	return domain.ErrNotFound
}

func (f *fakeAlertService) Resolve(ctx context.Context, id string) error {
	if id == "a-1" {
		f.resolved = append(f.resolved, id)
		return nil
	}
	return domain.ErrNotFound
}

const testSecret = "test-secret"

func signedToken(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	raw, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return raw
}

func testStore() *fakeWorkerStore {
	return &fakeWorkerStore{workers: map[string]*worker.Worker{
		"w-1": {ID: "w-1", SubjectID: "subj-1", Name: "Dena", Role: worker.RoleWorker},
		"w-2": {ID: "w-2", SubjectID: "subj-2", Name: "Sari", Role: worker.RoleSupervisor},
	}}
}

func doRequest(e *echo.Echo, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func okHandler(c echo.Context) error {
	w := CurrentWorker(c)
	return c.JSON(http.StatusOK, map[string]any{"worker_id": w.ID})
}

func TestSubjectMiddlewareRejectsMissingToken(t *testing.T) {
	e := echo.New()
	auth := NewSubjectMiddleware(testSecret, testStore())
	e.GET("/probe", okHandler, auth.Require)

	rec := doRequest(e, http.MethodGet, "/probe", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without a token, got %d", rec.Code)
	}
}

func TestSubjectMiddlewareRejectsBadSignature(t *testing.T) {
	e := echo.New()
	auth := NewSubjectMiddleware(testSecret, testStore())
	e.GET("/probe", okHandler, auth.Require)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "subj-1"})
	forged, _ := token.SignedString([]byte("wrong-secret"))

	rec := doRequest(e, http.MethodGet, "/probe", forged, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for a forged token, got %d", rec.Code)
	}
}

func TestSubjectMiddlewareResolvesWorker(t *testing.T) {
	e := echo.New()
	auth := NewSubjectMiddleware(testSecret, testStore())
	e.GET("/probe", okHandler, auth.Require)

	rec := doRequest(e, http.MethodGet, "/probe", signedToken(t, "subj-1"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"worker_id":"w-1"`) {
		t.Errorf("expected the resolved worker in the response, got %s", rec.Body.String())
	}
}

func TestSubjectMiddlewareUnknownSubject(t *testing.T) {
	e := echo.New()
	auth := NewSubjectMiddleware(testSecret, testStore())
	e.GET("/probe", okHandler, auth.Require)

	// A valid token whose subject has no worker record is authenticated
	// but not enrolled, which is still a 401 at this boundary.
	rec := doRequest(e, http.MethodGet, "/probe", signedToken(t, "ghost"), "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for an unmapped subject, got %d", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	store := testStore()
	auth := NewSubjectMiddleware(testSecret, store)
	e.GET("/sup", okHandler, auth.Require, RequireRole(worker.RoleSupervisor, worker.RoleAdmin))

	if rec := doRequest(e, http.MethodGet, "/sup", signedToken(t, "subj-1"), ""); rec.Code != http.StatusForbidden {
		t.Errorf("worker role should be forbidden, got %d", rec.Code)
	}
	if rec := doRequest(e, http.MethodGet, "/sup", signedToken(t, "subj-2"), ""); rec.Code != http.StatusOK {
		t.Errorf("supervisor role should pass, got %d", rec.Code)
	}

	// A role outside the closed enum is rejected, never defaulted.
	store.workers["w-3"] = &worker.Worker{ID: "w-3", SubjectID: "subj-3", Role: "superuser"}
	if rec := doRequest(e, http.MethodGet, "/sup", signedToken(t, "subj-3"), ""); rec.Code != http.StatusForbidden {
		t.Errorf("unrecognized role should be forbidden, got %d", rec.Code)
	}
}

func scanContext(e *echo.Echo, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/scan/verify", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(workerContextKey, &worker.Worker{ID: "w-1", Role: worker.RoleWorker})
	return c, rec
}

func TestScanVerifyRejectsBadKind(t *testing.T) {
	e := echo.New()
	h := NewHandler(nil, nil, nil, &fakeAlertService{}, testStore(), false)

	// Input validation runs before any engine work, so no verification
	// state is needed to observe the reject.
	c, rec := scanContext(e, `{"kind":"lunch_break","descriptor":[0.1]}`)
	if err := h.HandleScanVerify(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for an unknown kind, got %d", rec.Code)
	}
}

func TestScanVerifyRequiresPayload(t *testing.T) {
	e := echo.New()
	h := NewHandler(nil, nil, nil, &fakeAlertService{}, testStore(), false)

	c, rec := scanContext(e, `{"kind":"check_in"}`)
	if err := h.HandleScanVerify(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without assertion or descriptor, got %d", rec.Code)
	}
}

func TestScanVerifyRejectsMalformedAssertion(t *testing.T) {
	e := echo.New()
	h := NewHandler(nil, nil, nil, &fakeAlertService{}, testStore(), false)

	c, rec := scanContext(e, `{"kind":"check_in","assertion":{"not":"an assertion"}}`)
	if err := h.HandleScanVerify(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a malformed assertion, got %d", rec.Code)
	}
}

func TestAlertEndpoints(t *testing.T) {
	e := echo.New()
	svc := &fakeAlertService{}
	h := NewHandler(nil, nil, nil, svc, testStore(), false)
	auth := NewSubjectMiddleware(testSecret, testStore())
	h.RegisterRoutes(e.Group("/api/v1"), auth)
	supervisor := signedToken(t, "subj-2")

	rec := doRequest(e, http.MethodGet, "/api/v1/alerts", supervisor, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list alerts failed with %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "a-1") {
		t.Errorf("expected the alert in the listing, got %s", rec.Body.String())
	}

	if rec := doRequest(e, http.MethodPost, "/api/v1/alerts/a-1/read", supervisor, ""); rec.Code != http.StatusOK {
		t.Errorf("mark read failed with %d", rec.Code)
	}
	if rec := doRequest(e, http.MethodPost, "/api/v1/alerts/a-1/resolve", supervisor, ""); rec.Code != http.StatusOK {
		t.Errorf("resolve failed with %d", rec.Code)
	}
	if len(svc.read) != 1 || len(svc.resolved) != 1 {
		t.Errorf("expected one read and one resolve, got %d/%d", len(svc.read), len(svc.resolved))
	}

	if rec := doRequest(e, http.MethodPost, "/api/v1/alerts/nope/resolve", supervisor, ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for an unknown alert, got %d", rec.Code)
	}

	// Workers cannot reach the supervisor surface.
	if rec := doRequest(e, http.MethodGet, "/api/v1/alerts", signedToken(t, "subj-1"), ""); rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for a worker, got %d", rec.Code)
	}
}
