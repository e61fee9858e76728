package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/internal/testdb"
	"github.com/Skotchmaster/storefront/pkg/metrics"
	"github.com/Skotchmaster/storefront/pkg/tokens"
)

var secret = []byte("handler-test-secret")

type testEnv struct {
	E  *echo.Echo
	DB *gorm.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testdb.Open(t)
	r := repo.New(db)
	m := metrics.New(prometheus.NewRegistry())

	e := echo.New()
	Register(e, &Deps{
		Catalog:   &CatalogHTTP{Svc: &service.CatalogService{Repo: r}},
		Cart:      &CartHTTP{Svc: &service.CartService{Repo: r}},
		Orders:    &OrderHTTP{Svc: &service.OrderService{Repo: r, Metrics: m}},
		Health:    &HealthHTTP{DB: db},
		Metrics:   m,
		JWTSecret: secret,
	})
	return &testEnv{E: e, DB: db}
}

func token(t *testing.T, user uuid.UUID, role string) string {
	t.Helper()
	tok, err := tokens.NewAccessToken(user.String(), role, time.Now().Add(time.Hour), secret)
	require.NoError(t, err)
	return tok
}

func (env *testEnv) do(t *testing.T, method, path, tok string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if tok != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	env.E.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}
