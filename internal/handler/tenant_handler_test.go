package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"github.com/prohmpiriya/eventdesk/internal/service"
	"github.com/prohmpiriya/eventdesk/pkg/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTenantService struct {
	tenants map[string]*dto.TenantResponse
	created *dto.CreateTenantRequest
}

func (f *fakeTenantService) Create(_ context.Context, req *dto.CreateTenantRequest) (*dto.TenantResponse, error) {
	f.created = req
	if !domain.ValidSlug(req.Slug) {
		return nil, domain.ErrInvalidSlug
	}
	if _, ok := f.tenants[req.Slug]; ok {
		return nil, service.ErrTenantAlreadyExists
	}
	return &dto.TenantResponse{ID: "tenant-new", Name: req.Name, Slug: req.Slug, FinanceMode: domain.FinanceModeLegacy}, nil
}

func (f *fakeTenantService) GetByID(_ context.Context, id string) (*dto.TenantResponse, error) {
	for _, t := range f.tenants {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, service.ErrTenantNotFound
}

func (f *fakeTenantService) GetBySlug(_ context.Context, slug string) (*dto.TenantResponse, error) {
	if t, ok := f.tenants[slug]; ok {
		return t, nil
	}
	return nil, service.ErrTenantNotFound
}

func (f *fakeTenantService) List(_ context.Context, filter *dto.TenantListFilter) ([]*dto.TenantResponse, int, error) {
	filter.Normalize()
	var out []*dto.TenantResponse
	for _, t := range f.tenants {
		out = append(out, t)
	}
	return out, len(out), nil
}

func (f *fakeTenantService) Update(_ context.Context, id string, _ *dto.UpdateTenantRequest) (*dto.TenantResponse, error) {
	return f.GetByID(context.Background(), id)
}

func (f *fakeTenantService) Delete(_ context.Context, id string) error {
	_, err := f.GetByID(context.Background(), id)
	return err
}

func newTenantRouter(tenants service.TenantService, finance service.FinanceModeService) *gin.Engine {
	h := NewTenantHandler(tenants, finance)
	r := gin.New()
	r.Use(withClaims("", "root", string(domain.RoleSuperAdmin)))
	r.POST("/tenants", h.Create)
	r.GET("/tenants/:id", h.GetByID)
	r.PUT("/tenants/:id", h.Update)
	r.DELETE("/tenants/:id", h.Delete)
	r.GET("/tenants/:id/finance", h.Finance)
	return r
}

func TestTenantHandler_Create(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{name: "created", body: `{"name":"Acme Events","slug":"acme-events"}`, wantStatus: http.StatusCreated},
		{name: "bad slug", body: `{"name":"Acme Events","slug":"Acme Events"}`, wantStatus: http.StatusBadRequest, wantCode: response.ErrCodeValidationFailed},
		{name: "duplicate slug", body: `{"name":"Acme","slug":"acme"}`, wantStatus: http.StatusConflict, wantCode: response.ErrCodeDuplicateEntry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeTenantService{tenants: map[string]*dto.TenantResponse{"acme": {ID: "tenant-1", Slug: "acme"}}}
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/tenants", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			newTenantRouter(svc, nil).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeResponse(t, w).Error.Code)
			}
		})
	}
}

func TestTenantHandler_UpdateRequiresAField(t *testing.T) {
	svc := &fakeTenantService{tenants: map[string]*dto.TenantResponse{"acme": {ID: "tenant-1", Slug: "acme"}}}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/tenants/tenant-1", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	newTenantRouter(svc, nil).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.ErrCodeValidationFailed, decodeResponse(t, w).Error.Code)
}

func TestTenantHandler_Delete(t *testing.T) {
	svc := &fakeTenantService{tenants: map[string]*dto.TenantResponse{"acme": {ID: "tenant-1", Slug: "acme"}}}
	r := newTenantRouter(svc, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/tenants/tenant-1", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/tenants/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTenantHandler_Finance(t *testing.T) {
	svc := &fakeTenantService{tenants: map[string]*dto.TenantResponse{"acme": {ID: "tenant-1", Slug: "acme"}}}

	t.Run("overview", func(t *testing.T) {
		w := httptest.NewRecorder()
		newTenantRouter(svc, &fakeFinanceService{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tenants/tenant-1/finance", nil))

		require.Equal(t, http.StatusOK, w.Code)
		data := decodeResponse(t, w).Data.(map[string]any)
		assert.Equal(t, "tenant-1", data["tenant"].(map[string]any)["id"])
		assert.Equal(t, string(domain.FinanceModeLegacy), data["mode"].(map[string]any)["mode"])
	})

	t.Run("unknown tenant", func(t *testing.T) {
		w := httptest.NewRecorder()
		newTenantRouter(svc, &fakeFinanceService{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tenants/nope/finance", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("finance service absent", func(t *testing.T) {
		w := httptest.NewRecorder()
		newTenantRouter(svc, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tenants/tenant-1/finance", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
