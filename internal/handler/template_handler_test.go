package handler_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/training-progress-api/internal/dto"
	"github.com/noah-isme/training-progress-api/internal/handler"
	"github.com/noah-isme/training-progress-api/internal/models"
	"github.com/noah-isme/training-progress-api/internal/progress"
)

type stubTemplateService struct {
	template     models.SessionTemplate
	err          error
	lastCreate   dto.TemplateCreateRequest
	lastDocument []byte
	lastList     dto.TemplateListRequest
	lastReorder  [3]int
}

func (s *stubTemplateService) Create(_ context.Context, req dto.TemplateCreateRequest) (models.SessionTemplate, error) {
	s.lastCreate = req
	return s.template, s.err
}

func (s *stubTemplateService) Import(_ context.Context, document []byte) (models.SessionTemplate, error) {
	s.lastDocument = document
	return s.template, s.err
}

func (s *stubTemplateService) Get(_ context.Context, _ uint) (models.SessionTemplate, error) {
	return s.template, s.err
}

func (s *stubTemplateService) List(_ context.Context, req dto.TemplateListRequest) ([]models.SessionTemplate, dto.PaginationMeta, error) {
	s.lastList = req
	if s.err != nil {
		return nil, dto.PaginationMeta{}, s.err
	}
	return []models.SessionTemplate{s.template}, dto.PaginationMeta{Page: 2, PageSize: 5, TotalItems: 6, TotalPages: 2}, nil
}

func (s *stubTemplateService) Reorder(_ context.Context, templateID, componentID uint, newOrder int) (models.SessionTemplate, error) {
	s.lastReorder = [3]int{int(templateID), int(componentID), newOrder}
	return s.template, s.err
}

func sampleTemplate() models.SessionTemplate {
	return models.SessionTemplate{
		ID:                   5,
		Name:                 "Forklift certification",
		TotalDurationMinutes: 90,
		Components: []models.ComponentDefinition{
			{ID: 11, TemplateID: 5, Type: models.ComponentTypeCourse, SequenceOrder: 1, DurationMinutes: 60, IsMandatory: true, MaxAttempts: 1},
			{ID: 12, TemplateID: 5, Type: models.ComponentTypeAssessment, SequenceOrder: 2, DurationMinutes: 30, IsMandatory: true, HasAssessment: true, MaxAttempts: 2},
		},
	}
}

func newTemplateApp(svc *stubTemplateService, role string) *fiber.App {
	app, api := newTestApp(1, role)
	handler.NewTemplateHandler(svc, testLogger()).Register(api.Group("/templates"), staffGuard())
	return app
}

func TestTemplateHandler_CreateReturnsCreated(t *testing.T) {
	svc := &stubTemplateService{template: sampleTemplate()}
	app := newTemplateApp(svc, "admin")

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/templates", map[string]interface{}{
		"name": "Forklift certification",
		"components": []map[string]interface{}{
			{"type": "COURSE", "sequence_order": 1, "duration_minutes": 60, "is_mandatory": true},
		},
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var body dto.TemplateResponse
	decodeEnvelope(t, resp, &body)
	require.Equal(t, uint(5), body.ID)
	require.Len(t, body.Components, 2)
	require.Equal(t, "Forklift certification", svc.lastCreate.Name)
	require.Len(t, svc.lastCreate.Components, 1)
}

func TestTemplateHandler_ImportForwardsRawDocument(t *testing.T) {
	svc := &stubTemplateService{template: sampleTemplate()}
	app := newTemplateApp(svc, "instructor")

	document := []byte(`{"name":"Imported","components":[{"type":"BREAK","sequence_order":1}]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/templates/import", bytes.NewReader(document))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.JSONEq(t, string(document), string(svc.lastDocument))
}

func TestTemplateHandler_ImportSchemaFailure(t *testing.T) {
	svc := &stubTemplateService{err: fmt.Errorf("%w: /components: minimum 1 items required", progress.ErrValidation)}
	app := newTemplateApp(svc, "instructor")

	req := httptest.NewRequest(http.MethodPost, "/api/templates/import", bytes.NewReader([]byte(`{"name":"x","components":[]}`)))
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestTemplateHandler_ListCarriesPagination(t *testing.T) {
	svc := &stubTemplateService{template: sampleTemplate()}
	app := newTemplateApp(svc, "trainee")

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/api/templates?page=2&page_size=5&search=fork", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var items []dto.TemplateResponse
	env := decodeEnvelope(t, resp, &items)
	require.Len(t, items, 1)
	require.JSONEq(t, `{"pagination":{"page":2,"page_size":5,"total_items":6,"total_pages":2}}`, string(env.Meta))
	require.Equal(t, dto.TemplateListRequest{Page: 2, PageSize: 5, Search: "fork"}, svc.lastList)
}

func TestTemplateHandler_ReorderValidatesBody(t *testing.T) {
	svc := &stubTemplateService{template: sampleTemplate()}
	app := newTemplateApp(svc, "admin")

	resp, err := app.Test(jsonRequest(t, http.MethodPatch, "/api/templates/5/components/12/order", map[string]int{"sequence_order": 0}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(jsonRequest(t, http.MethodPatch, "/api/templates/5/components/12/order", map[string]int{"sequence_order": 1}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, [3]int{5, 12, 1}, svc.lastReorder)
}

func TestTemplateHandler_MutationsRequireStaff(t *testing.T) {
	svc := &stubTemplateService{template: sampleTemplate()}
	app := newTemplateApp(svc, "trainee")

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/templates", map[string]string{"name": "x"}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	require.Empty(t, svc.lastCreate.Name)
}
