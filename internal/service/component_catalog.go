package service

import (
	"context"
	"sync"

	"gorm.io/gorm"

	"github.com/noah-isme/training-progress-api/internal/models"
	"github.com/noah-isme/training-progress-api/internal/progress"
	"github.com/noah-isme/training-progress-api/internal/repository"
)

// ComponentCatalog resolves the component definitions that belong to a session.
type ComponentCatalog interface {
	// Components returns the session's components in current sequence order.
	Components(ctx context.Context, sessionID uint) ([]models.ComponentDefinition, error)
	// Component returns a single definition for state machine checks.
	Component(ctx context.Context, sessionID, componentID uint) (models.ComponentDefinition, error)
}

type componentCatalog struct {
	sessions  repository.SessionRepository
	templates repository.TemplateRepository
	// sessionID -> templateID; a session never changes template once instantiated
	templateBySession sync.Map
}

// NewComponentCatalog constructs a catalog backed by the session and template repositories.
func NewComponentCatalog(sessions repository.SessionRepository, templates repository.TemplateRepository) ComponentCatalog {
	return &componentCatalog{sessions: sessions, templates: templates}
}

func (c *componentCatalog) templateID(ctx context.Context, sessionID uint) (uint, error) {
	if cached, ok := c.templateBySession.Load(sessionID); ok {
		return cached.(uint), nil
	}

	session, err := c.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return 0, notFound(err, "session %d", sessionID)
	}
	c.templateBySession.Store(sessionID, session.TemplateID)
	return session.TemplateID, nil
}

func (c *componentCatalog) Components(ctx context.Context, sessionID uint) ([]models.ComponentDefinition, error) {
	templateID, err := c.templateID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	template, err := c.templates.GetByID(ctx, templateID)
	if err != nil {
		return nil, notFound(err, "template %d", templateID)
	}

	components := template.Components
	progress.SortComponents(components)
	return components, nil
}

func (c *componentCatalog) Component(ctx context.Context, sessionID, componentID uint) (models.ComponentDefinition, error) {
	components, err := c.Components(ctx, sessionID)
	if err != nil {
		return models.ComponentDefinition{}, err
	}

	for _, component := range components {
		if component.ID == componentID {
			return component, nil
		}
	}
	return models.ComponentDefinition{}, notFound(gorm.ErrRecordNotFound, "component %d in session %d", componentID, sessionID)
}
