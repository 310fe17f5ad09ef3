package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/training-progress-api/internal/progress"
)

// Actor represents the authenticated instructor or administrator performing a change.
type Actor struct {
	ID   uint
	Role string
}

// notFound maps gorm's missing-row error onto the domain error and passes others through.
func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", progress.ErrNotFound, fmt.Sprintf(format, args...))
	}
	return err
}
