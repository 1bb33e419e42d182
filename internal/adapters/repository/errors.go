package repository

import (
	"errors"
	"fmt"

	"github.com/okian/whovapes/internal/domain/model"
	"gorm.io/gorm"
)

// Sentinel kinds for store setup errors.
var (
	ErrUnknownDriver = errors.New("unknown database driver")
	ErrInvalidLimit  = errors.New("invalid limit")
)

// classify maps driver errors onto the domain taxonomy.
func classify(op, id string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, model.NewNotFound(id))
	case errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrConflict), errors.Is(err, model.ErrValidation):
		return err
	default:
		return model.Upstream(op, err)
	}
}
