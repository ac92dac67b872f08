// Package relational holds the gorm-backed repositories; it runs against
// Postgres in production and SQLite for single-host setups and tests.
package relational

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/yoockh/scribe/internal/utils"
)

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return utils.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey),
		strings.Contains(err.Error(), "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %v", utils.ErrConflict, err)
	default:
		return err
	}
}
