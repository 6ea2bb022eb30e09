package persistence

import (
	"errors"
	"fmt"

	"github.com/duesledger/backend/internal/domain/dues"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// storageError wraps a driver failure so callers can match it with
// errors.Is(err, dues.ErrStorage) while keeping the cause.
func storageError(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(dues.ErrStorage, err))
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// forUpdate is the row lock taken by the *ForUpdate finders. The sqlite
// dialector drops it, which is fine because sqlite serializes writers.
var forUpdate = clause.Locking{Strength: "UPDATE"}
