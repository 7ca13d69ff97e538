// Package repository keeps every GORM call of the application behind one
// interface per entity, so services never see the storage engine.
package repository

import (
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"inkwell/common"
)

// PageSize is the number of posts on every listing page.
const PageSize = 6

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a case-insensitive LIKE pattern matching s anywhere.
// Columns must be compared through LOWER(...) with ESCAPE '\'.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}

// isUniqueViolation reports a unique or primary key constraint failure from
// either driver, translated or not.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "SQLSTATE 23505")
}

// notFound maps gorm's missing-row error onto the application taxonomy.
func notFound(err error, resource string, key interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return common.ErrNotFound(resource, key)
	}
	return errors.Wrapf(err, "load %s %v", resource, key)
}
