// Package repository holds the storage contracts of the auth core and their
// MySQL and Redis implementations.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup matches no row. The directory
// translates it into errs.ErrIdentityNotFound.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a unique index. Field is
// not known at this layer; callers run the existence checks first.
var ErrDuplicate = errors.New("duplicate key")

// isDuplicateKey reports whether err is MySQL error 1062.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
