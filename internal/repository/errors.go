// Package repository persists parking reservations in MySQL.  The
// in-memory ledger stays authoritative at runtime; the table lets live
// reservations survive a restart.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrDuplicate is returned when a row for the same space already exists.
// The ledger maps it to a rolled-back create.
var ErrDuplicate = errors.New("reservation row already exists")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
