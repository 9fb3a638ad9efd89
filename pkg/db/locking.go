package db

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ForUpdate adds a row lock on dialects that support one. sqlite serialises
// writers on its own, so the clause is skipped there.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if tx == nil || tx.Dialector == nil || tx.Dialector.Name() != DriverPostgres {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
