package models

import (
	"github.com/google/uuid"
)

// assignID fills an empty primary key so rows can be created without
// relying on a database-side uuid default.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every persisted model, in dependency order.
func All() []any {
	return []any{
		&User{},
		&Product{},
		&Cart{},
		&CartItem{},
		&Order{},
		&OrderLineItem{},
		&OrderTimelineEntry{},
		&OutboxEvent{},
	}
}
