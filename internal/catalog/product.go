// Package catalog owns the product model, its stores and the mutation
// service that appends change events to the event log.
package catalog

import (
	"encoding/hex"
	"encoding/json"

	"github.com/zeebo/blake3"
)

// Event types appended to the log by the mutation path. The SSE event
// name on the wire is the type verbatim.
const (
	EventCreated  = "product.created"
	EventUpdated  = "product.updated"
	EventDeleted  = "product.deleted"
	EventRestored = "product.restored"
	EventImported = "product.imported"
)

// Product represents a stored catalog entry. Prices are decimal strings
// so no float rounding ever reaches the wire. Timestamps are unix
// milliseconds.
type Product struct {
	ID          string `bson:"_id" json:"id"`
	SKU         string `bson:"sku" json:"sku"`
	Name        string `bson:"name" json:"name"`
	Description string `bson:"description,omitempty" json:"description,omitempty"`
	Price       string `bson:"price" json:"price"`
	Stock       int    `bson:"stock" json:"stock"`
	Category    string `bson:"category,omitempty" json:"category,omitempty"`
	Version     int64  `bson:"version" json:"version"`
	CreatedAt   int64  `bson:"created_at" json:"created_at"`
	UpdatedAt   int64  `bson:"updated_at" json:"updated_at"`
	Deleted     bool   `bson:"deleted" json:"deleted,omitempty"`
}

// ProductID calculates the product ID (hash) from the SKU.
func ProductID(sku string) string {
	hash := blake3.Sum256([]byte("products/" + sku))
	return hex.EncodeToString(hash[:16])
}

// Envelope wraps an event payload in the wire form consumed by the
// streamers: {"type": ..., "data": ...}.
func Envelope(eventType string, data any) ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Data any    `json:"data"`
	}{Type: eventType, Data: data})
}
