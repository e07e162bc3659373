package matching

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/storelink/backend/internal/domain/order"
	"github.com/storelink/backend/internal/domain/shared"
)

// Cursor tokens are opaque to clients: base64 over "placedAt|orderID" with
// placedAt in RFC 3339 nanosecond form, so positions compare exactly against
// the (placed_at, id) stream order.

// EncodeCursor serializes a stream position into an opaque token
func EncodeCursor(pos order.StreamPosition) string {
	raw := fmt.Sprintf("%s|%s", pos.PlacedAt.UTC().Format(time.RFC3339Nano), pos.OrderID)
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by EncodeCursor. A malformed token
// yields shared.ErrInvalidInput so callers can fall back to a fresh scan.
func DecodeCursor(token string) (order.StreamPosition, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return order.StreamPosition{}, shared.ErrInvalidInput
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return order.StreamPosition{}, shared.ErrInvalidInput
	}
	placedAt, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return order.StreamPosition{}, shared.ErrInvalidInput
	}
	orderID, err := uuid.Parse(parts[1])
	if err != nil {
		return order.StreamPosition{}, shared.ErrInvalidInput
	}
	return order.StreamPosition{PlacedAt: placedAt, OrderID: orderID}, nil
}
