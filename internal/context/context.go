package context

import (
	"context"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// UserIDKey is the context key for the authenticated principal's ID
	UserIDKey ContextKey = "user_id"
	// HotelIDKey is the context key for the principal's hotel scope
	HotelIDKey ContextKey = "hotel_id"
	// RoleKey is the context key for the principal's role (guest, staff, admin)
	RoleKey ContextKey = "role"
)

// ExtractUserID extracts the user ID from the request context
func ExtractUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

// ExtractHotelID extracts the hotel scope from the request context
func ExtractHotelID(ctx context.Context) (string, bool) {
	hotelID, ok := ctx.Value(HotelIDKey).(string)
	return hotelID, ok
}

// ExtractRole extracts the role from the request context
func ExtractRole(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(RoleKey).(string)
	return role, ok
}
