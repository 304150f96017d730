// Package storage defines the session-scoped key-value port that the cart,
// wishlist and checkout state write through to.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Keys under which session state is persisted. Values are JSON documents.
const (
	KeyCartItems       = "cartItems"
	KeyWishlistItems   = "wishListItems"
	KeyShippingAddress = "shippingAddress"
	KeyPaymentMethod   = "paymentMethod"
)

// Store is durable key-value storage scoped to a single session.
type Store interface {
	// Get returns the value stored under key, or an error wrapping
	// errors.ErrNotFound when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// Factory opens the store belonging to a session.
type Factory interface {
	ForSession(sessionID string) Store
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(sessionID string) Store

// ForSession calls f(sessionID).
func (f FactoryFunc) ForSession(sessionID string) Store {
	return f(sessionID)
}

// KeyNotFound is the error backends return for an absent key.
func KeyNotFound(key string) error {
	return apperrors.NotFound("session key", key)
}

// GetJSON decodes the value under key into dst. found is false, with a nil
// error, when the key is absent.
func GetJSON(ctx context.Context, s Store, key string, dst any) (found bool, err error) {
	data, err := s.Get(ctx, key)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := s.Set(ctx, key, data); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// DeleteKeys removes every key, stopping at the first failure.
func DeleteKeys(ctx context.Context, s Store, keys ...string) error {
	for _, key := range keys {
		if err := s.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return nil
}
