// Package repository implements MySQL persistence for products, inventory,
// orders and users.  This file defines the sentinel errors shared across
// repositories.  Higher layers compare against them with errors.Is and map
// them onto HTTP statuses or checkout decisions; the checkout flow in
// particular distinguishes business rejections (insufficient stock) from
// bookkeeping violations (invalid release/confirm) that require operator
// attention.
package repository

import "errors"

// ErrProductNotFound is returned when a product or its inventory record does
// not exist. Handlers translate this into HTTP 404.
var ErrProductNotFound = errors.New("product not found")

// ErrOrderNotFound is returned when the referenced order does not exist.
var ErrOrderNotFound = errors.New("order not found")

// ErrInsufficientStock is a business-rule rejection: the requested quantity
// exceeds what is available right now. It is surfaced to the caller and
// never retried automatically.
var ErrInsufficientStock = errors.New("insufficient stock")

// ErrInvalidRelease signals an attempt to release more units than are
// currently reserved. It indicates a double release or corrupted
// bookkeeping and is logged as fatal rather than retried.
var ErrInvalidRelease = errors.New("release exceeds reserved quantity")

// ErrInvalidConfirm signals an attempt to deduct more units than are
// currently reserved. Like ErrInvalidRelease it means reservation state has
// diverged from expectations.
var ErrInvalidConfirm = errors.New("confirm exceeds reserved quantity")

// ErrInvalidTransition is returned when an order status update is not
// permitted by the order state machine. The update is not applied.
var ErrInvalidTransition = errors.New("invalid order status transition")

// ErrEmailExists is returned when registering a user with an email that is
// already taken. Handlers translate this into HTTP 409.
var ErrEmailExists = errors.New("email already exists")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own, such as reading another user's order. Handlers
// translate this into HTTP 403.
var ErrForbidden = errors.New("forbidden")
