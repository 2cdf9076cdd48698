// Package repository holds the SQL data access layer. Queries are written
// with ? placeholders and rebound for Postgres. Sentinel errors let
// handlers distinguish failure scenarios without inspecting driver errors.
package repository

import "errors"

// ErrNotFound is returned when a looked-up row does not exist. Handlers
// should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when registering an email that is taken.
var ErrEmailExists = errors.New("email already exists")

// ErrReviewExists is returned when a reservation already has a review.
// Handlers should translate this into an HTTP 409 response.
var ErrReviewExists = errors.New("review already exists")

// ErrForbidden is returned when a row exists but belongs to another host.
var ErrForbidden = errors.New("forbidden")

// ErrHasActiveReservations blocks deleting inventory that still has
// pending or accepted bookings ending in the future.
var ErrHasActiveReservations = errors.New("active reservations exist")
