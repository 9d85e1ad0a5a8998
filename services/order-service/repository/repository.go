package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned for missing rows so callers need not import gorm.
	ErrNotFound = errors.New("record not found")
	// ErrStaleStatus means the order left the expected status before the update ran.
	ErrStaleStatus = errors.New("order status changed concurrently")
	// ErrStaleSettings means a newer signed settings message was already applied.
	ErrStaleSettings = errors.New("store settings are newer than the message")
)

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
