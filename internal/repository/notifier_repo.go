package repository

import (
	"context"
	"errors"

	"github.com/user/listing-radar/internal/entity"
)

// ErrDeliveryFailed indicates every delivery strategy for a payload was
// rejected by the messaging transport.
var ErrDeliveryFailed = errors.New("notification delivery failed")

// NotifierRepository defines the contract for the messaging channel.
// Implementations try their richest format first and degrade internally;
// an error means the payload was not delivered in any format.
type NotifierRepository interface {
	Deliver(ctx context.Context, payload *entity.NotificationPayload) error
}
