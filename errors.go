package notifybox

import "errors"

var (
	// ErrInvalidLimit indicates that the requested drain limit is negative.
	ErrInvalidLimit = errors.New("notifybox: drain limit must not be negative")
	// ErrOrganizationRequired is returned when Event.OrganizationID is empty.
	ErrOrganizationRequired = errors.New("notifybox: organization id is required")
	// ErrTypeRequired is returned when Event.Type is empty.
	ErrTypeRequired = errors.New("notifybox: notification type is required")
	// ErrChannelsRequired is returned when an event names no channels.
	ErrChannelsRequired = errors.New("notifybox: at least one channel is required")
	// ErrChannelRequired is returned when a channel name is empty.
	ErrChannelRequired = errors.New("notifybox: channel is required")
	// ErrPayloadRequired is returned when an event carries no payload.
	ErrPayloadRequired = errors.New("notifybox: payload is required")
	// ErrInvalidPayload is returned when a payload fails validation or decoding.
	ErrInvalidPayload = errors.New("notifybox: invalid payload")
	// ErrPayloadMismatch is returned when a payload shape cannot carry the notification type.
	ErrPayloadMismatch = errors.New("notifybox: payload does not match notification type")
	// ErrUnknownType is returned for notification types missing from the registry.
	ErrUnknownType = errors.New("notifybox: unknown notification type")
	// ErrUnknownChannel is returned by Router for channels without a sender.
	ErrUnknownChannel = errors.New("notifybox: no sender for channel")
	// ErrClaimLost is returned when a record is no longer held by the caller's claim.
	ErrClaimLost = errors.New("notifybox: claim lost")
	// ErrWorkerPanic indicates a scheduler worker panic.
	ErrWorkerPanic = errors.New("notifybox: worker panic")
)
