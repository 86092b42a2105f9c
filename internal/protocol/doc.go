// Package protocol implements the media-stream envelope codec used between the
// telephony gateway and this service.
package protocol
