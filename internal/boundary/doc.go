// Package boundary decides when the caller has finished a turn of speech,
// combining the provider's explicit end-of-speech signal with a safety timer.
package boundary
