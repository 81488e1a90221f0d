package domain

import "strings"

// NormalizeStatus collapses a provider-reported status string into the
// internal lifecycle enum. Paystack reports transfers as queued, pending,
// processing, otp, received, success, failed, reversed, cancelled or
// abandoned; anything unrecognized maps to PENDING so a later channel can
// still resolve it.
func NormalizeStatus(providerStatus string) Status {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case "success":
		return StatusSuccess
	case "failed", "reversed", "cancelled", "abandoned":
		return StatusFailed
	case "queued", "processing", "pending", "otp", "received":
		return StatusProcessing
	default:
		return StatusPending
	}
}
