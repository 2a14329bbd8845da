// Package util provides utility functions for the mailfold application.
package util

import (
	"math/rand"
	"strings"
)

// SubscriptionTokenLength is the length of generated confirmation tokens.
const SubscriptionTokenLength = 25

// GenerateRandomHex generates a random hexadecimal string of the specified length.
// Uses math/rand for non-cryptographic identifiers such as worker labels.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}

	const hexChars = "0123456789abcdef"
	var builder strings.Builder
	builder.Grow(length)

	for i := 0; i < length; i++ {
		builder.WriteByte(hexChars[rand.Intn(16)])
	}

	return builder.String()
}

// GenerateRandomAlphaNumeric generates a random alphanumeric string of the specified length.
func GenerateRandomAlphaNumeric(length int) string {
	if length <= 0 {
		return ""
	}

	const chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	var builder strings.Builder
	builder.Grow(length)

	for i := 0; i < length; i++ {
		builder.WriteByte(chars[rand.Intn(len(chars))])
	}

	return builder.String()
}

// GenerateSubscriptionToken generates a confirmation token for a new subscriber.
func GenerateSubscriptionToken() string {
	return GenerateRandomAlphaNumeric(SubscriptionTokenLength)
}
