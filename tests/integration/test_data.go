package integration

import (
	"fmt"
	"time"
)

// UniqueUsername generates a unique test username using a timestamp
func UniqueUsername(suffix string) string {
	return fmt.Sprintf("test-%d-%s", time.Now().UnixNano(), suffix)
}

// TestEmail derives a deterministic test email for a username
func TestEmail(username string) string {
	return username + "@example.com"
}
