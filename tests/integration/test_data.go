package integration

import (
	"fmt"
	"time"
)

// TestSubject generates a unique subject key using a timestamp so parallel
// tests never collide on the same ledger rows.
func TestSubject(suffix string) string {
	return fmt.Sprintf("test-%d-%s@example.com", time.Now().UnixNano(), suffix)
}
