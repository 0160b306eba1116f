// Package queue provides named, durable message queues. Pop delivers a
// message at most once: it is removed from the queue as it is read, and a
// consumer that crashes mid-task does not see the message again.
package queue

import (
	"fmt"
	"regexp"
)

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidateName rejects queue names that cannot be embedded in an SQL
// identifier.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("invalid queue name %q", name)
	}
	return nil
}
