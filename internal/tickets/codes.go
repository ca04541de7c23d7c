package tickets

import (
	"fmt"
	"math/rand"
	"time"
)

// Code prefixes by ticket type.
const (
	prefixSell   = "SELL"
	prefixRepair = "REP"
)

// newCode generates a human-readable ticket code of the form
// {PREFIX}-{YYYYMMDD}-{3 digits}, with the date in UTC. The random suffix can
// collide within a day; the repository enforces uniqueness and the service
// retries with a fresh code on conflict.
func newCode(ticketType string, now time.Time) string {
	prefix := prefixRepair
	if ticketType == TypeSell {
		prefix = prefixSell
	}
	return fmt.Sprintf("%s-%s-%03d", prefix, now.UTC().Format("20060102"), rand.Intn(1000))
}
