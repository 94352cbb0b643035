// Package idempotency provides a check-and-mark guard that participant
// services use inside their compensating operations to stay at-most-once
// under re-delivered commands.
//
// Entries expire after a bounded retention window, so a false negative
// after expiry is possible. That is safe here because every compensating
// operation in this system is also naturally idempotent at the domain level
// (cancelling a cancelled order, reversing a reversed payment, releasing a
// released courier all succeed as no-ops). Any new compensating operation
// must keep that property, or the TTL must exceed the transport's maximum
// re-delivery window.
package idempotency

import (
	"context"
	"fmt"
)

// Guard answers "already processed?" for an operation key and records
// "now processed" with associated metadata.
type Guard interface {
	HasProcessed(ctx context.Context, key string) (bool, error)
	MarkProcessed(ctx context.Context, key, metadata string) error
}

// Key builds the canonical guard key for a participant operation, e.g.
// Key("payment", "reverse", txnRef) -> "payment:reverse:TXN1".
func Key(service, operation, ref string) string {
	return fmt.Sprintf("%s:%s:%s", service, operation, ref)
}
