// Package tiers implements the layered scoring chain: remote inference,
// the in-process model, and external reputation services. Tiers are tried
// in order and each may decline, leaving the decision to the next layer.
package tiers

import (
	"context"
	"errors"

	"github.com/phishguard/phishguard/pkg/verdict"
)

// ErrNotReady signals that a tier exists but cannot score yet (model still
// loading, peer warming up). The caller falls through to the next tier.
var ErrNotReady = errors.New("tier not ready")

// Tier scores a URL. Implementations return ErrNotReady or a transport
// error to decline; a non-nil Verdict is a committed answer.
type Tier interface {
	Name() string
	Check(ctx context.Context, rawURL string) (*verdict.Verdict, error)
}
