// Package qkdgo is the root of the QKD-FH simulation suite: a BB84-style
// quantum key distribution simulation over TCP, an optional intercept-resend
// adversary, and a key-seeded frequency-hopping data transport.
//
// The interesting part lives in pkg/qkd: two lock-step role state machines
// that sift, verify, and either commit to a shared key or provably abort.
// pkg/wire frames the simulated quantum and public lanes over one byte
// stream, pkg/intercept splices an adversary into the quantum lane, and
// pkg/hopping turns an agreed key into a reproducible hopping pattern and
// drives the character-by-character transmission.
//
// None of this models real quantum hardware. The measurement rule (matching
// bases reproduce the bit, mismatched bases randomize it) is the abstract
// semantics of BB84, which is exactly enough to make interception
// statistically visible in the verification step.
package qkdgo
