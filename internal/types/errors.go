package types

import "errors"

// ErrUnknownTag is returned when a closed tagged variant (side, kind,
// status, request kind, balance op, event type) carries a tag outside its
// known set. Unknown tags are rejected explicitly rather than silently
// defaulted.
var ErrUnknownTag = errors.New("unknown tag")
