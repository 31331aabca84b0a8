package orchestrator

import "errors"

// ErrUnsupportedPair is returned (per-item, never cascading) when no
// router candidate and no pivot plan could translate (src,tgt).
var ErrUnsupportedPair = errors.New("orchestrator: unsupported language pair")
