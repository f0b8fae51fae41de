package ocicopy

import "errors"

// SkipNode is a control signal, not a failure. A PreCopy hook returns it
// to mark the current node as already present; the copy continues without
// copying the node or visiting its successors.
var SkipNode = errors.New("ocicopy: skip node")
