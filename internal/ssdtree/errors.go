package ssdtree

import "errors"

// errNoRoom surfaces superleaf.Rejected: the sub-page fp maps to is full
// while the super-leaf as a whole is still below its split threshold.
var errNoRoom = errors.New("ssdtree: target sub-page is full and the super-leaf is not full enough to split")
