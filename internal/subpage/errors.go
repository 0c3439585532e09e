package subpage

import "errors"

var errInvalidSize = errors.New("subpage: block is not a valid 4 KiB sub-page image")
