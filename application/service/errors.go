package service

import "errors"

// ErrNoPlaceStore indicates recommendations by owner without a configured place store.
var ErrNoPlaceStore = errors.New("travelmap: no place store configured")
