package server

import "errors"

var errMissingFactory = errors.New("server: ListenerConfig.WithFactory is required")
