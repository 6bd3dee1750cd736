package repositories

import "errors"

// errDB is the generic database failure injected into sqlmock expectations.
var errDB = errors.New("db error")

func strPtr(s string) *string { return &s }
