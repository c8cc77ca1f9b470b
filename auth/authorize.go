package auth

import (
	"log/slog"

	"medvault/types"
)

// Authorizer decides whether a principal may read a record.
type Authorizer interface {
	CanAccess(p Principal, rec *types.Record) bool
}

// OwnerAuthorizer is the default policy: the record's owner and clinical
// staff roles get access, everyone else is denied.
type OwnerAuthorizer struct{}

func (OwnerAuthorizer) CanAccess(p Principal, rec *types.Record) bool {
	if rec == nil {
		return false
	}
	if rec.OwnerLabel == p.Subject {
		return true
	}
	switch p.Role {
	case "doctor", "admin":
		return true
	}
	return false
}

// PermissiveAuthorizer grants every request and logs a warning. It exists
// only for demo and test configurations and must not be enabled in
// production deployments.
type PermissiveAuthorizer struct {
	Logger *slog.Logger
}

func (a PermissiveAuthorizer) CanAccess(p Principal, rec *types.Record) bool {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("permissive authorization granted access, demo mode only",
		"subject", p.Subject)
	return true
}
