package domain

import (
	"regexp"
	"strings"

	"github.com/dmehra2102/tenant-commerce/pkg/apperr"
)

// TenantID identifies one store. It is opaque to the registry; the
// provisioner decides whether it can back a database.
type TenantID string

func (id TenantID) String() string { return string(id) }

// ParseTenantID trims raw and rejects blank identifiers.
func ParseTenantID(raw string) (TenantID, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", apperr.Validation("tenant id is required")
	}
	return TenantID(id), nil
}

var databaseSafe = regexp.MustCompile(`^[a-z0-9][a-z0-9_]{0,47}$`)

var reservedNames = map[string]struct{}{
	"postgres":  {},
	"template0": {},
	"template1": {},
}

// DatabaseName derives the backing database name for id.
// It reports false for ids that cannot name a database.
func DatabaseName(prefix string, id TenantID) (string, bool) {
	s := string(id)
	if !databaseSafe.MatchString(s) {
		return "", false
	}
	name := prefix + s
	if _, reserved := reservedNames[name]; reserved {
		return "", false
	}
	return name, true
}

// TenantFromDatabase is the inverse of DatabaseName.
func TenantFromDatabase(prefix, name string) (TenantID, bool) {
	if !strings.HasPrefix(name, prefix) {
		return "", false
	}
	id := TenantID(strings.TrimPrefix(name, prefix))
	if _, ok := DatabaseName(prefix, id); !ok {
		return "", false
	}
	return id, true
}
