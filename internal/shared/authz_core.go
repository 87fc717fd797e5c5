package shared

import (
	"strings"

	"golang.org/x/text/cases"
)

// AdministratorGroup is the system group that grants access to settings. It
// cannot be deleted or renamed to another name.
const AdministratorGroup = "Administrator"

// Default groups created next to AdministratorGroup by setup-roles.
const (
	ManagerGroup    = "Manager"
	SpecialistGroup = "Specialist"
)

// GroupKey folds a group name for case-insensitive comparison. It is the
// value stored in groups.name_key.
func GroupKey(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}
