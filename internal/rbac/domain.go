package rbac

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Account is the identity row loaded for every authenticated request.
type Account struct {
	ID          int64  `db:"id"`
	Username    string `db:"username"`
	IsSuperuser bool   `db:"is_superuser"`
	IsActive    bool   `db:"is_active"`
}

// Permission represents an atomic capability, addressed as app_label.codename.
type Permission struct {
	ID       int64  `db:"id"`
	AppLabel string `db:"app_label"`
	Codename string `db:"codename"`
	Name     string `db:"name"`
}

// Key returns the dotted permission name.
func (p Permission) Key() string {
	return p.AppLabel + "." + p.Codename
}

// PermissionGroup is a run of permissions sharing one app label.
type PermissionGroup struct {
	Key         string
	Label       string
	Permissions []Permission
}

// GroupByApp buckets permissions by app label, keeping their order.
func GroupByApp(perms []Permission) []PermissionGroup {
	var out []PermissionGroup
	for _, p := range perms {
		if n := len(out); n == 0 || out[n-1].Key != p.AppLabel {
			out = append(out, PermissionGroup{Key: p.AppLabel, Label: cases.Title(language.English).String(p.AppLabel)})
		}
		out[len(out)-1].Permissions = append(out[len(out)-1].Permissions, p)
	}
	return out
}
