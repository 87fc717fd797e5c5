package settings

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/factorykpi/factorykpi/internal/shared"
)

// ErrUnknownAction is returned by DecodeCommand for an unrecognised action.
var ErrUnknownAction = errors.New("settings: unknown action")

// ValidationError carries a message meant for the operator.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Form actions.
const (
	ActionCreateUser      = "create_user"
	ActionUpdateUser      = "update_user"
	ActionDeleteUser      = "delete_user"
	ActionCreateGroup     = "create_group"
	ActionUpdateGroup     = "update_group"
	ActionDeleteGroup     = "delete_group"
	ActionSaveDataSources = "save_data_sources"
)

// Command is one administrative mutation.
type Command interface {
	Action() string
}

// CreateUser adds an account.
type CreateUser struct {
	Username string `validate:"required,max=150"`
	Email    string `validate:"omitempty,email"`
	Password string `validate:"required"`
	GroupID  *int64
}

// UpdateUser renames an account and replaces its group.
type UpdateUser struct {
	UserID   int64  `validate:"required"`
	Username string `validate:"required,max=150"`
	Email    string `validate:"omitempty,email"`
	GroupID  *int64
}

// DeleteUser removes an account.
type DeleteUser struct {
	UserID int64 `validate:"required"`
}

// CreateGroup adds a group with permissions and members.
type CreateGroup struct {
	Name          string
	PermissionIDs []int64
	UserIDs       []int64
}

// UpdateGroup optionally renames a group and replaces its permissions and members.
type UpdateGroup struct {
	GroupID       int64 `validate:"required"`
	Name          string
	PermissionIDs []int64
	UserIDs       []int64
}

// DeleteGroup removes a group.
type DeleteGroup struct {
	GroupID int64 `validate:"required"`
}

// SaveDataSources stores the import source configuration.
type SaveDataSources struct {
	Sources DataSources
}

func (CreateUser) Action() string      { return ActionCreateUser }
func (UpdateUser) Action() string      { return ActionUpdateUser }
func (DeleteUser) Action() string      { return ActionDeleteUser }
func (CreateGroup) Action() string     { return ActionCreateGroup }
func (UpdateGroup) Action() string     { return ActionUpdateGroup }
func (DeleteGroup) Action() string     { return ActionDeleteGroup }
func (SaveDataSources) Action() string { return ActionSaveDataSources }

// DataSources is the import configuration kept in the operator's session.
type DataSources struct {
	OneC   OneCSource   `json:"source_1c"`
	Access AccessSource `json:"source_access"`
}

// OneCSource configures the 1C export import.
type OneCSource struct {
	Enabled  bool   `json:"enabled"`
	Path     string `json:"path"`
	Schedule string `json:"schedule"`
	LastSync string `json:"last_sync"`
}

// AccessSource configures the MS Access database import.
type AccessSource struct {
	Enabled  bool   `json:"enabled"`
	Path     string `json:"path"`
	Password string `json:"password"`
	LastSync string `json:"last_sync"`
}

// Schedules offered for the 1C import.
var Schedules = []string{"hourly", "daily", "weekly"}

// DefaultDataSources is shown until the operator saves the form.
func DefaultDataSources() DataSources {
	return DataSources{OneC: OneCSource{Enabled: true, Schedule: "daily"}}
}

// NameKey folds a group name for case-insensitive uniqueness.
func NameKey(name string) string {
	return shared.GroupKey(name)
}

// DecodeCommand builds the command named by the form's action field.
func DecodeCommand(form url.Values) (Command, error) {
	get := func(key string) string { return strings.TrimSpace(form.Get(key)) }
	switch form.Get("action") {
	case ActionCreateUser:
		group, err := optionalID(get("group"), "group")
		if err != nil {
			return nil, err
		}
		return CreateUser{Username: get("username"), Email: get("email"), Password: form.Get("password"), GroupID: group}, nil
	case ActionUpdateUser:
		id, err := requiredID(get("user_id"), "user")
		if err != nil {
			return nil, err
		}
		group, err := optionalID(get("group"), "group")
		if err != nil {
			return nil, err
		}
		return UpdateUser{UserID: id, Username: get("username"), Email: get("email"), GroupID: group}, nil
	case ActionDeleteUser:
		id, err := requiredID(get("user_id"), "user")
		if err != nil {
			return nil, err
		}
		return DeleteUser{UserID: id}, nil
	case ActionCreateGroup:
		perms, users, err := groupLinks(form)
		if err != nil {
			return nil, err
		}
		return CreateGroup{Name: get("name"), PermissionIDs: perms, UserIDs: users}, nil
	case ActionUpdateGroup:
		id, err := requiredID(get("group_id"), "group")
		if err != nil {
			return nil, err
		}
		perms, users, err := groupLinks(form)
		if err != nil {
			return nil, err
		}
		return UpdateGroup{GroupID: id, Name: get("name"), PermissionIDs: perms, UserIDs: users}, nil
	case ActionDeleteGroup:
		id, err := requiredID(get("group_id"), "group")
		if err != nil {
			return nil, err
		}
		return DeleteGroup{GroupID: id}, nil
	case ActionSaveDataSources:
		schedule := get("source_1c_schedule")
		if schedule == "" {
			schedule = "daily"
		}
		return SaveDataSources{Sources: DataSources{
			OneC: OneCSource{
				Enabled:  form.Get("source_1c_enabled") == "on",
				Path:     get("source_1c_path"),
				Schedule: schedule,
				LastSync: get("source_1c_last_sync"),
			},
			Access: AccessSource{
				Enabled:  form.Get("source_access_enabled") == "on",
				Path:     get("source_access_path"),
				Password: get("source_access_password"),
				LastSync: get("source_access_last_sync"),
			},
		}}, nil
	default:
		return nil, ErrUnknownAction
	}
}

func requiredID(raw, what string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, invalid("Invalid %s id.", what)
	}
	return id, nil
}

func optionalID(raw, what string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := requiredID(raw, what)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func groupLinks(form url.Values) ([]int64, []int64, error) {
	perms, err := idList(form["permissions"], "permission")
	if err != nil {
		return nil, nil, err
	}
	users, err := idList(form["users"], "user")
	if err != nil {
		return nil, nil, err
	}
	return perms, users, nil
}

func idList(raw []string, what string) ([]int64, error) {
	out := make([]int64, 0, len(raw))
	seen := make(map[int64]struct{}, len(raw))
	for _, v := range raw {
		id, err := requiredID(strings.TrimSpace(v), what)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// UserRow is one account on the settings page.
type UserRow struct {
	ID          int64    `db:"id"`
	Username    string   `db:"username"`
	Email       string   `db:"email"`
	IsActive    bool     `db:"is_active"`
	IsSuperuser bool     `db:"is_superuser"`
	Groups      []string `db:"groups"`
	GroupIDs    []int64  `db:"group_ids"`
}

// HasGroup reports whether the user belongs to group id.
func (u UserRow) HasGroup(id int64) bool {
	for _, g := range u.GroupIDs {
		if g == id {
			return true
		}
	}
	return false
}

// GroupRow is one group on the settings page.
type GroupRow struct {
	ID            int64    `db:"id"`
	Name          string   `db:"name"`
	Members       []string `db:"members"`
	MemberIDs     []int64  `db:"member_ids"`
	PermissionIDs []int64  `db:"permission_ids"`
}

// IsSystem reports whether the group is protected from deletion.
func (g GroupRow) IsSystem() bool {
	return NameKey(g.Name) == NameKey(systemGroup)
}

// DatabaseInfo describes the connected database.
type DatabaseInfo struct {
	Name string `db:"name"`
	Size int64  `db:"size"`
}

// SizeLabel renders Size in bytes, KB or MB.
func (d DatabaseInfo) SizeLabel() string {
	return FormatSize(d.Size)
}

// FormatSize renders a byte count the way the settings page shows it.
func FormatSize(n int64) string {
	switch {
	case n > 1024*1024:
		return fmt.Sprintf("%.2f MB", float64(n)/(1024*1024))
	case n > 1024:
		return fmt.Sprintf("%.2f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
