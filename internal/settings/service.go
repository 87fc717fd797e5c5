package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/factorykpi/factorykpi/internal/shared"
)

const systemGroup = shared.AdministratorGroup

// DataSourcesKey is the session key holding the saved DataSources.
const DataSourcesKey = "data_sources"

var errDuplicateGroup = &ValidationError{Message: "A group with this name already exists."}

// DataSourceStore persists the data source form. *shared.Session satisfies it.
type DataSourceStore interface {
	SetJSON(key string, v any) error
}

// Service executes settings commands.
type Service struct {
	repo     Repository
	validate *validator.Validate
	hashCost int
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: validator.New(), hashCost: bcrypt.DefaultCost}
}

// WithHashCost overrides the bcrypt cost.
func (s *Service) WithHashCost(cost int) *Service {
	s.hashCost = cost
	return s
}

// Execute runs cmd on behalf of actorID and returns the success message.
func (s *Service) Execute(ctx context.Context, actorID int64, cmd Command, sources DataSourceStore) (string, error) {
	if err := s.validateCommand(cmd); err != nil {
		return "", err
	}
	switch c := cmd.(type) {
	case CreateUser:
		return s.createUser(ctx, actorID, c)
	case UpdateUser:
		return s.updateUser(ctx, actorID, c)
	case DeleteUser:
		return s.deleteUser(ctx, actorID, c)
	case CreateGroup:
		return s.createGroup(ctx, actorID, c)
	case UpdateGroup:
		return s.updateGroup(ctx, actorID, c)
	case DeleteGroup:
		return s.deleteGroup(ctx, actorID, c)
	case SaveDataSources:
		return s.saveDataSources(ctx, actorID, c, sources)
	default:
		return "", ErrUnknownAction
	}
}

func (s *Service) validateCommand(cmd Command) error {
	err := s.validate.Struct(cmd)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required.")
		case "email":
			msgs = append(msgs, "Enter a valid email address.")
		case "max":
			msgs = append(msgs, fe.Field()+" is too long.")
		default:
			msgs = append(msgs, fe.Field()+" is invalid.")
		}
	}
	return &ValidationError{Message: strings.Join(msgs, " ")}
}

func (s *Service) createUser(ctx context.Context, actorID int64, c CreateUser) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(c.Password), s.hashCost)
	if err != nil {
		return "", fmt.Errorf("settings: hash password: %w", err)
	}
	err = s.repo.WithTx(ctx, func(st Store) error {
		id, err := st.CreateUser(ctx, c.Username, c.Email, string(hash))
		if err != nil {
			return err
		}
		if c.GroupID != nil {
			if err := st.SetUserGroup(ctx, id, c.GroupID); err != nil {
				return err
			}
		}
		return st.RecordAction(ctx, actorID, "Created user "+c.Username)
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("User %s created.", c.Username), nil
}

func (s *Service) updateUser(ctx context.Context, actorID int64, c UpdateUser) (string, error) {
	err := s.repo.WithTx(ctx, func(st Store) error {
		if err := st.UpdateUser(ctx, c.UserID, c.Username, c.Email); err != nil {
			return err
		}
		if err := st.SetUserGroup(ctx, c.UserID, c.GroupID); err != nil {
			return err
		}
		return st.RecordAction(ctx, actorID, "Updated user "+c.Username)
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("User %s updated.", c.Username), nil
}

func (s *Service) deleteUser(ctx context.Context, actorID int64, c DeleteUser) (string, error) {
	var username string
	err := s.repo.WithTx(ctx, func(st Store) error {
		var err error
		if username, err = st.DeleteUser(ctx, c.UserID); err != nil {
			return err
		}
		// The action log references users; an account removing itself
		// leaves no row to attach the entry to.
		if actorID == c.UserID {
			return nil
		}
		return st.RecordAction(ctx, actorID, "Deleted user "+username)
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("User %s deleted.", username), nil
}

func (s *Service) createGroup(ctx context.Context, actorID int64, c CreateGroup) (string, error) {
	if c.Name == "" {
		return "", invalid("Group name cannot be empty.")
	}
	key := NameKey(c.Name)
	err := s.repo.WithTx(ctx, func(st Store) error {
		taken, err := st.GroupNameTaken(ctx, key, 0)
		if err != nil {
			return err
		}
		if taken {
			return errDuplicateGroup
		}
		id, err := st.CreateGroup(ctx, c.Name, key)
		if err != nil {
			return err
		}
		if err := st.SetGroupPermissions(ctx, id, c.PermissionIDs); err != nil {
			return err
		}
		if err := st.SetGroupMembers(ctx, id, c.UserIDs); err != nil {
			return err
		}
		return st.RecordAction(ctx, actorID, "Created group "+c.Name)
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Group %s created.", c.Name), nil
}

func (s *Service) updateGroup(ctx context.Context, actorID int64, c UpdateGroup) (string, error) {
	var name string
	err := s.repo.WithTx(ctx, func(st Store) error {
		group, err := st.FindGroup(ctx, c.GroupID)
		if err != nil {
			return err
		}
		name = group.Name
		if c.Name != "" {
			key := NameKey(c.Name)
			if group.IsSystem() && key != NameKey(group.Name) {
				return invalid("The system group %q cannot be renamed.", systemGroup)
			}
			taken, err := st.GroupNameTaken(ctx, key, group.ID)
			if err != nil {
				return err
			}
			if taken {
				return errDuplicateGroup
			}
			if err := st.RenameGroup(ctx, group.ID, c.Name, key); err != nil {
				return err
			}
			name = c.Name
		}
		if err := st.SetGroupPermissions(ctx, group.ID, c.PermissionIDs); err != nil {
			return err
		}
		if err := st.SetGroupMembers(ctx, group.ID, c.UserIDs); err != nil {
			return err
		}
		return st.RecordAction(ctx, actorID, "Updated group "+name)
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Group %s updated.", name), nil
}

func (s *Service) deleteGroup(ctx context.Context, actorID int64, c DeleteGroup) (string, error) {
	var name string
	err := s.repo.WithTx(ctx, func(st Store) error {
		group, err := st.FindGroup(ctx, c.GroupID)
		if err != nil {
			return err
		}
		if group.IsSystem() {
			return invalid("The system group %q cannot be deleted.", systemGroup)
		}
		name = group.Name
		if err := st.DeleteGroup(ctx, group.ID); err != nil {
			return err
		}
		return st.RecordAction(ctx, actorID, "Deleted group "+name)
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Group %s deleted.", name), nil
}

func (s *Service) saveDataSources(ctx context.Context, actorID int64, c SaveDataSources, sources DataSourceStore) (string, error) {
	if sources == nil {
		return "", shared.ErrSessionMissing
	}
	err := s.repo.WithTx(ctx, func(st Store) error {
		return st.RecordAction(ctx, actorID, "Updated data source settings")
	})
	if err != nil {
		return "", err
	}
	if err := sources.SetJSON(DataSourcesKey, c.Sources); err != nil {
		return "", fmt.Errorf("settings: store data sources: %w", err)
	}
	return "Data source settings saved.", nil
}

// Page is the settings screen model.
type Page struct {
	Users       []UserRow
	Groups      []GroupRow
	DataSources DataSources
	Database    DatabaseInfo
}

// Load reads users, groups and database info.
func (s *Service) Load(ctx context.Context) (Page, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return Page{}, err
	}
	groups, err := s.repo.ListGroups(ctx)
	if err != nil {
		return Page{}, err
	}
	info, err := s.repo.DatabaseInfo(ctx)
	if err != nil {
		return Page{}, err
	}
	return Page{Users: users, Groups: groups, Database: info}, nil
}
