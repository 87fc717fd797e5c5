package settings

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/factorykpi/factorykpi/internal/shared"
)

type memGroup struct {
	name    string
	perms   []int64
	members []int64
}

type memState struct {
	users   map[int64]string
	groups  map[int64]*memGroup
	links   map[int64]int64
	actions []string
	nextID  int64
}

func (s *memState) clone() *memState {
	c := &memState{
		users:   make(map[int64]string, len(s.users)),
		groups:  make(map[int64]*memGroup, len(s.groups)),
		links:   make(map[int64]int64, len(s.links)),
		actions: append([]string(nil), s.actions...),
		nextID:  s.nextID,
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.groups {
		g := *v
		g.perms = append([]int64(nil), v.perms...)
		g.members = append([]int64(nil), v.members...)
		c.groups[k] = &g
	}
	for k, v := range s.links {
		c.links[k] = v
	}
	return c
}

type memRepo struct {
	state   *memState
	failOn  string
	commits int
}

func newMemRepo() *memRepo {
	return &memRepo{state: &memState{
		users:  map[int64]string{1: "admin", 2: "operator"},
		groups: map[int64]*memGroup{10: {name: shared.AdministratorGroup, members: []int64{1}}, 11: {name: "Manager"}},
		links:  map[int64]int64{1: 10},
		nextID: 100,
	}}
}

func (m *memRepo) WithTx(ctx context.Context, fn func(Store) error) error {
	work := m.state.clone()
	if err := fn(&memStore{state: work, failOn: m.failOn}); err != nil {
		return err
	}
	m.state = work
	m.commits++
	return nil
}

func (m *memRepo) ListUsers(ctx context.Context) ([]UserRow, error) {
	var rows []UserRow
	for id, name := range m.state.users {
		rows = append(rows, UserRow{ID: id, Username: name})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Username < rows[j].Username })
	return rows, nil
}

func (m *memRepo) ListGroups(ctx context.Context) ([]GroupRow, error) {
	var rows []GroupRow
	for id, g := range m.state.groups {
		rows = append(rows, GroupRow{ID: id, Name: g.name, MemberIDs: g.members, PermissionIDs: g.perms})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	return rows, nil
}

func (m *memRepo) DatabaseInfo(ctx context.Context) (DatabaseInfo, error) {
	return DatabaseInfo{Name: "factorykpi", Size: 3 * 1024 * 1024}, nil
}

type memStore struct {
	state  *memState
	failOn string
}

func (s *memStore) fail(op string) error {
	if s.failOn == op {
		return errors.New(op + " exploded")
	}
	return nil
}

func (s *memStore) CreateUser(ctx context.Context, username, email, hash string) (int64, error) {
	for _, u := range s.state.users {
		if u == username {
			return 0, invalid("A user named %s already exists.", username)
		}
	}
	s.state.nextID++
	s.state.users[s.state.nextID] = username
	return s.state.nextID, nil
}

func (s *memStore) UpdateUser(ctx context.Context, id int64, username, email string) error {
	if _, ok := s.state.users[id]; !ok {
		return fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
	}
	s.state.users[id] = username
	return nil
}

func (s *memStore) SetUserGroup(ctx context.Context, userID int64, groupID *int64) error {
	if err := s.fail("SetUserGroup"); err != nil {
		return err
	}
	delete(s.state.links, userID)
	if groupID == nil {
		return nil
	}
	if _, ok := s.state.groups[*groupID]; !ok {
		return fmt.Errorf("group %d: %w", *groupID, shared.ErrNotFound)
	}
	s.state.links[userID] = *groupID
	return nil
}

func (s *memStore) DeleteUser(ctx context.Context, id int64) (string, error) {
	name, ok := s.state.users[id]
	if !ok {
		return "", fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
	}
	delete(s.state.users, id)
	return name, nil
}

func (s *memStore) FindGroup(ctx context.Context, id int64) (GroupRow, error) {
	g, ok := s.state.groups[id]
	if !ok {
		return GroupRow{}, fmt.Errorf("group %d: %w", id, shared.ErrNotFound)
	}
	return GroupRow{ID: id, Name: g.name}, nil
}

func (s *memStore) GroupNameTaken(ctx context.Context, key string, excludeID int64) (bool, error) {
	for id, g := range s.state.groups {
		if id != excludeID && NameKey(g.name) == key {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) CreateGroup(ctx context.Context, name, key string) (int64, error) {
	s.state.nextID++
	s.state.groups[s.state.nextID] = &memGroup{name: name}
	return s.state.nextID, nil
}

func (s *memStore) RenameGroup(ctx context.Context, id int64, name, key string) error {
	s.state.groups[id].name = name
	return nil
}

func (s *memStore) SetGroupPermissions(ctx context.Context, id int64, perms []int64) error {
	if err := s.fail("SetGroupPermissions"); err != nil {
		return err
	}
	s.state.groups[id].perms = perms
	return nil
}

func (s *memStore) SetGroupMembers(ctx context.Context, id int64, users []int64) error {
	s.state.groups[id].members = users
	return nil
}

func (s *memStore) DeleteGroup(ctx context.Context, id int64) error {
	delete(s.state.groups, id)
	return nil
}

func (s *memStore) RecordAction(ctx context.Context, userID int64, action string) error {
	if err := s.fail("RecordAction"); err != nil {
		return err
	}
	if _, ok := s.state.users[userID]; !ok {
		return fmt.Errorf("insert action log: user %d violates foreign key", userID)
	}
	s.state.actions = append(s.state.actions, action)
	return nil
}

type jsonSink map[string]any

func (j jsonSink) SetJSON(key string, v any) error {
	j[key] = v
	return nil
}

func newTestService(repo Repository) *Service {
	return NewService(repo).WithHashCost(bcrypt.MinCost)
}

func TestDecodeCommand(t *testing.T) {
	cmd, err := DecodeCommand(url.Values{
		"action":      {ActionUpdateGroup},
		"group_id":    {"11"},
		"name":        {"  Shift leads "},
		"permissions": {"3", "1", "3"},
		"users":       {"2"},
	})
	require.NoError(t, err)
	assert.Equal(t, UpdateGroup{GroupID: 11, Name: "Shift leads", PermissionIDs: []int64{3, 1}, UserIDs: []int64{2}}, cmd)

	cmd, err = DecodeCommand(url.Values{"action": {ActionCreateUser}, "username": {"bob"}, "password": {"x"}, "group": {""}})
	require.NoError(t, err)
	assert.Nil(t, cmd.(CreateUser).GroupID)

	_, err = DecodeCommand(url.Values{"action": {"drop_tables"}})
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = DecodeCommand(url.Values{"action": {ActionDeleteUser}, "user_id": {"abc"}})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestDecodeSaveDataSources(t *testing.T) {
	cmd, err := DecodeCommand(url.Values{
		"action":                 {ActionSaveDataSources},
		"source_1c_path":         {" /srv/1c "},
		"source_access_enabled":  {"on"},
		"source_access_password": {"secret"},
	})
	require.NoError(t, err)
	sources := cmd.(SaveDataSources).Sources
	assert.False(t, sources.OneC.Enabled)
	assert.Equal(t, "/srv/1c", sources.OneC.Path)
	assert.Equal(t, "daily", sources.OneC.Schedule)
	assert.True(t, sources.Access.Enabled)
	assert.Equal(t, "secret", sources.Access.Password)
}

func TestDeleteAdministratorGroupRefused(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	_, err := svc.Execute(context.Background(), 1, DeleteGroup{GroupID: 10}, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "Administrator")
	assert.Contains(t, repo.state.groups, int64(10))
	assert.Empty(t, repo.state.actions)
	assert.Zero(t, repo.commits)
}

func TestCreateGroupRejectsCaseOnlyDuplicate(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	_, err := svc.Execute(context.Background(), 1, CreateGroup{Name: "manager"}, nil)
	assert.Equal(t, errDuplicateGroup, err)
	assert.Len(t, repo.state.groups, 2)

	_, err = svc.Execute(context.Background(), 1, CreateGroup{Name: ""}, nil)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestCreateGroupSetsLinksAndLogs(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	msg, err := svc.Execute(context.Background(), 1, CreateGroup{Name: "Specialist", PermissionIDs: []int64{1, 2}, UserIDs: []int64{2}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Group Specialist created.", msg)
	g := repo.state.groups[101]
	require.NotNil(t, g)
	assert.Equal(t, []int64{1, 2}, g.perms)
	assert.Equal(t, []int64{2}, g.members)
	assert.Equal(t, []string{"Created group Specialist"}, repo.state.actions)
}

func TestUpdateGroupRenameExcludesItself(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	_, err := svc.Execute(context.Background(), 1, UpdateGroup{GroupID: 11, Name: "MANAGER"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "MANAGER", repo.state.groups[11].name)

	_, err = svc.Execute(context.Background(), 1, UpdateGroup{GroupID: 11, Name: "administrator"}, nil)
	assert.Equal(t, errDuplicateGroup, err)

	_, err = svc.Execute(context.Background(), 1, UpdateGroup{GroupID: 99}, nil)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSystemGroupCannotBeRenamed(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	_, err := svc.Execute(context.Background(), 1, UpdateGroup{GroupID: 10, Name: "Admins"}, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "cannot be renamed")
	assert.Equal(t, shared.AdministratorGroup, repo.state.groups[10].name)
	assert.Zero(t, repo.commits)

	_, err = svc.Execute(context.Background(), 1, UpdateGroup{GroupID: 10, Name: "ADMINISTRATOR", UserIDs: []int64{1}}, nil)
	require.NoError(t, err)
	assert.True(t, GroupRow{Name: repo.state.groups[10].name}.IsSystem())
}

func TestFailedMutationRollsBack(t *testing.T) {
	repo := newMemRepo()
	repo.failOn = "SetGroupPermissions"
	svc := newTestService(repo)

	_, err := svc.Execute(context.Background(), 1, UpdateGroup{GroupID: 11, Name: "Planners"}, nil)
	require.Error(t, err)
	assert.Equal(t, "Manager", repo.state.groups[11].name)
	assert.Empty(t, repo.state.actions)
}

func TestCreateAndUpdateUser(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	group := int64(11)

	_, err := svc.Execute(context.Background(), 1, CreateUser{Username: "carol", Email: "carol@plant.test", Password: "pw", GroupID: &group}, nil)
	require.NoError(t, err)
	assert.Equal(t, "carol", repo.state.users[101])
	assert.Equal(t, int64(11), repo.state.links[101])

	_, err = svc.Execute(context.Background(), 1, UpdateUser{UserID: 101, Username: "caroline"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "caroline", repo.state.users[101])
	assert.NotContains(t, repo.state.links, int64(101))

	_, err = svc.Execute(context.Background(), 1, CreateUser{Username: "", Password: ""}, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "Username is required.")

	_, err = svc.Execute(context.Background(), 1, CreateUser{Username: "dave", Email: "not-an-email", Password: "pw"}, nil)
	assert.ErrorAs(t, err, &verr)
}

func TestDeleteUserMissing(t *testing.T) {
	svc := newTestService(newMemRepo())
	_, err := svc.Execute(context.Background(), 1, DeleteUser{UserID: 404}, nil)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeleteUserLogsAction(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	msg, err := svc.Execute(context.Background(), 1, DeleteUser{UserID: 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, "User operator deleted.", msg)
	assert.Equal(t, []string{"Deleted user operator"}, repo.state.actions)
}

func TestDeleteOwnAccountCommits(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	msg, err := svc.Execute(context.Background(), 1, DeleteUser{UserID: 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, "User admin deleted.", msg)
	assert.NotContains(t, repo.state.users, int64(1))
	assert.Equal(t, 1, repo.commits)
}

func TestSaveDataSourcesKeepsSessionWhenAuditFails(t *testing.T) {
	repo := newMemRepo()
	repo.failOn = "RecordAction"
	svc := newTestService(repo)
	sink := jsonSink{}

	_, err := svc.Execute(context.Background(), 1, SaveDataSources{Sources: DefaultDataSources()}, sink)
	require.Error(t, err)
	assert.Empty(t, sink)
}

func TestSaveDataSourcesStoresInSession(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	sink := jsonSink{}

	sources := DefaultDataSources()
	sources.OneC.Path = "/srv/exchange"
	_, err := svc.Execute(context.Background(), 1, SaveDataSources{Sources: sources}, sink)
	require.NoError(t, err)
	assert.Equal(t, sources, sink[DataSourcesKey])
	assert.Equal(t, []string{"Updated data source settings"}, repo.state.actions)

	_, err = svc.Execute(context.Background(), 1, SaveDataSources{Sources: sources}, nil)
	assert.ErrorIs(t, err, shared.ErrSessionMissing)
}

func TestNameKeyAndFormatSize(t *testing.T) {
	assert.Equal(t, NameKey("Administrator"), NameKey("  ADMINISTRATOR "))
	assert.True(t, GroupRow{Name: "administrator"}.IsSystem())
	assert.Equal(t, "512 bytes", FormatSize(512))
	assert.Equal(t, "2.00 KB", FormatSize(2048))
	assert.Equal(t, "3.00 MB", FormatSize(3*1024*1024))
}
