package auth

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/guildkeeper/internal/common"
	"github.com/dmitrijs2005/guildkeeper/internal/logging"
	"github.com/dmitrijs2005/guildkeeper/internal/server/models"
	"github.com/dmitrijs2005/guildkeeper/internal/server/repositories/credentials"
)

const authRole = "role-auth"

type fakePlatform struct {
	mu      sync.Mutex
	dms     map[string][]string
	grants  []string
	dmErr   error
	roleErr error
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{dms: map[string][]string{}}
}

func (p *fakePlatform) SendPrivateMessage(ctx context.Context, userID, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dmErr != nil {
		return p.dmErr
	}
	p.dms[userID] = append(p.dms[userID], text)
	return nil
}

func (p *fakePlatform) GrantRole(ctx context.Context, userID, roleID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.roleErr != nil {
		return p.roleErr
	}
	p.grants = append(p.grants, userID+":"+roleID)
	return nil
}

type failingRepo struct {
	credentials.Repository
	err error
}

func (r failingRepo) GetByID(ctx context.Context, userID string) (*models.Credential, error) {
	return nil, r.err
}

var testModules = map[string]string{
	"modulo1": "http://link-para-o-modulo1.com",
	"modulo2": "http://link-para-o-modulo2.com",
}

func newTestService(t *testing.T) (*Service, *credentials.MemoryRepository, *fakePlatform) {
	t.Helper()
	repo := credentials.NewMemoryRepository()
	p := newFakePlatform()
	s := NewService(repo, &BcryptHasher{Cost: bcrypt.MinCost}, p, authRole, testModules, logging.Nop{})
	return s, repo, p
}

func register(t *testing.T, s *Service, userID, content string) *models.Credential {
	t.Helper()
	c, err := s.CompleteRegistration(context.Background(), userID, content)
	require.NoError(t, err)
	return c
}

func TestRegister_SendsPrompt(t *testing.T) {
	s, repo, p := newTestService(t)

	require.NoError(t, s.Register(context.Background(), "u1"))
	assert.Equal(t, []string{RegistrationPrompt}, p.dms["u1"])

	all, _ := repo.GetAll(context.Background())
	assert.Empty(t, all, "nothing is persisted before completion")
}

func TestRegister_AlreadyRegistered(t *testing.T) {
	s, _, p := newTestService(t)
	register(t, s, "u1", "alice secret1")

	err := s.Register(context.Background(), "u1")
	require.ErrorIs(t, err, ErrAlreadyRegistered)
	assert.Empty(t, p.dms["u1"])
}

func TestRegister_DeliveryFailure(t *testing.T) {
	s, _, p := newTestService(t)
	p.dmErr = errors.New("dms closed")

	err := s.Register(context.Background(), "u1")
	require.ErrorIs(t, err, ErrDeliveryFailed)
	assert.Contains(t, err.Error(), "dms closed")
}

func TestRegister_StoreFailureIsInternal(t *testing.T) {
	p := newFakePlatform()
	s := NewService(failingRepo{err: errors.New("dynamo down")}, NewBcryptHasher(), p, authRole, testModules, logging.Nop{})

	err := s.Register(context.Background(), "u1")
	require.ErrorIs(t, err, common.ErrorInternal)
	assert.Empty(t, p.dms)
}

func TestCompleteRegistration_StoresHashNotPassword(t *testing.T) {
	s, repo, _ := newTestService(t)

	register(t, s, "U", "alice secret1")

	got, err := repo.GetByID(context.Background(), "U")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.NotEqual(t, "secret1", got.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(got.PasswordHash), []byte("secret1")))
}

func TestCompleteRegistration_InvalidFormat(t *testing.T) {
	s, repo, _ := newTestService(t)

	for _, content := range []string{"", "   ", "alice"} {
		_, err := s.CompleteRegistration(context.Background(), "u1", content)
		require.ErrorIs(t, err, ErrInvalidFormat, "content %q", content)
	}

	all, _ := repo.GetAll(context.Background())
	assert.Empty(t, all)
}

func TestCompleteRegistration_ExtraTokensIgnored(t *testing.T) {
	s, _, _ := newTestService(t)

	c := register(t, s, "u1", "alice  secret1 trailing words")
	assert.Equal(t, "alice", c.Username)
	ok, err := s.hasher.Verify(c.PasswordHash, "secret1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCompleteRegistration_SecondAttemptLeavesCredentialUnchanged(t *testing.T) {
	s, repo, _ := newTestService(t)
	register(t, s, "u1", "alice secret1")
	before, err := repo.GetByID(context.Background(), "u1")
	require.NoError(t, err)

	_, err = s.CompleteRegistration(context.Background(), "u1", "mallory other")
	require.ErrorIs(t, err, ErrAlreadyRegistered)

	after, err := repo.GetByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestCompleteRegistration_ConcurrentOnlyOneWins(t *testing.T) {
	s, repo, _ := newTestService(t)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.CompleteRegistration(context.Background(), "u1", "alice secret1")
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyRegistered)
	}
	assert.Equal(t, 1, ok)

	all, _ := repo.GetAll(context.Background())
	assert.Len(t, all, 1)
}

func TestLogin_Usage(t *testing.T) {
	s, _, p := newTestService(t)

	for _, args := range [][]string{nil, {"alice"}, {"", "pw"}} {
		_, err := s.Login(context.Background(), "u1", args)
		require.ErrorIs(t, err, ErrUsage)
	}
	assert.Empty(t, p.grants)
}

func TestLogin_UserNotFound(t *testing.T) {
	s, _, p := newTestService(t)

	_, err := s.Login(context.Background(), "u1", []string{"alice", "secret1", "modulo1"})
	require.ErrorIs(t, err, ErrUserNotFound)
	assert.Empty(t, p.grants)
}

func TestLogin_WrongPasswordNeverGrantsRole(t *testing.T) {
	s, _, p := newTestService(t)
	register(t, s, "u1", "alice secret1")

	_, errRightName := s.Login(context.Background(), "u1", []string{"alice", "wrong", "modulo1"})
	_, errWrongName := s.Login(context.Background(), "u1", []string{"bob", "wrong", "modulo1"})

	require.ErrorIs(t, errRightName, ErrIncorrectPassword)
	require.ErrorIs(t, errWrongName, ErrIncorrectPassword)
	assert.Equal(t, errRightName.Error(), errWrongName.Error())
	assert.Empty(t, p.grants)
}

func TestLogin_UsernameIsNotChecked(t *testing.T) {
	s, _, p := newTestService(t)
	register(t, s, "u1", "alice secret1")

	res, err := s.Login(context.Background(), "u1", []string{"not-alice", "secret1", "modulo2"})
	require.NoError(t, err)
	assert.True(t, res.ModuleFound)
	assert.Equal(t, "http://link-para-o-modulo2.com", res.URL)
	assert.Equal(t, []string{"u1:" + authRole}, p.grants)
}

func TestLogin_UnknownOrMissingModule(t *testing.T) {
	s, _, p := newTestService(t)
	register(t, s, "u1", "alice secret1")

	res, err := s.Login(context.Background(), "u1", []string{"alice", "secret1"})
	require.NoError(t, err)
	assert.False(t, res.ModuleFound)
	assert.Empty(t, res.URL)

	res, err = s.Login(context.Background(), "u1", []string{"alice", "secret1", "modulo9"})
	require.NoError(t, err)
	assert.False(t, res.ModuleFound)
	assert.Equal(t, "modulo9", res.Module)

	assert.Len(t, p.grants, 2, "role is re-requested on every login")
}

func TestLogin_RoleGrantFailureRevealsNothing(t *testing.T) {
	s, _, p := newTestService(t)
	register(t, s, "u1", "alice secret1")
	p.roleErr = errors.New("missing permissions")

	res, err := s.Login(context.Background(), "u1", []string{"alice", "secret1", "modulo1"})
	require.ErrorIs(t, err, ErrRoleGrant)
	assert.Nil(t, res)
}

func TestRegisterThenLogin_Scenario(t *testing.T) {
	repo := credentials.NewMemoryRepository()
	p := newFakePlatform()
	s := NewService(repo, NewBcryptHasher(), p, authRole, testModules, logging.Nop{})
	ctx := context.Background()

	require.NoError(t, s.Register(ctx, "U"))
	c, err := s.CompleteRegistration(ctx, "U", "alice secret1")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", c.PasswordHash)

	cost, err := bcrypt.Cost([]byte(c.PasswordHash))
	require.NoError(t, err)
	assert.Equal(t, DefaultCost, cost)

	res, err := s.Login(ctx, "U", []string{"alice", "secret1", "modulo1"})
	require.NoError(t, err)
	assert.Equal(t, "http://link-para-o-modulo1.com", res.URL)
	assert.Equal(t, []string{"U:" + authRole}, p.grants)
}
