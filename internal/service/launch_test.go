package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/phantomlaunch/identity-server/internal/model"
	"github.com/phantomlaunch/identity-server/internal/testutil"
)

// MockDeployer mocks the Deployer interface
type MockDeployer struct {
	mock.Mock
}

func (m *MockDeployer) Deploy(ctx context.Context, params model.DeployParams) (model.DeployResult, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(model.DeployResult), args.Error(1)
}

func TestLaunchToken_NewDev(t *testing.T) {
	ctx := context.Background()
	identity, _ := newTestIdentity(t)
	deployer := &MockDeployer{}

	deployer.On("Deploy", mock.Anything, mock.MatchedBy(func(params model.DeployParams) bool {
		return params.Name == "Rocket" && params.Symbol == "RKT" &&
			params.ProjectID == "acme/rocket" && params.DevAddress != ""
	})).Return(model.DeployResult{TokenAddress: "0xt0ken", PoolID: "pool-1"}, nil)

	svc := NewLaunch(identity, deployer, testutil.MakeNoopLogger())

	result, err := svc.LaunchToken(ctx, LaunchParams{
		Platform:   model.PlatformGitHub,
		PlatformID: "acme/rocket",
		Name:       "Rocket",
		Symbol:     "RKT",
		CreatedBy:  "launch-bot",
	})
	require.NoError(t, err)
	assert.True(t, result.IsNewDev)
	assert.Equal(t, "0xt0ken", result.TokenAddress)
	assert.Equal(t, "pool-1", result.PoolID)
	assert.NotEmpty(t, result.DevAddress)

	// The dev address is the phantom user's wallet.
	user, err := identity.FindUserByPlatform(ctx, model.PlatformGitHub, "acme/rocket")
	require.NoError(t, err)
	assert.Equal(t, user.WalletAddress, result.DevAddress)
	assert.Equal(t, user.ID, result.DevUserID)

	deployer.AssertExpectations(t)
}

func TestLaunchToken_ExistingDev(t *testing.T) {
	ctx := context.Background()
	identity, _ := newTestIdentity(t)
	deployer := &MockDeployer{}
	deployer.On("Deploy", mock.Anything, mock.Anything).Return(model.DeployResult{TokenAddress: "0xt0ken"}, nil).Twice()

	svc := NewLaunch(identity, deployer, testutil.MakeNoopLogger())

	first, err := svc.LaunchToken(ctx, LaunchParams{
		Platform:   model.PlatformGitHub,
		PlatformID: "acme/rocket",
		Name:       "Rocket",
		Symbol:     "RKT",
	})
	require.NoError(t, err)
	assert.True(t, first.IsNewDev)

	second, err := svc.LaunchToken(ctx, LaunchParams{
		Platform:   model.PlatformGitHub,
		PlatformID: "acme/rocket",
		Name:       "Rocket V2",
		Symbol:     "RKT2",
	})
	require.NoError(t, err)
	assert.False(t, second.IsNewDev)
	assert.Equal(t, first.DevAddress, second.DevAddress)
	assert.Equal(t, first.DevUserID, second.DevUserID)
}

func TestLaunchToken_DeployFailure(t *testing.T) {
	ctx := context.Background()
	identity, _ := newTestIdentity(t)
	deployer := &MockDeployer{}
	deployer.On("Deploy", mock.Anything, mock.Anything).Return(model.DeployResult{}, errors.New("chain unavailable"))

	svc := NewLaunch(identity, deployer, testutil.MakeNoopLogger())

	_, err := svc.LaunchToken(ctx, LaunchParams{
		Platform:   model.PlatformGitHub,
		PlatformID: "acme/rocket",
		Name:       "Rocket",
		Symbol:     "RKT",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to deploy token")

	// The phantom user survives a failed deploy; a retry reuses it.
	user, err := identity.FindUserByPlatform(ctx, model.PlatformGitHub, "acme/rocket")
	require.NoError(t, err)
	assert.Equal(t, model.UserStatusPhantom, user.Status)
}
