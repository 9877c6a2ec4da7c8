package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/phantomlaunch/identity-server/internal/logger"
	"github.com/phantomlaunch/identity-server/internal/model"
)

// Launch orchestrates third-party token launches: it resolves (or mints)
// the developer's phantom wallet and feeds the address to the deployer as
// the fee recipient. This is the only coupling between deployment and
// identity.
type Launch struct {
	identity *Identity
	deployer model.Deployer
	logger   *logger.Logger
}

// NewLaunch creates the launch service.
func NewLaunch(identity *Identity, deployer model.Deployer, logger *logger.Logger) *Launch {
	return &Launch{
		identity: identity,
		deployer: deployer,
		logger:   logger,
	}
}

// LaunchParams describe a token launch request for a project that may not
// have a registered owner yet.
type LaunchParams struct {
	Platform   model.Platform
	PlatformID string
	Name       string
	Symbol     string
	CreatedBy  string
}

// LaunchResult carries the deployment outcome plus the developer identity
// it was attributed to.
type LaunchResult struct {
	TokenAddress string
	PoolID       string
	DevAddress   string
	DevUserID    uuid.UUID
	IsNewDev     bool
}

// LaunchToken ensures a phantom user exists for the project and submits
// the launch with that user's wallet as dev address.
func (s *Launch) LaunchToken(ctx context.Context, params LaunchParams) (LaunchResult, error) {
	phantom, err := s.identity.CreatePhantomUser(ctx, params.Platform, params.PlatformID, params.CreatedBy)
	if err != nil {
		return LaunchResult{}, fmt.Errorf("failed to resolve dev identity: %w", err)
	}

	deployed, err := s.deployer.Deploy(ctx, model.DeployParams{
		Name:       params.Name,
		Symbol:     params.Symbol,
		ProjectID:  params.PlatformID,
		DevAddress: phantom.WalletAddress,
	})
	if err != nil {
		return LaunchResult{}, fmt.Errorf("failed to deploy token: %w", err)
	}

	s.logger.Info("Launch service: token launched",
		"platform", params.Platform,
		"platform_id", params.PlatformID,
		"token_address", deployed.TokenAddress,
		"dev_address", phantom.WalletAddress,
		"new_dev", phantom.IsNew)

	return LaunchResult{
		TokenAddress: deployed.TokenAddress,
		PoolID:       deployed.PoolID,
		DevAddress:   phantom.WalletAddress,
		DevUserID:    phantom.User.ID,
		IsNewDev:     phantom.IsNew,
	}, nil
}
