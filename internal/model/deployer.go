package model

import "context"

// DeployParams describe one on-chain token launch on behalf of a
// developer address.
type DeployParams struct {
	Name       string
	Symbol     string
	ProjectID  string
	DevAddress string
}

// DeployResult carries the parsed outcome of a confirmed launch
// transaction.
type DeployResult struct {
	TokenAddress string
	PoolID       string
}

// Deployer submits the launch transaction. The chain client lives outside
// this repository; the identity core only resolves the dev address fed
// into it.
type Deployer interface {
	Deploy(ctx context.Context, params DeployParams) (DeployResult, error)
}
