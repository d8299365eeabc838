package mocks

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/speedrun-hq/speedrun-settlement/pkg/chainclient"
	"github.com/stretchr/testify/mock"
)

// Client is a testify mock of chainclient.Client
type Client struct {
	mock.Mock
}

var _ chainclient.Client = (*Client)(nil)

func (m *Client) Submit(ctx context.Context, chainID int, action chainclient.Action, args chainclient.Args) (chainclient.SubmitResult, error) {
	ret := m.Called(ctx, chainID, action, args)
	return ret.Get(0).(chainclient.SubmitResult), ret.Error(1)
}

func (m *Client) Read(ctx context.Context, chainID int, query chainclient.Query) (string, error) {
	ret := m.Called(ctx, chainID, query)
	return ret.String(0), ret.Error(1)
}

// Provisioner is a testify mock of chainclient.Provisioner
type Provisioner struct {
	mock.Mock
}

var _ chainclient.Provisioner = (*Provisioner)(nil)

func (m *Provisioner) Provision(ctx context.Context, chainID int, token string, owner string, amount decimal.Decimal) error {
	return m.Called(ctx, chainID, token, owner, amount).Error(0)
}
