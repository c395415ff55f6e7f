//go:build wireinject

package api

import (
	"database/sql"
	"testing"

	"github.com/google/wire"
	"github/chapool/go-withdrawer/internal/config"
	"github/chapool/go-withdrawer/internal/metrics"
	"github/chapool/go-withdrawer/internal/wallet/address"
	"github/chapool/go-withdrawer/internal/wallet/seed"
)

// INJECTORS - https://github.com/google/wire/blob/main/docs/guide.md#injectors

// serviceSet groups the default set of providers that are required for initing a server
var serviceSet = wire.NewSet(
	newServerWithComponents,
	NewRedis,
	NewStore,
	NewAlerter,
	NewKeystore,
	seed.NewManager,
	address.NewService,
	metrics.New,
	NewClock,
)

// InitNewServer returns a new Server instance.
func InitNewServer(
	_ config.Server,
) (*Server, error) {
	wire.Build(serviceSet, NewDB, NoTest)
	return new(Server), nil
}

// InitNewServerWithDB returns a new Server instance with the given DB instance.
// All the other components are initialized via go wire according to the configuration.
func InitNewServerWithDB(
	_ config.Server,
	_ *sql.DB,
	t ...*testing.T,
) (*Server, error) {
	wire.Build(serviceSet)
	return new(Server), nil
}
