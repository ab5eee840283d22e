package http

import (
	"github.com/nats-io/nats.go"
	"github.com/samirrijal/magvar/internal/adapters/postgres"
	"github.com/samirrijal/magvar/internal/adapters/valkey"
	"github.com/samirrijal/magvar/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Declination *usecases.DeclinationService
	Deployments *usecases.DeploymentService
	NATS        *nats.Conn
	DB          *postgres.DB
	Cache       *valkey.Cache
}
