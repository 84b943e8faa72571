package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/emberhollow/storefront/internal/config"
	"github.com/emberhollow/storefront/internal/migration"
	"github.com/emberhollow/storefront/internal/observability"
	"github.com/emberhollow/storefront/internal/server"
	"github.com/emberhollow/storefront/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
