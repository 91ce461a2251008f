//go:build wireinject
// +build wireinject

package wire

import (
	"github.com/google/wire"

	"orghub/internal/dbmysql"
	"orghub/internal/dispatch"
	"orghub/internal/pushreg"
	"orghub/internal/unread"
	"orghub/internal/viewed"
)

func InitializeApplication() (*Application, error) {
	wire.Build(
		ProvideConfig,
		ProvideMongoConnection,
		ProvideEntityStore,
		ProvideTokenStore,
		ProvideDatabaseConnection,
		dbmysql.NewDeliveryLogRepository,
		ProvideFirebaseApp,
		ProvideMulticastSender,
		viewed.NewTracker,
		ProvideBatchMarker,
		unread.NewAggregator,
		pushreg.NewRegistry,
		dispatch.NewDispatcher,
		ProvideBridge,
		ProvideServer,
		wire.Struct(new(Application), "*"),
	)
	return &Application{}, nil
}
