package bootstrap

import (
	"barberbook/internal/infra/stripegw"
	"barberbook/internal/usecase/shared"

	"go.uber.org/fx"
)

var StripeModule = fx.Module("stripe",
	fx.Provide(
		fx.Annotate(
			stripegw.NewGateway,
			fx.As(new(shared.PaymentGateway)),
			fx.As(new(shared.WebhookVerifier)),
		),
	),
)
