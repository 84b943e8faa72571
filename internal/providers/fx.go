package providers

import (
	"github.com/emberhollow/storefront/internal/providers/email"
	"github.com/emberhollow/storefront/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
)
