package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// ExportInterval is how often metrics are pushed to the OTLP collector.
const ExportInterval = 30 * time.Second

// SetupOTLP installs a global meter provider exporting over OTLP/HTTP. The
// collector endpoint is taken from the standard OTEL_EXPORTER_OTLP_* variables.
// The returned function flushes and stops the provider.
func SetupOTLP(ctx context.Context) (func(context.Context) error, error) {
	exporter, err := otlpmetrichttp.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(ExportInterval))),
	)
	otel.SetMeterProvider(provider)

	return provider.Shutdown, nil
}
