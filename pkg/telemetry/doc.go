// Package telemetry provides observability instrumentation for crfleet.
//
// It integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus) and an in-process event publisher.
//
// # Usage
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//	telemetry.FromContext(ctx).Info("ready")
//
// Code that only logs retrieves the logger with FromContext; without a
// logger in the context, logging is disabled.
package telemetry
