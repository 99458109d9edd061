/*
Package httpserver runs the HTTP front of the registry and serving processes.

A Server mounts one or more RouteRegistrar handlers (api/modelhandler,
api/servinghandler) on a chi router and adds the operational surface shared
by both processes:

  - GET /livez - Liveness check
  - GET /readyz - Readiness check
  - GET /drain - Mark server as not ready
  - GET /undrain - Mark server as ready
  - /debug/pprof - when EnablePprof is set

Every request is logged through the flashbots httplogger middleware and
counted in metrics.HTTPRequestsTotal under its chi route pattern. CORS
headers are added when EnableCORS is set, for the browser dashboard.

# Example Usage

	cfg := &api.HTTPServerConfig{
		ListenAddr:               ":8080",
		MetricsAddr:              ":8090",
		Log:                      logger,
		EnableCORS:               true,
		DrainDuration:            5 * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              10 * time.Minute,
		WriteTimeout:             10 * time.Minute,
	}

	server, err := httpserver.New(cfg, modelhandler.NewHandler(reg, 0, logger))
	if err != nil {
		return err
	}
	server.RunInBackground()
	defer server.Shutdown()
*/
package httpserver
