package main

import (
	"context"
	"log"

	"github.com/valyala/fasthttp"

	"github.com/saiset-co/sai-gateway/internal/handlers"
	"github.com/saiset-co/sai-gateway/internal/metrics"
	"github.com/saiset-co/sai-gateway/internal/repository"
	"github.com/saiset-co/sai-gateway/internal/service"
	"github.com/saiset-co/sai-gateway/internal/storage"
	"github.com/saiset-co/sai-gateway/types"

	"github.com/saiset-co/sai-service/sai"
	saiService "github.com/saiset-co/sai-service/service"
)

func main() {
	ctx := context.Background()

	srv, err := saiService.NewService(ctx, "config.yml")
	if err != nil {
		log.Fatal("Failed to create service:", err)
	}

	config := sai.Config()

	var gatewayConfig types.SaiGatewayConfig
	config.GetAs("sai-gateway", &gatewayConfig)
	gatewayConfig.Normalize()

	metrics.InitMetrics()

	awareness, err := storage.NewConsulAwareness(gatewayConfig.Consul)
	if err != nil {
		log.Fatal("Failed to connect to consul:", err)
	}

	repos := &repository.Repositories{
		Awareness:    awareness,
		Registry:     storage.NewRegistryClient(),
		Provisioning: storage.NewProvisionClient(),
		OAuth:        storage.NewOAuthClient(gatewayConfig.OAuth.URL),
		Identity:     storage.NewIdentityClient(),
	}
	if gatewayConfig.Throttle.Enabled {
		repos.RateLimiter = storage.NewRedisRateLimiter(gatewayConfig.Redis)
	}

	localRegistry, err := repos.Registry.LoadByEnvironment(ctx, gatewayConfig.Environment)
	if err != nil {
		log.Fatal("Failed to load environment registry:", err)
	}

	aclSvc := service.NewACLService(repos.Provisioning)
	authSvc := service.NewAuthService(&gatewayConfig, repos, aclSvc, localRegistry)
	resolverSvc := service.NewResolverService(&gatewayConfig, repos.Awareness)
	proxySvc := service.NewProxyService(&gatewayConfig)
	crossEnvSvc := service.NewCrossEnvService(&gatewayConfig, repos, localRegistry)

	gateway := handlers.NewGatewayHandler(&gatewayConfig, repos, authSvc, resolverSvc, proxySvc, crossEnvSvc, localRegistry)
	maintenance := handlers.NewMaintenanceHandler(&gatewayConfig, localRegistry)

	router := sai.Router()
	maintenanceGroup := router.Group("/maintenance")
	maintenanceGroup.GET("/heartbeat", maintenance.Heartbeat).
		WithDoc("Heartbeat", "Gateway readiness probe", "Maintenance", nil, nil).
		WithoutMiddlewares("auth")
	maintenanceGroup.GET("/registry", maintenance.Registry).
		WithDoc("Registry", "Loaded environment registry excerpt", "Maintenance", nil, nil).
		WithoutMiddlewares("auth")

	// the data plane runs on its own listener so proxied traffic never
	// shares a server with the management API
	dataPlane := &fasthttp.Server{
		Handler:                      gateway.Handle,
		StreamRequestBody:            true,
		DisablePreParseMultipartForm: true,
	}
	go func() {
		if err := dataPlane.ListenAndServe(gatewayConfig.ListenAddr); err != nil {
			log.Fatal("Data plane listener failed:", err)
		}
	}()

	if err := srv.Start(); err != nil {
		log.Fatal("Failed to start service:", err)
	}
}
