// README: Entry point; loads config, wires the AI provider and plan pipeline, starts HTTP server.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voyago/internal/config"
	httptransport "voyago/internal/http"
	"voyago/internal/infra"
	"voyago/internal/llm"
	"voyago/internal/places"
	"voyago/internal/planner"
	"voyago/internal/service"
	"voyago/internal/usage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := llm.Default(ctx, llm.Options{
		Provider:     cfg.AI.Provider,
		ClaudeBin:    cfg.AI.ClaudeBin,
		OpenAIKey:    cfg.AI.OpenAIKey,
		OpenAIModel:  cfg.AI.OpenAIModel,
		AnthropicKey: cfg.AI.AnthropicKey,
		GeminiKey:    cfg.AI.GeminiKey,
	})
	if err != nil {
		log.Fatalf("provider init: %v", err)
	}
	defer llm.ResetDefault()

	generator := service.NewGenerator(provider)

	deps := planner.Deps{
		Summary:     generator,
		Days:        generator,
		ProviderTag: provider.Name(),
	}

	if cfg.Maps.APIKey != "" {
		placeSvc, err := places.NewService(cfg.Maps.APIKey)
		if err != nil {
			log.Fatalf("places init: %v", err)
		}
		var source planner.PlaceSource = placeSvc
		if cfg.Redis.Addr != "" {
			rdb := infra.NewRedis(cfg.Redis.Addr)
			source = places.NewCache(source, rdb, time.Duration(cfg.PlaceCacheTTL)*time.Second)
		}
		deps.Places = source
		deps.Enricher = places.NewEnricher()
		routeSvc, err := places.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			log.Fatalf("routes init: %v", err)
		}
		deps.Routes = routeSvc
	} else {
		log.Print("GOOGLE_MAPS_API_KEY not set; generating without place data")
	}

	orch, err := planner.NewOrchestrator(deps)
	if err != nil {
		log.Fatal(err)
	}

	var usageSvc *usage.Service
	if cfg.DB.DSN != "" {
		dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			log.Fatal(err)
		}
		defer dbPool.Close()
		usageSvc = usage.NewService(usage.NewStore(dbPool))
	} else {
		log.Print("VOYAGO_DB_DSN not set; quota tracking disabled")
	}

	var verifier infra.TokenVerifier
	if cfg.Firebase.ProjectID != "" {
		verifier, err = infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			log.Fatalf("firebase init: %v", err)
		}
	} else {
		log.Print("VOYAGO_FIREBASE_PROJECT_ID not set; using header-based dev auth")
	}

	handler := httptransport.NewRouter(httptransport.RouterDeps{
		Planner:   orch,
		Generator: generator,
		Usage:     usageSvc,
		Verifier:  verifier,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("voyago api listening on %s (provider %s)", cfg.HTTP.Addr, provider.Name())
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
