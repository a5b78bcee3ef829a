/*
Dimfilter hosts a dimension filter widget over an analytic result: it binds the result's
dimensions and measures, resolves the members of each dimension, and serves a page whose
selection controls and editable table are kept in sync with the server over a websocket.
User choices are reported as notifications; measure edits are written back to the result.
*/

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"dimfilter/binding"
	"dimfilter/config"
	"dimfilter/member_resolver"
	"dimfilter/models"
	"dimfilter/server"
	"dimfilter/text_view"

	"github.com/ONSdigital/dp-healthcheck/healthcheck"
	"github.com/ONSdigital/log.go/v2/log"
)

const serviceName = "dimfilter"

var (
	// BuildTime represents the time in which the service was built
	BuildTime string = "1601119818"
	// GitCommit represents the commit (SHA-1) hash of the service that is running
	GitCommit string
	// Version represents the version of the service that is running
	Version string
)

func main() {
	log.Namespace = serviceName
	ctx := context.Background()

	if err := run(ctx); err != nil {
		log.Fatal(ctx, "fatal runtime error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	configPath := flag.String("config", "", "widget definition file (yaml, kind: widget)")
	dataSourcePath := flag.String("datasource", "", "data source to bind at startup, overriding the configured path")
	preview := flag.Bool("preview", false, "also paint every plan to stdout")
	flag.Parse()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	cfg, err := config.Get()
	if err != nil {
		return err
	}
	if *configPath != "" {
		if err := config.FromYaml(*configPath, cfg); err != nil {
			return err
		}
	}
	if *dataSourcePath != "" {
		cfg.DataSourcePath = *dataSourcePath
	}
	log.Info(ctx, "config on startup", log.Data{"config": cfg, "build_time": BuildTime, "git_commit": GitCommit})

	variant, err := binding.ParseVariant(cfg.Variant)
	if err != nil {
		return err
	}
	returnType, err := models.ParseReturnType(cfg.ReturnType)
	if err != nil {
		return err
	}

	versionInfo, err := healthcheck.NewVersionInfo(BuildTime, GitCommit, Version)
	if err != nil {
		return err
	}
	hc := healthcheck.New(versionInfo, cfg.HealthCheckCriticalTimeout, cfg.HealthCheckInterval)

	var resolver member_resolver.Resolver = member_resolver.NewScan(returnType)
	if cfg.MemberServiceURL != "" {
		remote := member_resolver.NewRemote(cfg.MemberServiceURL, &http.Client{Timeout: cfg.MemberFetchTimeout})
		if _, err := hc.AddAndGetCheck("member service", remote.Checker); err != nil {
			return err
		}
		resolver = &member_resolver.Fallback{Primary: remote, Secondary: resolver}
	}

	appCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	controller := binding.New(appCtx, resolver, binding.WithVariant(variant), binding.WithReturnType(returnType))
	srv, err := server.New(appCtx, cfg, controller, &hc)
	if err != nil {
		return err
	}

	if *preview {
		plans, unsubscribe := srv.Plans()
		defer unsubscribe()
		go paint(appCtx, text_view.NewRenderer(os.Stdout), plans)
	}

	if err := bindFile(ctx, srv, cfg.DataSourcePath); err != nil {
		log.Warn(ctx, "no data source bound at startup", log.Data{"path": cfg.DataSourcePath, "error": err.Error()})
	}

	svcErrors := make(chan error, 1)
	srv.Start(appCtx, svcErrors)

	select {
	case err := <-svcErrors:
		log.Error(ctx, "widget host error received", err)
		_ = srv.Close(ctx)
		return err
	case sig := <-signals:
		log.Info(ctx, "os signal received", log.Data{"signal": sig})
	}
	return srv.Close(ctx)
}

func bindFile(ctx context.Context, srv *server.Server, path string) error {
	if path == "" {
		return errors.New("no data source path configured")
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	ds, err := models.ReadDataSource(f)
	if err != nil {
		return err
	}
	if err := srv.Bind(ds); err != nil {
		return err
	}
	log.Info(ctx, "data source bound", log.Data{"path": path, "records": ds.Len()})
	return nil
}

func paint(ctx context.Context, renderer binding.Renderer, plans <-chan binding.RenderPlan) {
	for plan := range plans {
		if err := renderer.Render(plan); err != nil {
			log.Error(ctx, "preview failed", err)
			return
		}
	}
}
