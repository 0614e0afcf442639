package main

import (
	"errors"
	"net/http"
	"os"

	"schoolbridge-backend/lib/configutil"
	"schoolbridge-backend/lib/scrapers/schoolapp"
	"schoolbridge-backend/lib/serviceutil"
	"schoolbridge-backend/lib/sqliteutil"
	"schoolbridge-backend/lib/telemetry"
	"schoolbridge-backend/services/studentdata"
	"schoolbridge-backend/services/studentdata/db"
)

func main() {
	ctx := serviceutil.SignalContext()

	config, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}

	tel, err := telemetry.SetupFromEnv(ctx, "studentdatad")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer tel.Shutdown(ctx)
	telemetry.InstrumentPerfStats(ctx)

	database, err := sqliteutil.OpenDB(db.Schema, config.Database)
	if err != nil {
		serviceutil.Fatal("failed to open database", err)
	}

	client, err := schoolapp.NewClient(ctx, schoolapp.ClientOptions{
		BaseUrl: config.Portal.BaseUrl,
	})
	if err != nil {
		serviceutil.Fatal("failed to create portal client", err)
	}

	httpService := HttpService{
		service: studentdata.NewService(database, client),
	}
	mux := http.NewServeMux()
	httpService.Register(mux)

	serviceutil.StartHttpServer(config.Port, mux)
}
