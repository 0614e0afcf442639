package main

import (
	"context"

	"schoolbridge-backend/cmd/schoolbridge-cli/commands"
	"schoolbridge-backend/lib/telemetry"
)

func main() {
	telemetry.SetupFromEnv(context.Background(), "schoolbridge-cli")
	telemetry.InitSlog(true)
	commands.ExecuteContext(context.Background())
}
