package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"schoolbridge-backend/lib/configutil"
	"schoolbridge-backend/lib/restyutil"
	"schoolbridge-backend/lib/scrapers/schoolapp"
	"schoolbridge-backend/lib/serviceutil"

	"github.com/spf13/cobra"
)

type Config struct {
	BaseUrl  string `json:"base_url"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

var debug *bool

func init() {
	debug = rootCmd.PersistentFlags().Bool("debug", false, "Dump every http exchange to .dev/resty for inspection.")
}

var rootCmd = &cobra.Command{
	Use:   "schoolbridge-cli",
	Short: "schoolbridge-cli logs into the student portal and prints scraped data.",
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// createSession builds a portal client from config.json5 and runs the
// login handshake. Every command starts from a fresh session.
func createSession(ctx context.Context) (*schoolapp.Client, string) {
	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}

	if *debug {
		schoolapp.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(".dev/resty/schoolbridge-cli"))
	}

	client, err := schoolapp.NewClient(ctx, schoolapp.ClientOptions{
		BaseUrl: cfg.BaseUrl,
	})
	if err != nil {
		serviceutil.Fatal("failed to initialize portal client", err)
	}

	loginCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	res, err := client.Login(loginCtx, cfg.Email, cfg.Password)
	if err != nil {
		serviceutil.Fatal("failed to login to portal", err)
	}
	if !res.Authenticated {
		serviceutil.Fatal("portal rejected credentials", fmt.Errorf("authentication failed"))
	}

	return client, res.SessionToken
}

// fetchPage visits a portal page with the fresh session and hands back
// the html for the command's extractor.
func fetchPage(ctx context.Context, page string) string {
	client, token := createSession(ctx)

	res, err := client.Visit(ctx, client.PageURL(page), token)
	if err != nil {
		serviceutil.Fatal("failed to fetch page", err)
	}
	if !res.Authenticated {
		serviceutil.Fatal("session expired immediately after login", fmt.Errorf("session expired"))
	}
	return res.Html
}
