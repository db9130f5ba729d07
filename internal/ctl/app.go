// Package ctl implements the kpictl command tree.
package ctl

import (
	"context"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"kpiboard/internal/client"
	"kpiboard/internal/config"
	"kpiboard/internal/core"
)

const defaultServer = "http://localhost:8081"

// App is the kpictl command-line application.
type App struct {
	rootCmd *cobra.Command
	in      io.Reader
	out     io.Writer

	server      string
	user        string
	password    string
	fiscalStart int
	debounce    time.Duration

	httpClient *http.Client
}

// lockedWriter serializes writes coming from autosave callbacks and the
// command goroutine.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// NewApp builds the command tree. Flag defaults come from the same
// environment variables the server reads.
func NewApp(in io.Reader, out io.Writer) *App {
	cfg := config.Load()
	app := &App{
		in:  in,
		out: &lockedWriter{w: out},
	}

	server := os.Getenv("KPICTL_SERVER")
	if server == "" {
		server = defaultServer
	}

	rootCmd := &cobra.Command{
		Use:           "kpictl",
		Short:         "KPI dashboard and budget client",
		Long:          "Show, edit and export the kpiboard dashboard and annual budget.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(app.out)
	rootCmd.SetErr(app.out)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&app.server, "server", "s", server, "kpiboard server URL")
	flags.StringVarP(&app.user, "user", "u", cfg.AdminUser, "basic auth user for writes")
	flags.StringVarP(&app.password, "password", "p", cfg.AdminPassword, "basic auth password for writes")
	flags.IntVar(&app.fiscalStart, "fiscal-start", cfg.FiscalYearStartMonth, "first month of the fiscal year (1-12)")
	flags.DurationVar(&app.debounce, "debounce", cfg.SaveDebounce, "quiet period before an edit session saves")

	rootCmd.AddCommand(app.dashboardCommand(), app.budgetCommand())
	app.rootCmd = rootCmd
	return app
}

// Execute runs the command named by args.
func (a *App) Execute(ctx context.Context, args []string) error {
	a.rootCmd.SetArgs(args)
	return a.rootCmd.ExecuteContext(ctx)
}

func (a *App) client() *client.Client {
	opts := []client.Option{client.WithHTTPClient(a.httpClient)}
	if a.user != "" || a.password != "" {
		opts = append(opts, client.WithBasicAuth(a.user, a.password))
	}
	return client.New(a.server, opts...)
}

func (a *App) calendar() (core.FiscalCalendar, error) {
	return core.NewFiscalCalendar(a.fiscalStart)
}
