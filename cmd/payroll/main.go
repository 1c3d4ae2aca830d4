// Command payroll computes monthly payroll from the engine database without
// starting the HTTP server.
//
//	payroll report --employee emp-1 --year 2025 --month 3
//	payroll batch --year 2025 --month 3
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/warp/payroll-engine/app"
	"github.com/warp/payroll-engine/config"
	"github.com/warp/payroll-engine/logger"
	"github.com/warp/payroll-engine/payroll"
)

func main() {
	if err := run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	a := &cli.App{
		Name:  "payroll",
		Usage: "Israeli payroll calculations",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "db", Usage: "SQLite database path (overrides PAYROLL_DB_PATH)"},
		},
		Commands: []*cli.Command{
			reportCommand,
			batchCommand,
		},
	}
	return a.Run(args)
}

var periodFlags = []cli.Flag{
	&cli.IntFlag{Name: "year", Usage: "calendar year (default: current)"},
	&cli.IntFlag{Name: "month", Usage: "month 1-12 (default: current)"},
}

var reportCommand = &cli.Command{
	Name:  "report",
	Usage: "calculate and print one employee-month",
	Flags: append([]cli.Flag{
		&cli.StringFlag{Name: "employee", Aliases: []string{"e"}, Required: true},
		&cli.BoolFlag{Name: "daily", Usage: "also print the daily breakdown"},
	}, periodFlags...),
	Action: func(c *cli.Context) error {
		a, err := openApp(c)
		if err != nil {
			return err
		}
		defer a.Close()

		year, month, err := period(c, a)
		if err != nil {
			return err
		}
		out, err := a.Service.Calculate(c.Context, payroll.EmployeeID(c.String("employee")), year, month)
		if err != nil {
			return err
		}
		if out.Status != payroll.StatusOK {
			fmt.Fprintf(c.App.Writer, "%s: %s\n", out.Status, out.Message)
			return nil
		}
		if c.Bool("daily") {
			buildDailyTable(c.App.Writer, out.Result.Days).Render()
		}
		buildSummaryTable(c.App.Writer, *out.Result).Render()
		if len(out.Result.LegalViolations) > 0 {
			buildViolationsTable(c.App.Writer, out.Result.LegalViolations).Render()
		}
		return nil
	},
}

var batchCommand = &cli.Command{
	Name:  "batch",
	Usage: "recalculate a month for every employee with a plan",
	Flags: append([]cli.Flag{
		&cli.IntFlag{Name: "workers", Usage: "parallel employees (overrides PAYROLL_BATCH_WORKERS)"},
	}, periodFlags...),
	Action: func(c *cli.Context) error {
		a, err := openApp(c)
		if err != nil {
			return err
		}
		defer a.Close()

		year, month, err := period(c, a)
		if err != nil {
			return err
		}
		report, err := a.Runner.RunAll(c.Context, year, month)
		if err != nil {
			return err
		}
		buildBatchTable(c.App.Writer, report).Render()
		if report.Failed > 0 {
			return cli.Exit(fmt.Sprintf("%d employee(s) failed", report.Failed), 2)
		}
		return nil
	},
}

func openApp(c *cli.Context) (*app.App, error) {
	ctx := context.Background()
	// Tables go to stdout.
	logger.InitWithWriter(os.Stderr)
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	if db := c.String("db"); db != "" {
		cfg.DBPath = db
	}
	if c.IsSet("workers") && c.Int("workers") > 0 {
		cfg.BatchWorkers = c.Int("workers")
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}

func period(c *cli.Context, a *app.App) (int, time.Month, error) {
	loc, err := a.Config.Location()
	if err != nil {
		return 0, 0, err
	}
	now := time.Now().In(loc)
	year, month := now.Year(), int(now.Month())
	if c.IsSet("year") {
		year = c.Int("year")
	}
	if c.IsSet("month") {
		month = c.Int("month")
	}
	if month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("%w: month %d is not in 1-12", payroll.ErrInvalidPeriod, month)
	}
	return year, time.Month(month), nil
}
