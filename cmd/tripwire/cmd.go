package main

import (
	"fmt"

	"github.com/ezachrisen/tripwire"
	"github.com/ezachrisen/tripwire/config"
	"github.com/rcrowley/go-metrics"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

const VERSION = "v0.1.0"

var App = &cli.App{
	Name:    "tripwire",
	Usage:   "check and evaluate interception proxy rules",
	Version: VERSION,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "config file path",
		},
		&cli.StringFlag{
			Name:    "rules",
			Aliases: []string{"r"},
			Usage:   "rule file path, overrides the config file",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "log level, overrides the config file",
		},
		&cli.BoolFlag{
			Name:  "user-interaction",
			Usage: "allow rules that prompt the user",
		},
	},
	Action: defaultAction,
	Commands: []*cli.Command{
		{
			Name:      "check",
			Usage:     "compile the rule file and print it",
			ArgsUsage: " ",
			Action:    check,
		},
		{
			Name:      "eval",
			Usage:     "evaluate the rule file against the facts of one flow",
			ArgsUsage: " ",
			Flags:     evalFlags,
			Action:    eval,
		},
		{
			Name:      "watch",
			Usage:     "compile the rule file and recompile it on every change",
			ArgsUsage: " ",
			Flags: []cli.Flag{
				&cli.DurationFlag{
					Name:  "metrics",
					Usage: "log engine metrics at this interval, 0 to disable",
				},
			},
			Action: watch,
		},
	},
}

// setup loads the configuration, applies the global flags and returns an
// engine holding the compiled rule file.
func setup(c *cli.Context, opts ...tripwire.EngineOption) (*tripwire.Engine, *config.Config, *logrus.Logger, error) {
	cfg := config.Default()
	if name := c.String("config"); name != "" {
		loaded, err := config.Load(name)
		if err != nil {
			return nil, nil, nil, err
		}
		cfg = *loaded
	}
	if c.IsSet("rules") {
		cfg.Rules.Path = c.String("rules")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("user-interaction") {
		cfg.Rules.UserInteraction = c.Bool("user-interaction")
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}

	logger, err := cfg.Logger()
	if err != nil {
		return nil, nil, nil, err
	}
	opts = append([]tripwire.EngineOption{
		tripwire.Logger(logrus.NewEntry(logger)),
		tripwire.UserInteraction(cfg.Rules.UserInteraction),
		tripwire.Debounce(cfg.Rules.Debounce),
	}, opts...)
	e := tripwire.NewEngine(opts...)
	if _, err := e.LoadFile(cfg.Rules.Path); err != nil {
		return nil, nil, nil, err
	}
	return e, &cfg, logger, nil
}

// defaultAction runs without a command: it watches the rule file when the
// configuration asks for it and checks it once otherwise.
func defaultAction(c *cli.Context) error {
	e, cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	if cfg.Rules.Watch {
		return e.Watch(c.Context, cfg.Rules.Path)
	}
	logger.Debug("rules.watch is off, checking once")
	return printRuleset(c, e)
}

func check(c *cli.Context) error {
	e, _, _, err := setup(c)
	if err != nil {
		return err
	}
	return printRuleset(c, e)
}

func printRuleset(c *cli.Context, e *tripwire.Engine) error {
	rs := e.Ruleset()
	fmt.Fprintln(c.App.Writer, rs.Tree())
	fmt.Fprintln(c.App.Writer, rs)
	return nil
}

func watch(c *cli.Context) error {
	reg := metrics.NewRegistry()
	e, cfg, logger, err := setup(c, tripwire.Registry(reg))
	if err != nil {
		return err
	}
	if interval := c.Duration("metrics"); interval > 0 {
		go metrics.Log(reg, interval, logger)
	}
	return e.Watch(c.Context, cfg.Rules.Path)
}
