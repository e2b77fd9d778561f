package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ephroot/takeover/internal/constants"
	"github.com/ephroot/takeover/internal/utils"
	"github.com/ephroot/takeover/internal/version"
	"github.com/ephroot/takeover/pkg/config"
	"github.com/ephroot/takeover/pkg/state"
	"github.com/spectrocloud-labs/herd"
	"github.com/urfave/cli/v2"
)

// Replace the running root filesystem with a freshly built minimal image,
// without rebooting.
func main() {
	app := cli.NewApp()
	app.Name = "takeover"
	app.Usage = "rebuild the root filesystem of a live machine in place"
	app.Version = version.GetVersion()
	app.Action = func(c *cli.Context) error {
		cfg, err := resolveConfig(c)
		if err != nil {
			return err
		}

		utils.SetLogger(cfg.Debug)

		v := version.Get()
		utils.Log.Info().Str("commit", v.GitCommit).Str("compiled with", v.GoVersion).Str("version", v.Version).Msg("Takeover")

		g := herd.DAG(herd.EnableInit)
		s := state.New(cfg)
		if err := s.Register(g); err != nil {
			return err
		}

		utils.Log.Info().Msg(s.WriteDAG(g))

		// Once we print the dag we can exit already
		if cfg.DryRun {
			return nil
		}

		err = g.Run(context.Background())
		utils.Log.Info().Msg(s.WriteDAG(g))
		if err != nil {
			s.Cleanup()
			return err
		}
		return nil
	}
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "branch",
			Usage:   "distribution branch to install from",
			Value:   constants.DefaultBranch,
			EnvVars: []string{"TAKEOVER_BRANCH"},
		},
		&cli.StringFlag{
			Name:    "mirror",
			Usage:   "package mirror base URL",
			Value:   constants.DefaultMirror,
			EnvVars: []string{"TAKEOVER_MIRROR"},
		},
		&cli.StringSliceFlag{
			Name:    "packages",
			Aliases: []string{"p"},
			Usage:   "extra packages to install on top of the required set",
			EnvVars: []string{"TAKEOVER_PACKAGES"},
		},
		&cli.StringFlag{
			Name:    "staging",
			Usage:   "mount point for the staging root",
			Value:   constants.DefaultStagingDir,
			EnvVars: []string{"TAKEOVER_STAGING"},
		},
		&cli.StringFlag{
			Name:    "mount-options",
			Usage:   "options for the staging tmpfs mount",
			Value:   constants.DefaultMountOptions,
			EnvVars: []string{"TAKEOVER_MOUNT_OPTIONS"},
		},
		&cli.IntFlag{
			Name:    "port",
			Usage:   "remote-access port inside the staged image",
			Value:   constants.DefaultSSHPort,
			EnvVars: []string{"TAKEOVER_PORT"},
		},
		&cli.StringFlag{
			Name:  "script",
			Usage: "customization script run against the staged image",
		},
		&cli.BoolFlag{
			Name:  "isolate",
			Usage: "run the customization script chrooted into the staged image",
		},
		&cli.StringFlag{
			Name:  "repositories",
			Usage: "use this repositories file verbatim instead of generating one",
		},
		&cli.BoolFlag{
			Name:  "no-pkgmgr",
			Usage: "purge the package manager from the final image",
		},
		&cli.StringFlag{
			Name:  "env-file",
			Usage: "load configuration overrides from an env file",
		},
		&cli.StringFlag{
			Name:  "config",
			Usage: "load configuration overrides from a YAML file",
		},
		&cli.BoolFlag{
			Name:    "debug",
			EnvVars: []string{"TAKEOVER_DEBUG"},
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "print the plan and exit without touching the system",
		},
	}
	app.Commands = []*cli.Command{
		{
			Name:  "version",
			Usage: "version",
			Action: func(c *cli.Context) error {
				v := version.Get()
				utils.Log.Info().Str("commit", v.GitCommit).Str("compiled with", v.GoVersion).Str("version", v.Version).Msg("Takeover")
				return nil
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// resolveConfig layers configuration sources: defaults, then the YAML file,
// then the env file, then explicit flags on top.
func resolveConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()

	if path := c.String("config"); path != "" {
		if err := cfg.LoadYAML(path); err != nil {
			return cfg, fmt.Errorf("loading config file: %w", err)
		}
	}
	if path := c.String("env-file"); path != "" {
		if err := cfg.LoadEnvFile(path); err != nil {
			return cfg, fmt.Errorf("loading env file: %w", err)
		}
	}

	if c.IsSet("branch") {
		cfg.Branch = c.String("branch")
	}
	if c.IsSet("mirror") {
		cfg.Mirror = c.String("mirror")
	}
	if c.IsSet("packages") {
		cfg.ExtraPackages = c.StringSlice("packages")
	}
	if c.IsSet("staging") {
		cfg.StagingDir = c.String("staging")
	}
	if c.IsSet("mount-options") {
		cfg.MountOptions = c.String("mount-options")
	}
	if c.IsSet("port") {
		cfg.SSHPort = c.Int("port")
	}
	if c.IsSet("script") {
		cfg.Script = c.String("script")
	}
	if c.IsSet("isolate") {
		cfg.Isolate = c.Bool("isolate")
	}
	if c.IsSet("repositories") {
		cfg.RepositoriesFile = c.String("repositories")
	}
	if c.IsSet("no-pkgmgr") {
		cfg.KeepPackageManager = !c.Bool("no-pkgmgr")
	}
	cfg.Debug = c.Bool("debug")
	cfg.DryRun = c.Bool("dry-run")

	return cfg, cfg.Validate()
}
