package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/celerix-dev/celerix-crm/internal/app"
	"github.com/celerix-dev/celerix-crm/internal/config"
	"github.com/celerix-dev/celerix-crm/internal/identity"
	"github.com/celerix-dev/celerix-crm/internal/logger"
	"github.com/celerix-dev/celerix-crm/internal/scope"
	"github.com/celerix-dev/celerix-crm/pkg/schema"
)

// runtime is what every command works against.
type runtime struct {
	cfg *config.Config
	app *app.App
	log *zap.SugaredLogger
}

type opener func(ctx context.Context, envFile string) (*runtime, error)

type cli struct {
	open    opener
	rt      *runtime
	envFile string

	principal schema.Principal
}

func main() {
	c := &cli{open: openRuntime}
	err := c.rootCmd().Execute()
	if c.rt != nil {
		_ = c.rt.app.Close()
		_ = c.rt.log.Sync()
	}
	if err != nil {
		os.Exit(1)
	}
}

func openRuntime(ctx context.Context, envFile string) (*runtime, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.LogLevel, cfg.Development())
	if err != nil {
		return nil, err
	}
	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return &runtime{cfg: cfg, app: a, log: log}, nil
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "crm",
		Short:         "Manage prospects, activities and team rankings from the terminal",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.rt != nil {
				return nil
			}
			rt, err := c.open(cmd.Context(), c.envFile)
			if err != nil {
				return err
			}
			c.rt = rt
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.envFile, "env-file", config.DefaultEnvFile, "optional .env file")
	root.PersistentFlags().StringVar(&c.principal.ID, "as", os.Getenv("CRM_PRINCIPAL_ID"), "principal id to act as")
	root.PersistentFlags().StringVar(&c.principal.Email, "email", os.Getenv("CRM_PRINCIPAL_EMAIL"), "principal e-mail")
	root.PersistentFlags().StringVar(&c.principal.NameHint, "name", "", "display name used when the profile is first created")

	root.AddCommand(
		c.whoamiCmd(),
		c.prospectsCmd(),
		c.activitiesCmd(),
		c.opportunitiesCmd(),
		c.teamCmd(),
		c.rankingCmd(),
		c.assignCmd(),
		c.companyCmd(),
		c.migrateCmd(),
		c.doctorCmd(),
	)
	return root
}

// session resolves the --as principal through the identity provider contract.
func (c *cli) session() (schema.Identity, scope.Scope, error) {
	s := identity.NewSession(identity.NewStaticProvider(c.principal), c.rt.app.Identities)
	id, err := s.Current()
	if err != nil {
		return schema.Identity{}, scope.Scope{}, fmt.Errorf("%w (pass --as <principal id>)", err)
	}
	sc, err := c.rt.app.Scopes.Resolve(id)
	if err != nil {
		return schema.Identity{}, scope.Scope{}, err
	}
	return id, sc, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
