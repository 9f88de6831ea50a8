package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/celerix-dev/celerix-crm/internal/config"
	"github.com/celerix-dev/celerix-crm/internal/engine"
	"github.com/celerix-dev/celerix-crm/internal/scope"
	"github.com/celerix-dev/celerix-crm/internal/storage"
	"github.com/celerix-dev/celerix-crm/pkg/schema"
)

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the profile of the acting principal, creating it on first use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _, err := c.session()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), id)
		},
	}
}

// --- Prospects ---

func (c *cli) prospectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "prospects",
		Short:   "List and edit prospects",
		Aliases: []string{"p"},
	}

	var filter schema.ProspectFilter
	var stage, priority string
	list := &cobra.Command{
		Use:   "list",
		Short: "List visible prospects, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, sc, err := c.session()
			if err != nil {
				return err
			}
			filter.Stage = schema.Stage(stage)
			filter.Priority = schema.Priority(priority)
			out, err := scope.VisibleProspects(c.rt.app.Store, sc, filter)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	list.Flags().StringVar(&stage, "stage", "", "only this pipeline stage")
	list.Flags().StringVar(&priority, "priority", "", "only this priority (alta, media, baixa)")
	list.Flags().StringVar(&filter.OwnerID, "owner", "", "only prospects of this owner")
	list.Flags().StringVarP(&filter.Query, "query", "q", "", "search name, e-mail and company")

	var in schema.ProspectInput
	var addPriority, addStage string
	var aum float64
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a prospect, or update the visible one with --id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, sc, err := c.session()
			if err != nil {
				return err
			}
			in.Priority = schema.Priority(addPriority)
			in.PipelineStage = schema.Stage(addStage)
			if cmd.Flags().Changed("aum") {
				v := aum
				in.AUMValue = &v
			}
			p, err := c.rt.app.Coordinator.CreateOrUpdateProspect(sc, in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}
	add.Flags().StringVar(&in.ID, "id", "", "id to create or update")
	add.Flags().StringVar(&in.Name, "name", "", "prospect name")
	add.Flags().StringVar(&in.Email, "email", "", "prospect e-mail")
	add.Flags().StringVar(&in.Phone, "phone", "", "phone number")
	add.Flags().StringVar(&in.Company, "company", "", "prospect's company")
	add.Flags().Float64Var(&aum, "aum", 0, "assets under management")
	add.Flags().StringVar(&addPriority, "priority", "", "alta, media or baixa")
	add.Flags().StringVar(&addStage, "stage", "", "pipeline stage")

	stageCmd := &cobra.Command{
		Use:   "stage <id> <stage>",
		Short: "Move a prospect to another pipeline stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, sc, err := c.session()
			if err != nil {
				return err
			}
			p, err := c.rt.app.Coordinator.MovePipelineStage(sc, args[0], schema.Stage(args[1]))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}

	rm := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a prospect",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, sc, err := c.session()
			if err != nil {
				return err
			}
			if err := c.rt.app.Coordinator.DeleteProspect(sc, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}

	cmd.AddCommand(list, add, stageCmd, rm)
	return cmd
}

// --- Activities ---

func (c *cli) activitiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "activities",
		Short:   "List and edit activities",
		Aliases: []string{"a"},
	}

	var filter schema.ActivityFilter
	var completed string
	list := &cobra.Command{
		Use:   "list",
		Short: "List visible activities, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, sc, err := c.session()
			if err != nil {
				return err
			}
			if completed != "" {
				done, err := strconv.ParseBool(completed)
				if err != nil {
					return &schema.ValidationError{Field: "completed", Reason: "must be true or false"}
				}
				filter.Completed = &done
			}
			out, err := scope.VisibleActivities(c.rt.app.Store, sc, filter)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	list.Flags().StringVar(&filter.ProspectID, "prospect", "", "only activities of this prospect")
	list.Flags().StringVar(&filter.OwnerID, "owner", "", "only activities of this owner")
	list.Flags().StringVar(&completed, "completed", "", "true or false")

	var in schema.ActivityInput
	add := &cobra.Command{
		Use:   "add",
		Short: "Create an activity, or update the visible one with --id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, sc, err := c.session()
			if err != nil {
				return err
			}
			a, err := c.rt.app.Coordinator.CreateOrUpdateActivity(sc, in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), a)
		},
	}
	add.Flags().StringVar(&in.ID, "id", "", "id to create or update")
	add.Flags().StringVar(&in.ProspectID, "prospect", "", "prospect the activity belongs to")
	add.Flags().StringVar(&in.Title, "title", "", "title")
	add.Flags().StringVar(&in.Type, "type", "", "activity type (default tarefa)")
	add.Flags().StringVar(&in.Description, "description", "", "description")

	var reopen bool
	done := &cobra.Command{
		Use:   "done <id>",
		Short: "Mark an activity completed, or open again with --reopen",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, sc, err := c.session()
			if err != nil {
				return err
			}
			a, err := c.rt.app.Coordinator.ToggleActivityComplete(sc, args[0], !reopen)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), a)
		},
	}
	done.Flags().BoolVar(&reopen, "reopen", false, "clear the completion instead")

	rm := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete an activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, sc, err := c.session()
			if err != nil {
				return err
			}
			if err := c.rt.app.Coordinator.DeleteActivity(sc, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}

	cmd.AddCommand(list, add, done, rm)
	return cmd
}

// --- Opportunities ---

func (c *cli) opportunitiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "opportunities",
		Short:   "Capture and list funnel opportunities",
		Aliases: []string{"o"},
	}

	var filter schema.OpportunityFilter
	var funnel string
	list := &cobra.Command{
		Use:   "list",
		Short: "List visible opportunities, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, sc, err := c.session()
			if err != nil {
				return err
			}
			filter.FunnelType = schema.FunnelType(funnel)
			out, err := scope.VisibleOpportunities(c.rt.app.Store, sc, filter)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	list.Flags().StringVar(&funnel, "funnel", "", "consorcio, seguros, cambio or eventos")
	list.Flags().StringVar(&filter.OwnerID, "owner", "", "only opportunities of this owner")

	var in schema.OpportunityInput
	var addFunnel string
	add := &cobra.Command{
		Use:   "add",
		Short: "Capture an opportunity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, sc, err := c.session()
			if err != nil {
				return err
			}
			in.FunnelType = schema.FunnelType(addFunnel)
			o, err := c.rt.app.Coordinator.CreateOpportunity(sc, in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), o)
		},
	}
	add.Flags().StringVar(&addFunnel, "funnel", "", "consorcio, seguros, cambio or eventos")
	add.Flags().StringVar(&in.Name, "name", "", "lead name")
	add.Flags().StringVar(&in.Email, "email", "", "lead e-mail")
	add.Flags().StringVar(&in.Phone, "phone", "", "phone number")
	add.Flags().StringVar(&in.Company, "company", "", "lead's company")
	add.Flags().StringVar(&in.Description, "description", "", "description")
	add.Flags().StringVar(&in.Stage, "stage", "", "funnel stage (default novo)")

	cmd.AddCommand(list, add)
	return cmd
}

// --- Team ---

func (c *cli) teamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "team",
		Short: "Company team views for admins",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Per-assessor prospect counts, conversions and scores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _, err := c.session()
			if err != nil {
				return err
			}
			out, err := c.rt.app.Stats.TeamStats(id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	})
	return cmd
}

func (c *cli) rankingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ranking",
		Short: "Show the leaderboard position of the acting principal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _, err := c.session()
			if err != nil {
				return err
			}
			r, err := c.rt.app.Stats.Ranking(id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), r)
		},
	}
}

// --- Administration ---

func (c *cli) assignCmd() *cobra.Command {
	var company, role, account string
	cmd := &cobra.Command{
		Use:   "assign <identity id>",
		Short: "Set the company, role and account type of a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := c.rt.app.Identities.Assign(args[0], company, schema.Role(role), schema.AccountType(account))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), id)
		},
	}
	cmd.Flags().StringVar(&company, "company", "", "company id (empty removes the company)")
	cmd.Flags().StringVar(&role, "role", string(schema.RoleAssessor), "admin or assessor")
	cmd.Flags().StringVar(&account, "account", "", "individual, escritorio or white_label")
	return cmd
}

func (c *cli) companyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "company",
		Short: "Read and write company records",
	}

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a company",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			co, err := c.rt.app.Companies.Get(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), co)
		},
	}

	var co schema.Company
	save := &cobra.Command{
		Use:   "save",
		Short: "Create or replace a company",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			saved, err := c.rt.app.Companies.Save(co)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), saved)
		},
	}
	save.Flags().StringVar(&co.ID, "id", "", "company id (generated when empty)")
	save.Flags().StringVar(&co.Name, "name", "", "company name")
	save.Flags().StringVar(&co.LogoURL, "logo", "", "logo URL")
	save.Flags().StringVar(&co.PrimaryColor, "primary-color", "", "primary brand color")
	save.Flags().StringVar(&co.SecondaryColor, "secondary-color", "", "secondary brand color")
	save.Flags().StringVar(&co.CustomDomain, "domain", "", "custom domain")
	save.Flags().StringVar(&co.PlanType, "plan", "", "plan type")
	save.Flags().BoolVar(&co.WhiteLabel, "white-label", false, "white-label company")

	cmd.AddCommand(get, save)
	return cmd
}

// --- Maintenance ---

func (c *cli) migrateCmd() *cobra.Command {
	var target config.Config
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy every partition from the configured backend to another one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dst := *c.rt.cfg
			dst.StoreBackend = target.StoreBackend
			dst.EncryptionKey = target.EncryptionKey
			if target.DataDir != "" {
				dst.DataDir = target.DataDir
			}
			if target.DatabaseURL != "" {
				dst.DatabaseURL = target.DatabaseURL
			}
			if err := dst.Validate(); err != nil {
				return err
			}
			if dst.StoreBackend == c.rt.cfg.StoreBackend && dst.DataDir == c.rt.cfg.DataDir &&
				dst.DatabaseURL == c.rt.cfg.DatabaseURL {
				return errors.New("source and target are the same store")
			}

			out, err := storage.Open(cmd.Context(), &dst, c.rt.log)
			if err != nil {
				return err
			}
			defer out.Close()

			n, err := engine.Migrate(c.rt.app.KV, out)
			if err != nil {
				return err
			}
			c.rt.log.Infow("migration finished", "from", c.rt.cfg.StoreBackend, "to", dst.StoreBackend, "keys", n)
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %d keys to %s\n", n, dst.StoreBackend)
			return nil
		},
	}
	cmd.Flags().StringVar(&target.StoreBackend, "to", "", "target backend: memory, file, badger or postgres")
	cmd.Flags().StringVar(&target.DataDir, "to-dir", "", "target data directory")
	cmd.Flags().StringVar(&target.DatabaseURL, "to-url", "", "target Postgres URL")
	cmd.Flags().StringVar(&target.EncryptionKey, "to-encryption-key", "", "seal the target file store")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func (c *cli) doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Report persisted values that no longer parse",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bad, err := c.rt.app.Store.Scan()
			if err != nil {
				return err
			}
			if len(bad) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "all partitions parse")
				return nil
			}
			for _, k := range bad {
				fmt.Fprintf(cmd.OutOrStdout(), "corrupt: %s\n", k)
			}
			return fmt.Errorf("%w: %d corrupt keys", schema.ErrStoreCorrupt, len(bad))
		},
	}
}
