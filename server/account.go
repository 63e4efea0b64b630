package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/cvbuilder/internal/config"
	"github.com/devilmonastery/cvbuilder/internal/domain/services"
)

func newAccountCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Account inspection commands",
		Long:  "Commands for inspecting accounts and their linked identities",
	}

	cmd.AddCommand(newAccountShowCommand(flags))
	cmd.AddCommand(newAccountListCommand(flags))

	return cmd
}

// openService loads config and builds an identity service without providers,
// enough for the read-only account commands
func openService(cmd *cobra.Command, flags *globalFlags) (*services.IdentityService, func() error, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	st, err := openStores(cmd.Context(), cfg, slog.Default().With("command", cmd.Name()))
	if err != nil {
		return nil, nil, err
	}
	svc := services.NewIdentityService(nil, st.Accounts, st.Identities, nil, services.IdentityServiceOptions{Logger: slog.Default()})
	return svc, st.Close, nil
}

func newAccountShowCommand(flags *globalFlags) *cobra.Command {
	var accountID, email string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show an account with its linked identities",
		Example: `  server account show --id 1790152361044365312
  server account show --email alice@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (accountID == "") == (email == "") {
				return errors.New("exactly one of --id or --email is required")
			}

			svc, closeFn, err := openService(cmd, flags)
			if err != nil {
				return err
			}
			defer closeFn()

			summary, err := svc.GetAccountSummary(cmd.Context(), accountID)
			if email != "" {
				summary, err = svc.GetAccountSummaryByEmail(cmd.Context(), email)
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}

	cmd.Flags().StringVar(&accountID, "id", "", "Account ID")
	cmd.Flags().StringVar(&email, "email", "", "Account email (matched case-insensitively)")
	return cmd
}

func newAccountListCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := openService(cmd, flags)
			if err != nil {
				return err
			}
			defer closeFn()

			accounts, err := svc.ListAccounts(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tEMAIL\tNAME\tCREATED\tLAST LOGIN")
			for _, a := range accounts {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					a.AccountID, a.Email, a.Name,
					a.CreatedAt.Format(time.RFC3339), a.LastLoginAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
}
