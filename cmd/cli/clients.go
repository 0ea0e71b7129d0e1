package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dealdesk/internal/auth"
	"dealdesk/pkg/database"
)

var clientName string

var clientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "Manage API clients of the HTTP service",
}

var clientsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register an API client and print its secret",
	Long: `Registers a client in the service database. The secret is printed once
and cannot be shown again; exchange it for a token with POST /auth/token.`,
	RunE: runClientsCreate,
}

var clientsDisableCmd = &cobra.Command{
	Use:   "disable [client-id]",
	Short: "Disable a client and revoke its tokens",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.OpenAndMigrate(database.Config{Path: cfg.DB.Path})
		if err != nil {
			return err
		}
		defer db.Close()
		if err := auth.NewRepo(db).SetDisabled(cmd.Context(), args[0], true); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "client %s disabled\n", args[0])
		return nil
	},
}

func init() {
	clientsCreateCmd.Flags().StringVar(&clientName, "name", "", "client name (3-64 chars)")
	_ = clientsCreateCmd.MarkFlagRequired("name")
	clientsCmd.AddCommand(clientsCreateCmd, clientsDisableCmd)
}

func runClientsCreate(cmd *cobra.Command, args []string) error {
	db, err := database.OpenAndMigrate(database.Config{Path: cfg.DB.Path})
	if err != nil {
		return err
	}
	defer db.Close()

	c, secret, err := auth.Register(cmd.Context(), auth.NewRepo(db), clientName)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "client_id:     %s\n", c.ID)
	fmt.Fprintf(out, "client_secret: %s\n", secret)
	fmt.Fprintln(out, "store the secret now; it is not shown again")
	return nil
}
