package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/stackspend/stackspend/internal/apiclient"
	"github.com/stackspend/stackspend/internal/config"
	"github.com/stackspend/stackspend/internal/spend"
)

const apiTimeout = 30 * time.Second

var (
	apiURL   string
	apiToken string
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Talk to a running StackSpend server over the REST API.",
}

// apiClient builds a client from flags, falling back to STACKSPEND_API_URL and
// STACKSPEND_API_TOKEN.
func apiClient(needToken bool) (*apiclient.Client, error) {
	cfg, err := config.LoadOptionalDB()
	if err != nil {
		return nil, err
	}
	url := firstNonEmpty(apiURL, cfg.API.URL)
	token := firstNonEmpty(apiToken, cfg.API.Token)
	if needToken && token == "" {
		return nil, errors.New("no API token; run `stackspend api login` and set STACKSPEND_API_TOKEN")
	}
	return apiclient.New(url, token, apiclient.WithTimeout(apiTimeout)), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

var (
	loginEmail         string
	loginPasswordStdin bool
)

var apiLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Exchange an email and password for an API token and print it.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		email := strings.TrimSpace(loginEmail)
		if email == "" {
			return errors.New("--email is required")
		}
		password, err := readLoginPassword(cmd)
		if err != nil {
			return err
		}
		client, err := apiClient(false)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), apiTimeout)
		defer cancel()

		tok, err := client.Login(ctx, email, password)
		if err != nil {
			return apiExit(err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, tok.Value)
		fmt.Fprintf(cmd.ErrOrStderr(), "role %s, expires %s\n", tok.Role, tok.ExpiresAt.Format(time.RFC3339))
		return nil
	},
}

func readLoginPassword(cmd *cobra.Command) (string, error) {
	if loginPasswordStdin {
		return readPasswordLine(cmd.InOrStdin())
	}
	return promptPassword(cmd.ErrOrStderr(), false)
}

var apiClientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "List, create and delete clients.",
}

var listFlags apiclient.ListParams

var apiClientsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List clients one page at a time.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := apiClient(true)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), apiTimeout)
		defer cancel()

		page, err := client.ListClients(ctx, listFlags)
		if err != nil {
			return apiExit(err)
		}
		out := cmd.OutOrStdout()
		writeClients(out, page.Content)
		fmt.Fprintf(out, "page %d of %d, %d clients\n", page.Number+1, page.TotalPages, page.TotalElements)
		return nil
	},
}

func writeClients(w io.Writer, clients []spend.Client) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tCOMPANY\tACTIVE")
	for _, c := range clients {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%t\n", c.ID, c.Name, c.Email, c.Company, c.Active)
	}
	_ = tw.Flush()
}

var newClient spend.ClientInput

var apiClientsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a client.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := apiClient(true)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), apiTimeout)
		defer cancel()

		created, err := client.CreateClient(ctx, newClient)
		if err != nil {
			return apiExit(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created client %d (%s)\n", created.ID, created.Email)
		return nil
	},
}

var apiClientsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a client by id.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return &exitError{code: exitUsage, err: fmt.Errorf("invalid client id %q", args[0])}
		}
		client, err := apiClient(true)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), apiTimeout)
		defer cancel()

		if err := client.DeleteClient(ctx, id); err != nil {
			return apiExit(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted client %d\n", id)
		return nil
	},
}

var apiContractsCmd = &cobra.Command{
	Use:   "contracts",
	Short: "Inspect contracts.",
}

var renewalDays int

var apiRenewalsCmd = &cobra.Command{
	Use:   "renewals",
	Short: "List contracts renewing within the next --days days.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := apiClient(true)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), apiTimeout)
		defer cancel()

		renewals, err := client.ListRenewals(ctx, renewalDays)
		if err != nil {
			return apiExit(err)
		}
		writeRenewals(cmd.OutOrStdout(), renewals)
		return nil
	},
}

func writeRenewals(w io.Writer, renewals []spend.ContractDetail) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RENEWS\tIN DAYS\tAPPLICATION\tVENDOR\tANNUAL\tAUTO-RENEW")
	for _, r := range renewals {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%t\n",
			r.EffectiveRenewalDate(), r.DaysToRenewal, r.ApplicationName, r.Vendor,
			spend.FormatMoney(r.AnnualCostCents, r.Currency), r.AutoRenew)
	}
	_ = tw.Flush()
}

func init() {
	apiCmd.PersistentFlags().StringVar(&apiURL, "url", "", "server base URL (default STACKSPEND_API_URL)")
	apiCmd.PersistentFlags().StringVar(&apiToken, "token", "", "API token (default STACKSPEND_API_TOKEN)")

	apiLoginCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	apiLoginCmd.Flags().BoolVar(&loginPasswordStdin, "password-stdin", false, "read the password from stdin")

	apiClientsListCmd.Flags().IntVar(&listFlags.Page, "page", 0, "0-based page number")
	apiClientsListCmd.Flags().IntVar(&listFlags.Size, "size", 20, "page size (max 100)")
	apiClientsListCmd.Flags().StringVar(&listFlags.Query, "q", "", "search name, email or company")
	apiClientsListCmd.Flags().StringVar(&listFlags.Sort, "sort", "", "sort as field,asc|desc")

	apiClientsCreateCmd.Flags().StringVar(&newClient.Name, "name", "", "client name")
	apiClientsCreateCmd.Flags().StringVar(&newClient.Email, "email", "", "client email")
	apiClientsCreateCmd.Flags().StringVar(&newClient.Company, "company", "", "company")
	apiClientsCreateCmd.Flags().StringVar(&newClient.Phone, "phone", "", "phone number")
	apiClientsCreateCmd.Flags().StringVar(&newClient.Address, "address", "", "postal address")
	apiClientsCreateCmd.Flags().StringVar(&newClient.Description, "description", "", "free-form notes")
	apiClientsCreateCmd.Flags().BoolVar(&newClient.Active, "active", true, "mark the client active")

	apiRenewalsCmd.Flags().IntVar(&renewalDays, "days", 0, "renewal window in days (server default 30)")

	apiClientsCmd.AddCommand(apiClientsListCmd, apiClientsCreateCmd, apiClientsDeleteCmd)
	apiContractsCmd.AddCommand(apiRenewalsCmd)
	apiCmd.AddCommand(apiLoginCmd, apiClientsCmd, apiContractsCmd)
}
