package cmd

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chrisdamba/chowrider/internal/app"
	"github.com/chrisdamba/chowrider/internal/dashboard"
	"github.com/chrisdamba/chowrider/internal/models"
	"github.com/chrisdamba/chowrider/internal/session"
	"github.com/chrisdamba/chowrider/internal/validate"
)

// parseAmount accepts plain naira amounts such as 2500, 2,500 or ₦2,500.50.
func parseAmount(s string) (float64, error) {
	clean := strings.NewReplacer("₦", "", ",", "", " ", "").Replace(s)
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}

func printView(w io.Writer, v dashboard.View, tab dashboard.Tab) {
	if d := v.Data; d != nil {
		name := ""
		if d.Partner != nil {
			name = d.Partner.Name + "  "
		}
		fmt.Fprintf(w, "%scompleted %d  active %d  revenue %s  balance %s\n\n",
			name, d.Stats.Completed, d.Stats.Active, validate.Naira(d.Stats.Revenue), validate.Naira(d.Balance))
	}
	orders := v.Tab(tab)
	if len(orders) == 0 {
		if tab == dashboard.TabActive {
			fmt.Fprintln(w, "No active trips")
		} else {
			fmt.Fprintln(w, "No new requests")
		}
		return
	}
	tw := table(w)
	fmt.Fprintln(tw, "ID\tVENDOR\tDELIVER TO\tAMOUNT\tSTATUS\tTRACKING\tRIDER")
	for _, o := range orders {
		rider := ""
		if o.Rider != nil {
			rider = o.Rider.Name
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			o.ID, o.Vendor, o.CustomerAddress, validate.Naira(o.Amount), o.Status, o.TrackingID, rider)
	}
	tw.Flush()
}

func dispatcherCommand(use, short string, args cobra.PositionalArgs, run func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, argv []string) error {
			return withSession(cmd, func(ctx context.Context, a *app.App, st session.State) error {
				if err := requireRole(st, models.RoleDispatcher); err != nil {
					return err
				}
				return describe(run(ctx, cmd, a, argv))
			})
		},
	}
}

func tabFlag(cmd *cobra.Command) (dashboard.Tab, error) {
	raw, _ := cmd.Flags().GetString("tab")
	switch tab := dashboard.Tab(raw); tab {
	case dashboard.TabRequests, dashboard.TabActive:
		return tab, nil
	default:
		return "", fmt.Errorf("unknown tab %q, expected requests or active", raw)
	}
}

var dashboardCmd = dispatcherCommand("dashboard", "Show dashboard stats and orders", cobra.NoArgs,
	func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
		tab, err := tabFlag(cmd)
		if err != nil {
			return err
		}
		v, err := a.Dashboard.Mount(ctx)
		if err != nil {
			return err
		}
		printView(cmd.OutOrStdout(), v, tab)
		return nil
	})

var shareCmd = dispatcherCommand("share <order-id>", "Print the message to send a rider for an accepted order", cobra.ExactArgs(1),
	func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
		v, err := a.Dashboard.Mount(ctx)
		if err != nil {
			return err
		}
		for _, o := range v.ActiveTrips() {
			if o.ID != args[0] {
				continue
			}
			msg, err := a.Dashboard.ShareMessage(o)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		}
		return fmt.Errorf("order %s is not an active trip", args[0])
	})

var walletCmd = dispatcherCommand("wallet", "Show the company wallet", cobra.NoArgs,
	func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
		w, err := a.Dashboard.Wallet(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if w == nil {
			fmt.Fprintln(out, "Wallet unavailable")
			return nil
		}
		fmt.Fprintf(out, "Balance: %s\nPending: %s\n\n", validate.Naira(w.Balance), validate.Naira(w.PendingBalance))
		printTransactions(out, w.Transactions)
		return nil
	})

var withdrawCmd = dispatcherCommand("withdraw <amount>", "Withdraw wallet funds to a bank account", cobra.ExactArgs(1),
	func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
		amount, err := parseAmount(args[0])
		if err != nil {
			return err
		}
		req := models.WithdrawalRequest{Amount: amount}
		req.BankName, _ = cmd.Flags().GetString("bank")
		req.AccountNumber, _ = cmd.Flags().GetString("account")
		req.AccountName, _ = cmd.Flags().GetString("account-name")
		_, err = a.Actions.RequestWithdrawal(ctx, req)
		return err
	})

func init() {
	dashboardCmd.Flags().String("tab", string(dashboard.TabRequests), "orders to list (requests or active)")
	withdrawCmd.Flags().String("bank", "", "bank name")
	withdrawCmd.Flags().String("account", "", "account number")
	withdrawCmd.Flags().String("account-name", "", "account holder name")

	rootCmd.AddCommand(dashboardCmd, shareCmd, walletCmd, withdrawCmd)
}
