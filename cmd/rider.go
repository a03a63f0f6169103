package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chrisdamba/chowrider/internal/app"
	"github.com/chrisdamba/chowrider/internal/models"
	"github.com/chrisdamba/chowrider/internal/session"
	"github.com/chrisdamba/chowrider/internal/validate"
)

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printRiderOrders(w io.Writer, orders []models.RiderOrder) {
	if len(orders) == 0 {
		fmt.Fprintln(w, "No orders")
		return
	}
	tw := table(w)
	fmt.Fprintln(tw, "ID\tREF\tRESTAURANT\tDELIVER TO\tITEMS\tFEE\tSTATUS")
	for _, o := range orders {
		items := 0
		for _, it := range o.Items {
			items += it.Quantity
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			o.ID, o.Reference, o.Restaurant.Name, o.DeliveryAddress, items, validate.Naira(o.DeliveryFee), o.Status)
	}
	tw.Flush()
}

func printTransactions(w io.Writer, txs []models.Transaction) {
	if len(txs) == 0 {
		fmt.Fprintln(w, "No transactions")
		return
	}
	tw := table(w)
	fmt.Fprintln(tw, "DATE\tTYPE\tAMOUNT\tSTATUS\tDESCRIPTION")
	for _, t := range txs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			t.Date.Local().Format("2006-01-02 15:04"), t.Type, validate.Naira(t.Amount), t.Status, t.Description)
	}
	tw.Flush()
}

func riderCommand(use, short string, args cobra.PositionalArgs, run func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, argv []string) error {
			return withSession(cmd, func(ctx context.Context, a *app.App, st session.State) error {
				if err := requireRole(st, models.RoleRider); err != nil {
					return err
				}
				return describe(run(ctx, cmd, a, argv))
			})
		},
	}
}

var ordersCmd = riderCommand("orders", "List orders waiting for a rider", cobra.NoArgs,
	func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
		orders, err := a.Rider.AvailableOrders(ctx)
		if err != nil {
			return err
		}
		printRiderOrders(cmd.OutOrStdout(), orders)
		return nil
	})

var activeCmd = riderCommand("active", "Show the order you are delivering", cobra.NoArgs,
	func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
		o, err := a.Rider.ActiveOrder(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if o == nil {
			fmt.Fprintln(out, "No active delivery")
			return nil
		}
		fmt.Fprintf(out, "Order %s (%s) %s\n", o.Reference, o.ID, o.Status)
		fmt.Fprintf(out, "Pickup:   %s, %s (%s)\n", o.Restaurant.Name, o.Restaurant.Address, o.Restaurant.Phone)
		fmt.Fprintf(out, "Drop-off: %s, %s\n", o.Customer.Name, o.DeliveryAddress)
		for _, it := range o.Items {
			fmt.Fprintf(out, "  %d x %s\n", it.Quantity, it.MenuItemName)
		}
		fmt.Fprintf(out, "Fee: %s  Total: %s\n", validate.Naira(o.DeliveryFee), validate.Naira(o.TotalAmount))
		return nil
	})

var rejectCmd = riderCommand("reject <order-id>", "Decline an offered order", cobra.ExactArgs(1),
	func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
		reason, _ := cmd.Flags().GetString("reason")
		return a.Actions.Reject(ctx, args[0], reason)
	})

var pickupCmd = riderCommand("pickup <order-id>", "Confirm you collected the order", cobra.ExactArgs(1),
	func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
		_, err := a.Actions.ConfirmPickup(ctx, args[0])
		return err
	})

var deliverCmd = riderCommand("deliver <order-id>", "Confirm delivery with the customer's code", cobra.ExactArgs(1),
	func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
		code, _ := cmd.Flags().GetString("code")
		_, err := a.Actions.ConfirmDelivery(ctx, args[0], code)
		return err
	})

var earningsCmd = riderCommand("earnings", "Show your balances and recent transactions", cobra.NoArgs,
	func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
		e, err := a.Rider.Earnings(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if e == nil {
			fmt.Fprintln(out, "No earnings yet")
			return nil
		}
		fmt.Fprintf(out, "Available: %s\nPending:   %s\nTotal:     %s\nWithdrawn: %s\n\n",
			validate.Naira(e.AvailableBalance), validate.Naira(e.PendingBalance),
			validate.Naira(e.TotalEarnings), validate.Naira(e.Withdrawn))
		printTransactions(out, e.Transactions)
		return nil
	})

var historyCmd = riderCommand("history", "List your past deliveries", cobra.NoArgs,
	func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
		orders, err := a.Rider.History(ctx)
		if err != nil {
			return err
		}
		printRiderOrders(cmd.OutOrStdout(), orders)
		return nil
	})

var banksCmd = riderCommand("banks", "List banks accepted for payouts", cobra.NoArgs,
	func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
		banks, err := a.Rider.Banks(ctx)
		if err != nil {
			return err
		}
		tw := table(cmd.OutOrStdout())
		fmt.Fprintln(tw, "CODE\tNAME")
		for _, b := range banks {
			fmt.Fprintf(tw, "%s\t%s\n", b.Code, b.Name)
		}
		return tw.Flush()
	})

var payoutCmd = riderCommand("payout <amount>", "Move earnings to your bank account", cobra.ExactArgs(1),
	func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
		amount, err := parseAmount(args[0])
		if err != nil {
			return err
		}
		req := models.PayoutRequest{Amount: amount}
		req.BankCode, _ = cmd.Flags().GetString("bank-code")
		req.AccountNumber, _ = cmd.Flags().GetString("account")
		resp, err := a.Actions.RequestPayout(ctx, req)
		if err != nil {
			return err
		}
		if resp != nil && resp.Reference != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Reference: %s\n", resp.Reference)
		}
		return nil
	})

var onlineCmd = riderCommand("online <on|off>", "Go online to receive orders, or offline", cobra.ExactArgs(1),
	func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
		var online bool
		switch args[0] {
		case "on", "true", "1":
			online = true
		case "off", "false", "0":
		default:
			return fmt.Errorf("expected on or off, got %q", args[0])
		}
		_, err := a.Actions.SetOnline(ctx, online)
		return err
	})

// acceptCmd serves both roles: dispatchers accept a request for their fleet,
// riders claim an order for themselves.
var acceptCmd = &cobra.Command{
	Use:   "accept <order-id>",
	Short: "Accept an order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, a *app.App, st session.State) error {
			out := cmd.OutOrStdout()
			if st.User.IsDispatcher() {
				if _, err := a.Dashboard.Mount(ctx); err != nil {
					return describe(err)
				}
				resp, err := a.Actions.AcceptRequest(ctx, args[0])
				if err != nil {
					return describe(err)
				}
				if resp != nil && resp.Data != nil {
					if msg, err := a.Dashboard.ShareMessage(*resp.Data); err == nil {
						fmt.Fprintf(out, "\n%s\n", msg)
					}
				}
				return nil
			}
			if _, err := a.Rider.AvailableOrders(ctx); err != nil {
				return describe(err)
			}
			o, err := a.Actions.Accept(ctx, args[0])
			if err != nil {
				return describe(err)
			}
			if o != nil {
				fmt.Fprintf(out, "Head to %s, %s\n", o.Restaurant.Name, o.Restaurant.Address)
			}
			return nil
		})
	},
}

func init() {
	rejectCmd.Flags().String("reason", "", "why you are declining")
	deliverCmd.Flags().String("code", "", "delivery code from the customer")
	payoutCmd.Flags().String("bank-code", "", "bank code (see `chowrider banks`)")
	payoutCmd.Flags().String("account", "", "account number")

	rootCmd.AddCommand(ordersCmd, activeCmd, acceptCmd, rejectCmd, pickupCmd, deliverCmd,
		earningsCmd, historyCmd, banksCmd, payoutCmd, onlineCmd)
}
