package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chrisdamba/chowrider/internal/app"
	"github.com/chrisdamba/chowrider/internal/export"
	"github.com/chrisdamba/chowrider/internal/models"
	"github.com/chrisdamba/chowrider/internal/push"
	"github.com/chrisdamba/chowrider/internal/session"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export wallet or earnings transactions to CSV or parquet",
	RunE: func(cmd *cobra.Command, args []string) error {
		ecfg := cfg.Export
		if f, _ := cmd.Flags().GetString("format"); f != "" {
			ecfg.Format = f
		}
		if d, _ := cmd.Flags().GetString("destination"); d != "" {
			ecfg.Destination = d
		}
		if p, _ := cmd.Flags().GetString("output"); p != "" {
			ecfg.OutputPath = p
		}

		return withSession(cmd, func(ctx context.Context, a *app.App, st session.State) error {
			var (
				name string
				txs  []models.Transaction
			)
			if st.User.IsDispatcher() {
				w, err := a.Dashboard.Wallet(ctx)
				if err != nil {
					return describe(err)
				}
				name = "wallet"
				if w != nil {
					txs = w.Transactions
				}
			} else {
				e, err := a.Rider.Earnings(ctx)
				if err != nil {
					return describe(err)
				}
				name = "earnings"
				if e != nil {
					txs = e.Transactions
				}
			}

			exp, err := export.New(ctx, ecfg, cmd.ErrOrStderr(), log.With("component", "export"))
			if err != nil {
				return err
			}
			location, err := exp.Export(ctx, name, txs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d transactions to %s\n", len(txs), location)
			return nil
		})
	},
}

var pushRegisterCmd = &cobra.Command{
	Use:   "push-register",
	Short: "Attach a device push token to the signed-in account",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, _ := cmd.Flags().GetString("token")
		a, err := newApp(cmd, app.Options{Platform: push.StaticPlatform{Token: token}}, false)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		if _, err := signedIn(ctx, a); err != nil {
			return err
		}
		registered, err := a.Push.Register(ctx)
		if err != nil {
			return describe(err)
		}
		if registered == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "No push token available, nothing registered")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Push token registered")
		return nil
	},
}

func init() {
	exportCmd.Flags().String("format", "", "file format (csv or parquet)")
	exportCmd.Flags().String("destination", "", "where to write (local or cloud)")
	exportCmd.Flags().StringP("output", "o", "", "output directory, or object prefix for cloud exports")

	pushRegisterCmd.Flags().String("token", "", "device push token")
	pushRegisterCmd.MarkFlagRequired("token")

	rootCmd.AddCommand(exportCmd, pushRegisterCmd)
}
