package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chrisdamba/chowrider/internal/actions"
	"github.com/chrisdamba/chowrider/internal/app"
	"github.com/chrisdamba/chowrider/internal/cache"
	"github.com/chrisdamba/chowrider/internal/dashboard"
	"github.com/chrisdamba/chowrider/internal/models"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stay connected and follow realtime order events",
	Long: `watch keeps a realtime connection open for the signed-in account. Order events
update the local view as they arrive and are mirrored to the configured output
destination. Pass --order to follow a rider's position on one order.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		var mu sync.Mutex
		printf := func(format string, a ...interface{}) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(out, format, a...)
		}

		a, err := newApp(cmd, app.Options{
			Notifier: actions.NotifierFunc(func(n actions.Notification) {
				printf("! %s %s\n", n.Title, n.Body)
			}),
		}, true)
		if err != nil {
			return err
		}
		defer a.Close()

		a.Start(ctx)
		st, err := signedIn(ctx, a)
		if err != nil {
			return err
		}
		defer a.Events.Observe(func(event string, payload json.RawMessage) {
			printf("%s %-24s %s\n", time.Now().Format("15:04:05"), event, payload)
		})()

		orderID, _ := cmd.Flags().GetString("order")
		if orderID != "" {
			go followOrder(ctx, a, orderID, printf)
		}

		printf("Watching as %s (%s), Ctrl+C to stop\n", st.User.Name, st.User.Role)
		if st.User.IsDispatcher() {
			if _, err := a.Dashboard.Mount(ctx); err != nil {
				return describe(err)
			}
			a.Dashboard.Watch(ctx, watchDashboard(out, &mu))
		} else {
			if _, err := a.Rider.AvailableOrders(ctx); err != nil {
				return describe(err)
			}
			watchAvailable(ctx, a, out, &mu)
		}
		return nil
	},
}

func watchDashboard(out io.Writer, mu *sync.Mutex) func(dashboard.View) {
	var last *models.DashboardData
	return func(v dashboard.View) {
		if v.Data == nil || v.Data == last {
			return
		}
		last = v.Data
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(out)
		printView(out, v, dashboard.TabRequests)
	}
}

func watchAvailable(ctx context.Context, a *app.App, out io.Writer, mu *sync.Mutex) {
	ch, cancel := a.Cache.Subscribe(cache.KeyAvailableOrders)
	defer cancel()
	var last uint64
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			orders, ok := cache.Value[[]models.RiderOrder](snap)
			if !ok || snap.Version == last {
				continue
			}
			last = snap.Version
			mu.Lock()
			fmt.Fprintln(out)
			printRiderOrders(out, orders)
			mu.Unlock()
		}
	}
}

func followOrder(ctx context.Context, a *app.App, orderID string, printf func(string, ...interface{})) {
	ch, cancel := a.Locations.Subscribe(orderID)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case loc, ok := <-ch:
			if !ok {
				return
			}
			printf("%s rider at %.5f,%.5f heading %.0f\n", loc.Timestamp.Local().Format("15:04:05"), loc.Lat, loc.Lon, loc.Heading)
		}
	}
}

func init() {
	watchCmd.Flags().String("order", "", "follow the rider's position on this order")
	rootCmd.AddCommand(watchCmd)
}
