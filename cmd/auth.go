package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/chrisdamba/chowrider/internal/app"
	"github.com/chrisdamba/chowrider/internal/models"
	"github.com/chrisdamba/chowrider/internal/session"
	"github.com/chrisdamba/chowrider/internal/storage"
)

type pendingOTP struct {
	Email     string `json:"email"`
	TempToken string `json:"tempToken"`
}

// passwordFlag reads a password from the flag, the environment, or an
// interactive prompt, in that order.
func passwordFlag(cmd *cobra.Command, name string) (string, error) {
	pw, _ := cmd.Flags().GetString(name)
	if pw == "" {
		pw = os.Getenv("CHOWRIDER_PASSWORD")
	}
	if pw != "" {
		return pw, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("--%s or CHOWRIDER_PASSWORD is required", name)
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(raw), nil
}

// reportAuth prints the outcome of a login or register and keeps an OTP
// challenge for the verify-otp command.
func reportAuth(cmd *cobra.Command, a *app.App, st session.State) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	switch st.Status {
	case session.StatusOTPRequired:
		raw, err := json.Marshal(pendingOTP{Email: st.Email, TempToken: st.TempToken})
		if err != nil {
			return err
		}
		if err := a.Store.Set(ctx, models.KeyPendingOTP, string(raw)); err != nil {
			return fmt.Errorf("failed to keep otp challenge: %w", err)
		}
		fmt.Fprintf(out, "A verification code was sent to %s. Run `chowrider verify-otp <code>`.\n", st.Email)
	case session.StatusAuthenticated:
		a.Store.Remove(ctx, models.KeyPendingOTP)
		fmt.Fprintf(out, "Signed in as %s (%s)\n", st.User.Name, st.User.Role)
	default:
		fmt.Fprintln(out, "Account created. Sign in with `chowrider login`.")
	}
	return nil
}

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Sign in with email and password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := passwordFlag(cmd, "password")
		if err != nil {
			return err
		}
		a, err := newApp(cmd, app.Options{}, false)
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.Session.Login(cmd.Context(), args[0], password)
		if err != nil {
			return describe(err)
		}
		return reportAuth(cmd, a, st)
	},
}

var verifyOTPCmd = &cobra.Command{
	Use:   "verify-otp <code>",
	Short: "Complete a sign-in that asked for a verification code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, app.Options{}, false)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		raw, err := storage.GetOptional(ctx, a.Store, models.KeyPendingOTP)
		if err != nil {
			return err
		}
		if raw == "" {
			return session.ErrNoPendingOTP
		}
		var p pendingOTP
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return fmt.Errorf("corrupt otp challenge: %w", err)
		}
		a.Session.AwaitOTP(p.Email, p.TempToken)

		st, err := a.Session.VerifyOTP(ctx, args[0])
		if err != nil {
			return describe(err)
		}
		return reportAuth(cmd, a, st)
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a rider or dispatcher account",
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := passwordFlag(cmd, "password")
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		data := models.RegisterData{Password: password}
		data.Name, _ = flags.GetString("name")
		data.Email, _ = flags.GetString("email")
		data.Phone, _ = flags.GetString("phone")
		data.Address, _ = flags.GetString("address")
		data.Role, _ = flags.GetString("role")

		a, err := newApp(cmd, app.Options{}, false)
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.Session.Register(cmd.Context(), data)
		if err != nil {
			return describe(err)
		}
		return reportAuth(cmd, a, st)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, app.Options{}, false)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		a.Store.Remove(ctx, models.KeyPendingOTP)
		if err := a.Session.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(_ context.Context, _ *app.App, st session.State) error {
			u := st.User
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s <%s>\n", u.Name, u.Email)
			fmt.Fprintf(out, "id:     %s\n", u.ID)
			fmt.Fprintf(out, "role:   %s\n", u.Role)
			if u.IsRider() {
				status := "offline"
				if u.IsOnline {
					status = "online"
				}
				fmt.Fprintf(out, "status: %s\n", status)
			}
			if !st.ExpiresAt.IsZero() {
				fmt.Fprintf(out, "expires: %s\n", st.ExpiresAt.Local().Format("2006-01-02 15:04"))
			}
			return nil
		})
	},
}

var forgotPasswordCmd = &cobra.Command{
	Use:   "forgot-password <email>",
	Short: "Send a password reset code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, app.Options{}, false)
		if err != nil {
			return err
		}
		defer a.Close()

		resp, err := a.Session.ForgotPassword(cmd.Context(), args[0])
		if err != nil {
			return describe(err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), messageOr(resp.Message, "Reset code sent"))
		return nil
	},
}

var resetPasswordCmd = &cobra.Command{
	Use:   "reset-password <email> <code>",
	Short: "Verify a reset code and set a new password",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := passwordFlag(cmd, "new-password")
		if err != nil {
			return err
		}
		a, err := newApp(cmd, app.Options{}, false)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		email, code := args[0], args[1]
		verified, err := a.Session.VerifyResetOTP(ctx, email, code)
		if err != nil {
			return describe(err)
		}
		resp, err := a.Session.ResetPassword(ctx, models.ResetPasswordPayload{
			Email:       email,
			Code:        code,
			ResetToken:  verified.ResetToken,
			NewPassword: password,
		})
		if err != nil {
			return describe(err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), messageOr(resp.Message, "Password updated"))
		return nil
	},
}

func messageOr(msg, fallback string) string {
	if msg == "" {
		return fallback
	}
	return msg
}

func init() {
	loginCmd.Flags().String("password", "", "account password (or CHOWRIDER_PASSWORD)")

	registerCmd.Flags().String("name", "", "full name")
	registerCmd.Flags().String("email", "", "email address")
	registerCmd.Flags().String("phone", "", "phone number")
	registerCmd.Flags().String("address", "", "address")
	registerCmd.Flags().String("role", models.RoleRider, "account role (RIDER or DISPATCHER)")
	registerCmd.Flags().String("password", "", "account password (or CHOWRIDER_PASSWORD)")

	resetPasswordCmd.Flags().String("new-password", "", "new password (or CHOWRIDER_PASSWORD)")

	rootCmd.AddCommand(loginCmd, verifyOTPCmd, registerCmd, logoutCmd, whoamiCmd, forgotPasswordCmd, resetPasswordCmd)
}
