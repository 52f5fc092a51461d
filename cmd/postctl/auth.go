package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/socialpost/postctl/internal/models"
	"github.com/spf13/cobra"
)

var (
	loginEmail      string
	loginPassword   string
	loginRemember   bool
	passwordFromStd bool
	newPassword     string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the scheduler",
	Long: `Sign in with your email and password. The session is saved locally and
reused by the other commands until it ends or you log out.

Examples:
  postctl login --email editor@example.com --remember-me
  echo "$PASSWORD" | postctl login --email editor@example.com --password-stdin`,
	RunE: withApp(runLogin),
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session",
	RunE:  withApp(runLogout),
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Print the logged in user",
	RunE:  withApp(runWhoami),
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Tell whether the session is still valid and when the session cookie expires",
	RunE:  withApp(runStatus),
}

var choosePasswordCmd = &cobra.Command{
	Use:   "choose-password",
	Short: "Replace the temporary password you were given",
	RunE:  withApp(runChoosePassword),
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "account password (prompted when empty)")
	loginCmd.Flags().BoolVar(&passwordFromStd, "password-stdin", false, "read the password from stdin")
	loginCmd.Flags().BoolVar(&loginRemember, "remember-me", false, "ask for a long lived session")
	_ = loginCmd.MarkFlagRequired("email")
	choosePasswordCmd.Flags().StringVar(&newPassword, "password", "", "the new password (prompted when empty)")
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd, statusCmd, choosePasswordCmd)
}

func readPassword(in io.Reader, out io.Writer, prompt bool) (string, error) {
	if prompt {
		fmt.Fprint(out, "Password: ")
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("the password cannot be empty")
	}
	return password, nil
}

func runLogin(cmd *cobra.Command, _ []string, a *app) error {
	password := loginPassword
	if password == "" {
		var err error
		password, err = readPassword(cmd.InOrStdin(), cmd.ErrOrStderr(), !passwordFromStd)
		if err != nil {
			return err
		}
	}
	user, err := a.session.Login(cmd.Context(), models.Credentials{
		Email:      loginEmail,
		Password:   password,
		RememberMe: loginRemember,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", user.Email, user.Role)
	if user.PasswordIsTemporary {
		fmt.Fprintln(cmd.OutOrStdout(), "Your password is temporary, run `postctl choose-password` to set your own.")
	}
	return nil
}

func runLogout(cmd *cobra.Command, _ []string, a *app) error {
	err := a.session.Logout(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
	return nil
}

func runWhoami(cmd *cobra.Command, _ []string, a *app) error {
	user, err := a.session.RequireAuthenticated(cmd.Context())
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), user)
}

type sessionStatus struct {
	Authenticated bool       `json:"authenticated" yaml:"authenticated"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty" yaml:"expiresAt,omitempty"`
}

func runStatus(cmd *cobra.Command, _ []string, a *app) error {
	if !a.session.HasSession() {
		return printResult(cmd.OutOrStdout(), sessionStatus{})
	}
	ok, err := a.session.IsAuthenticated(cmd.Context())
	if err != nil {
		return err
	}
	status := sessionStatus{Authenticated: ok}
	if expiry, err := a.session.CookieExpiry(); ok && err == nil {
		status.ExpiresAt = &expiry
	}
	return printResult(cmd.OutOrStdout(), status)
}

func runChoosePassword(cmd *cobra.Command, _ []string, a *app) error {
	password := newPassword
	if password == "" {
		var err error
		password, err = readPassword(cmd.InOrStdin(), cmd.ErrOrStderr(), true)
		if err != nil {
			return err
		}
	}
	err := a.session.ChoosePassword(cmd.Context(), password)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Password updated")
	return nil
}
