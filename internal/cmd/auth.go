package cmd

import (
	"github.com/spf13/cobra"
	"github.com/zfogg/sidechain/community/pkg/config"
	"github.com/zfogg/sidechain/community/pkg/output"
	"github.com/zfogg/sidechain/community/pkg/prompter"
	"github.com/zfogg/sidechain/community/pkg/service"
)

var (
	loginToken  string
	loginTenant string
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authentication commands",
	Long:  "Manage the session token and tenant used by every other command",
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store a session token for a tenant",
	Long: `Store a session token and the tenant it belongs to. Missing values
are prompted for; the token is read without echo on a terminal.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tenant := loginTenant
		if tenant == "" {
			tenant = config.GetString("tenant.slug")
		}
		authSvc := service.NewAuthService(prompter.Stdio(), output.Stdout())
		return authSvc.Login(loginToken, tenant)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		authSvc := service.NewAuthService(prompter.Stdio(), output.Stdout())
		return authSvc.Logout()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		authSvc := service.NewAuthService(prompter.Stdio(), output.Stdout())
		return authSvc.Status()
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginToken, "token", "", "Session token (prompted when omitted)")
	loginCmd.Flags().StringVar(&loginTenant, "tenant", "", "Tenant slug (defaults to tenant.slug from config)")

	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(statusCmd)
}
