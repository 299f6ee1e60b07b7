package cmd

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/zfogg/sidechain/community/pkg/service"
	"github.com/zfogg/sidechain/community/pkg/session"
)

const closeTimeout = 5 * time.Second

// openSession builds a session from the stored credentials.
func openSession(reg prometheus.Registerer) (*session.Session, error) {
	creds, err := service.Current()
	if err != nil {
		return nil, err
	}
	return session.New(session.Options{
		Token:      creds.Token,
		Tenant:     creds.Tenant,
		Registerer: reg,
	})
}

// withSession runs fn against a fresh session and closes it afterwards,
// flushing pending progress writes.
func withSession(fn func(ctx context.Context, s *session.Session, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := openSession(nil)
		if err != nil {
			return err
		}
		defer closeSession(s)
		return fn(cmd.Context(), s, args)
	}
}
