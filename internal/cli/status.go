package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/therapy-rooms/internal/guard"
)

// statusView — состояние сессии и решение охранника для сегмента.
type statusView struct {
	Status       string `json:"status"`
	Email        string `json:"email,omitempty"`
	Subscription string `json:"subscription"`
	Premium      bool   `json:"can_access_premium"`
	Segment      string `json:"segment"`
	Decision     string `json:"decision"`
	Route        string `json:"route,omitempty"`
}

func (a *app) newStatusCmd() *cobra.Command {
	var segment string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show session state and where the app would navigate",
		RunE: func(cmd *cobra.Command, args []string) error {
			st := a.deps.Session.Snapshot()
			d := guard.Decide(guard.FromState(st, segment))

			v := statusView{
				Status:       string(st.Status),
				Subscription: formatSubscription(st.Subscription),
				Premium:      st.Subscription.CanAccessPremium,
				Segment:      guard.Normalize(segment),
				Decision:     string(d),
				Route:        d.Route(),
			}
			if st.User != nil {
				v.Email = st.User.Email
			}

			if a.format != formatTable {
				return printStructured(cmd.OutOrStdout(), a.format, v)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Session:      %s\n", v.Status)
			if v.Email != "" {
				fmt.Fprintf(w, "User:         %s\n", v.Email)
			}
			fmt.Fprintf(w, "Subscription: %s\n", v.Subscription)
			fmt.Fprintf(w, "Premium:      %t\n", v.Premium)
			if d == guard.Stay {
				fmt.Fprintf(w, "Route:        stay on %s\n", v.Segment)
			} else {
				fmt.Fprintf(w, "Route:        %s -> %s\n", v.Segment, v.Route)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&segment, "segment", guard.SegmentMain, "current navigation segment")
	return cmd
}
