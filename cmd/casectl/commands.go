package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/thegitsss/lets-para3-sub002/api"
	"github.com/thegitsss/lets-para3-sub002/cases"
	"github.com/thegitsss/lets-para3-sub002/config"
	"github.com/thegitsss/lets-para3-sub002/dispute"
	"github.com/thegitsss/lets-para3-sub002/lifecycle"
	"github.com/thegitsss/lets-para3-sub002/purge"
)

// cli is one invocation of casectl. The app is built before the command
// runs and closed by Execute.
type cli struct {
	root *cobra.Command
	app  *app
}

func newCLI() *cli {
	c := &cli{}
	current := func() *app { return c.app }

	var idempotencyKey string
	c.root = &cobra.Command{
		Use:           "casectl",
		Short:         "Drive case engagements against the marketplace backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), config.Load(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			c.app = a
			if idempotencyKey != "" {
				cmd.SetContext(api.WithIdempotencyKey(cmd.Context(), idempotencyKey))
			}
			return nil
		},
	}
	c.root.PersistentFlags().StringVar(&idempotencyKey, "idempotency-key", "", "key sent with the command's writes; reuse it when retrying")

	c.root.AddCommand(
		newListCmd(current),
		newShowCmd(current),
		newHireCmd(current),
		newInviteCmd(current),
		newRespondCmd(current),
		newApplyCmd(current),
		newCompleteCmd(current),
		newTerminateCmd(current),
		newArchiveCmd(current),
		newRestoreCmd(current),
		newDeleteCmd(current),
		newCountdownCmd(current),
	)
	return c
}

// Execute runs the command line and closes the app whether or not the
// command succeeded.
func (c *cli) Execute(ctx context.Context) error {
	defer c.close()
	return c.root.ExecuteContext(ctx)
}

func (c *cli) close() {
	if c.app != nil {
		c.app.Close()
	}
}

// userMessage returns the text shown for err: the rejection message when
// there is one.
func userMessage(err error) string {
	var rej *lifecycle.Rejection
	if errors.As(err, &rej) && rej.Message != "" {
		return rej.Message
	}
	return err.Error()
}

func newListCmd(current func() *app) *cobra.Command {
	var archived bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your cases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			ctx := cmd.Context()

			var list []cases.Case
			if err := a.svc.Refresh(ctx); err != nil {
				snap, ok := a.loadSnapshot(ctx)
				if !ok {
					return err
				}
				fmt.Fprintf(a.out, "backend unavailable, showing cases cached at %s\n", snap.SavedAt.Local().Format(time.RFC1123))
				list = snap.Active
				if archived {
					list = snap.Archived
				}
			} else if archived {
				list = a.svc.Cache().Archived()
			} else {
				list = a.svc.Cache().Active()
			}

			printCases(a.out, list)
			return nil
		},
	}
	cmd.Flags().BoolVar(&archived, "archived", false, "list archived cases")
	return cmd
}

func (a *app) loadSnapshot(ctx context.Context) (snapshotView, bool) {
	if a.snapshots == nil {
		return snapshotView{}, false
	}
	snap, ok, err := a.snapshots.Load(ctx, a.viewer.ID)
	if err != nil || !ok {
		return snapshotView{}, false
	}
	return snapshotView{Active: snap.Active, Archived: snap.Archived, SavedAt: snap.SavedAt}, true
}

type snapshotView struct {
	Active   []cases.Case
	Archived []cases.Case
	SavedAt  time.Time
}

func printCases(out io.Writer, list []cases.Case) {
	if len(list) == 0 {
		fmt.Fprintln(out, "no cases")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tCATEGORY\tFLAGS")
	for i := range list {
		c := &list[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.ID, c.Title, c.Status.Display(), cases.Categorize(c), caseFlags(c))
	}
	_ = w.Flush()
}

func caseFlags(c *cases.Case) string {
	var flags []string
	if c.ReadOnly {
		flags = append(flags, "read-only")
	}
	if c.PaymentReleased {
		flags = append(flags, "paid")
	}
	if cases.EscrowFunded(c) {
		flags = append(flags, "funded")
	}
	if t := c.Termination.Current(); t != dispute.StatusNone {
		flags = append(flags, string(t))
	}
	return strings.Join(flags, ",")
}

func newShowCmd(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <case-id>",
		Short: "Show a case and what you can do with it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			c, err := a.svc.Reload(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printCase(a.out, a, &c, time.Now())
			return nil
		},
	}
}

func printCase(out io.Writer, a *app, c *cases.Case, now time.Time) {
	v := a.viewer
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "id\t%s\n", c.ID)
	fmt.Fprintf(w, "title\t%s\n", c.Title)
	fmt.Fprintf(w, "status\t%s\n", c.Status.Display())
	fmt.Fprintf(w, "category\t%s\n", cases.Categorize(c))
	if id := cases.HiredParalegalID(c); id != "" {
		fmt.Fprintf(w, "paralegal\t%s\n", id)
	}
	fmt.Fprintf(w, "escrow funded\t%t\n", cases.EscrowFunded(c))
	fmt.Fprintf(w, "workspace\t%t\n", cases.IsWorkspaceEligible(c))
	fmt.Fprintf(w, "termination\t%s\n", c.Termination.Current())
	fmt.Fprintf(w, "can hire\t%t\n", cases.CanHire(v, c, now))
	fmt.Fprintf(w, "can apply\t%t\n", cases.CanApply(v, c, cases.HasApplied(c, v.ID), now))
	fmt.Fprintf(w, "can terminate\t%t\n", cases.CanTerminate(v, c))
	fmt.Fprintf(w, "can restore\t%t\n", c.Archived && cases.CanRestore(c))
	fmt.Fprintf(w, "phase\t%s\n", purge.PhaseOf(c, now))
	if c.PurgeScheduledFor != nil {
		fmt.Fprintf(w, "purge in\t%s\n", purge.Countdown(*c.PurgeScheduledFor, now))
	}
	_ = w.Flush()
}

func newHireCmd(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "hire <case-id> <paralegal-id>",
		Short: "Hire a paralegal for a case",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			res, err := a.svc.Hire(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "hired %s on %s\n", args[1], res.Case.ID)
			if res.NeedsFunding {
				fmt.Fprintln(a.out, "escrow must be funded before work can start")
			}
			return nil
		},
	}
}

func newInviteCmd(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "invite <case-id> <paralegal-id>",
		Short: "Invite a paralegal to a case",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			if _, err := a.svc.Invite(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "invited %s to %s\n", args[1], args[0])
			return nil
		},
	}
}

func newRespondCmd(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:       "respond <case-id> accept|decline",
		Short:     "Accept or decline an invitation",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(lifecycle.DecisionAccept), string(lifecycle.DecisionDecline)},
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			decision := lifecycle.Decision(strings.ToLower(args[1]))
			if _, err := a.svc.RespondToInvite(cmd.Context(), args[0], decision); err != nil {
				return err
			}
			if decision == lifecycle.DecisionAccept {
				fmt.Fprintln(a.out, "invitation accepted")
			} else {
				fmt.Fprintln(a.out, "invitation declined")
			}
			return nil
		},
	}
}

func newApplyCmd(current func() *app) *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   "apply <case-id>",
		Short: "Apply to an open case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			if _, err := a.svc.Apply(cmd.Context(), args[0], note); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "applied to %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "cover note sent with the application")
	return cmd
}

func newCompleteCmd(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <case-id>",
		Short: "Complete a case and release payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			res, err := a.svc.Complete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "completed %s\n", res.Case.ID)
			if res.DownloadPath != "" {
				fmt.Fprintf(a.out, "archive: %s\n", res.DownloadPath)
			}
			if res.Case.PurgeScheduledFor != nil {
				fmt.Fprintf(a.out, "purge in %s\n", purge.Countdown(*res.Case.PurgeScheduledFor, time.Now()))
			}
			return nil
		},
	}
}

func newTerminateCmd(current func() *app) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "terminate <case-id>",
		Short: "End the engagement on a case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			c, err := a.svc.Terminate(cmd.Context(), args[0], reason)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "termination %s\n", c.Termination.Current())
			if c.Termination.DisputeID != "" {
				fmt.Fprintf(a.out, "dispute %s opened for admin review\n", c.Termination.DisputeID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the engagement is ending")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func newArchiveCmd(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "archive <case-id>",
		Short: "Archive a case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			if _, err := a.svc.Archive(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "archived %s\n", args[0])
			return nil
		},
	}
}

func newRestoreCmd(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <case-id>",
		Short: "Restore a case from the archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			c, err := a.svc.Restore(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "restored %s (%s)\n", c.ID, c.Status.Display())
			return nil
		},
	}
}

func newDeleteCmd(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <case-id>",
		Short: "Delete a case permanently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			if err := a.svc.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "deleted %s\n", args[0])
			return nil
		},
	}
}

func newCountdownCmd(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "countdown <case-id>",
		Short: "Show the purge countdown until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			c, err := a.svc.Reload(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if c.PurgeScheduledFor == nil {
				fmt.Fprintf(a.out, "no purge scheduled for %s\n", c.ID)
				return nil
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			watcher := purge.NewWatcher(a.cfg.PurgeTick, a.logger)
			defer watcher.Stop()

			watcher.Watch(ctx, c.ID, *c.PurgeScheduledFor, func(caseID, remaining string) {
				fmt.Fprintf(a.out, "%s purge in %s\n", caseID, remaining)
				if remaining == purge.Format(0) {
					cancel()
				}
			})
			<-ctx.Done()
			return nil
		},
	}
}
