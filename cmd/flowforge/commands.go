package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"flowforge/internal/assessment"
	"flowforge/internal/backfill"
	"flowforge/internal/config"
	"flowforge/internal/interview"
	"flowforge/internal/util/jsonutil"
)

type cli struct {
	load        func() (*config.Config, error)
	app         *app
	jsonOutput  bool
	autoEnhance bool
}

func newRootCmd(load func() (*config.Config, error)) *cobra.Command {
	c := &cli{load: load}
	root := &cobra.Command{
		Use:   "flowforge",
		Short: "Leadership archetype discovery interviews",
		Long: `Run archetype discovery interviews, reflection conversations and
result enhancement against the configured model provider.

Sessions persist between invocations (DATABASE_URL or SESSION_FILE), so a
session is started once and then advanced one turn per command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			c.app, err = newApp(cmd.Context(), cfg, c.autoEnhance)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.app == nil {
				return nil
			}
			return c.app.Close()
		},
	}
	root.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "print machine-readable JSON")
	root.PersistentFlags().BoolVar(&c.autoEnhance, "auto-enhance", true, "synthesize the enhanced result when a reflection completes")

	root.AddCommand(c.startCmd(), c.interviewCmd(), c.reflectCmd(), c.enhanceCmd(), c.showCmd(), c.backfillCmd())
	return root
}

func (c *cli) startCmd() *cobra.Command {
	var tenantID, name string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a new interview session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := c.app.svc.Start(cmd.Context(), tenantID, name)
			if err != nil {
				return err
			}
			return c.printReply(cmd.OutOrStdout(), r)
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant id used for branding")
	cmd.Flags().StringVar(&name, "name", "", "participant name")
	return cmd
}

func (c *cli) interviewCmd() *cobra.Command {
	var selections []string
	cmd := &cobra.Command{
		Use:   "interview <session-id> [message...]",
		Short: "Answer the current interview question",
		Long: `Answer the current interview question, either in free text or with
--select. Ranked questions take two options, first choice first:

  flowforge interview 3f2a... --select C,A
  flowforge interview 3f2a... "probably B, then D"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := interview.Input{Message: strings.Join(args[1:], " ")}
			for _, s := range selections {
				if k := strings.ToUpper(strings.TrimSpace(s)); k != "" {
					in.Selections = append(in.Selections, interview.OptionKey(k))
				}
			}
			r, err := c.app.svc.InterviewTurn(cmd.Context(), args[0], in)
			if err != nil {
				return err
			}
			if err := c.printReply(cmd.OutOrStdout(), r); err != nil {
				return err
			}
			if r.IsComplete && !c.jsonOutput {
				return c.printResult(cmd, args[0])
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&selections, "select", nil, "option keys in rank order, e.g. C,A")
	return cmd
}

func (c *cli) reflectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reflect <session-id> [message...]",
		Short: "Continue the reflection conversation on a completed interview",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := c.app.svc.ReflectionTurn(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			return c.printReply(cmd.OutOrStdout(), r)
		},
	}
}

func (c *cli) enhanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enhance <session-id>",
		Short: "Synthesize the enhanced result of a reflected session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := c.app.svc.Enhance(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !out.Success {
				return fmt.Errorf("enhancement failed: %s", out.Error)
			}
			return writeJSON(cmd.OutOrStdout(), out.Enhanced)
		},
	}
}

func (c *cli) showCmd() *cobra.Command {
	var artifacts, urls bool
	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print a stored session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if artifacts && urls {
				links, err := c.app.svc.ArtifactLinks(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if c.jsonOutput {
					return writeJSON(cmd.OutOrStdout(), links)
				}
				for _, l := range links {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", l.Path, l.URL)
				}
				return nil
			}
			if artifacts {
				paths, err := c.app.svc.Artifacts(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				for _, p := range paths {
					fmt.Fprintln(cmd.OutOrStdout(), p)
				}
				return nil
			}
			rec, err := c.app.svc.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rec)
		},
	}
	cmd.Flags().BoolVar(&artifacts, "artifacts", false, "list archived artifacts instead")
	cmd.Flags().BoolVar(&urls, "urls", false, "with --artifacts, print a download URL for each artifact")
	return cmd
}

func (c *cli) backfillCmd() *cobra.Command {
	var (
		delay time.Duration
		limit int
	)
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Enhance every reflected session that has no enhanced result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("delay") {
				delay = c.app.cfg.Backfill.Delay
			}
			runner := backfill.NewRunner(c.app.sessions, c.app.svc,
				backfill.WithDelay(delay),
				backfill.WithLimit(limit),
				backfill.WithLogger(c.app.log),
				backfill.WithObserver(c.app.obs))
			rep, err := runner.Run(cmd.Context())
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), rep); err != nil {
				return err
			}
			if rep.Failed > 0 {
				return fmt.Errorf("%d session(s) failed", rep.Failed)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&delay, "delay", backfill.DefaultDelay, "pause between synthesis calls")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum sessions to enhance (0 = all)")
	return cmd
}

func (c *cli) printReply(w io.Writer, r assessment.Reply) error {
	if c.jsonOutput {
		return writeJSON(w, r)
	}
	_, err := fmt.Fprintf(w, "[%s · %s]\n%s\n", r.SessionID, r.Phase, r.Message)
	return err
}

func (c *cli) printResult(cmd *cobra.Command, id string) error {
	rec, err := c.app.svc.Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	res, ok := rec.Interview.Result()
	if !ok {
		return errors.New("interview complete but not scored")
	}
	pattern := "tension"
	if res.IsAligned {
		pattern = "aligned"
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "\nDefault: %s\nAuthentic: %s\nPattern: %s\n",
		res.DefaultArchetype, res.AuthenticArchetype, pattern)
	return err
}

func writeJSON(w io.Writer, v any) error {
	b, err := jsonutil.MarshalNoEscapeIndent(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
