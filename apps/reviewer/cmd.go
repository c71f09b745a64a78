package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/dig"
	"golang.org/x/term"

	"github.com/connorferster/python-course-admin/core"
	"github.com/connorferster/python-course-admin/core/review"
)

const (
	formatText = "text"
	formatJSON = "json"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	newContainerFunc = newContainer      // mockable
)

type commandLine struct {
	out        io.Writer
	configFile string
	format     string
	ov         overrides
}

func newCommandLine(out io.Writer) *commandLine {
	return &commandLine{out: out}
}

// invoke builds the dependency container then calls fn with the review service.
func (cli *commandLine) invoke(fn func(svc review.Service) error) error {
	c, res := newContainerFunc(cli.configFile, cli.ov)
	defer res.Close()

	var runErr error
	err := c.Invoke(func(svc review.Service) {
		runErr = fn(svc)
	})
	if err != nil {
		return errors.Wrap(dig.RootCause(err), "setting up")
	}
	return runErr
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "reviewer",
		Short:         "Pair course members for workbook peer reviews and route the reviews by email",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cli.format != formatText && cli.format != formatJSON {
				return errors.Errorf("invalid format %q: must be one of: %s|%s", cli.format, formatText, formatJSON)
			}
			return nil
		},
	}
	root.SetOut(cli.out)
	root.PersistentFlags().StringVar(&cli.configFile, "config", "", "config file (yaml, toml or json)")
	root.PersistentFlags().StringVar(&cli.format, "format", formatText, "output format: text|json")

	root.AddCommand(
		cli.sendCmd(),
		cli.returnCmd(),
		cli.notifyCmd(),
		cli.pairCmd(),
		cli.showCmd(),
		cli.migrateCmd(),
	)
	return root
}

func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func (cli *commandLine) addPairingFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&cli.ov.filler, "filler", "", "email paired with the odd member out (default: config fillerEmail)")
	cmd.Flags().Int64Var(&cli.ov.seed, "seed", 0, "seed of the random pairings (default: config seed)")
}

func (cli *commandLine) sendCmd() *cobra.Command {
	var folder string
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Pair the senders of a submissions folder and forward each workbook to its reviewer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := core.SplitFolder(folder)
			if len(path) == 0 {
				return errors.New("--folder is required")
			}
			return cli.invoke(func(svc review.Service) error {
				report, err := svc.SendForReview(cmd.Context(), path)
				if err != nil {
					return err
				}
				return cli.print(report, func(w io.Writer) { printSendReport(w, report) })
			})
		},
	}
	cmd.Flags().StringVar(&folder, "folder", "", `submissions folder, e.g. "Python Course/Workbook 1"`)
	cmd.Flags().BoolVar(&cli.ov.dryRun, "dry-run", false, "print the emails instead of sending them")
	cli.addPairingFlags(cmd)
	return cmd
}

func (cli *commandLine) returnCmd() *cobra.Command {
	var (
		folder string
		round  string
		notify bool
	)
	cmd := &cobra.Command{
		Use:   "return",
		Short: "Forward returned reviews to the workbook authors and report who was not reviewed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := core.SplitFolder(folder)
			if len(path) == 0 {
				return errors.New("--folder is required")
			}
			if round = core.CleanString(round); round == "" {
				return errors.New("--round is required")
			}
			return cli.invoke(func(svc review.Service) error {
				rec, err := svc.ReturnReviewed(cmd.Context(), path, round)
				if err != nil {
					return err
				}
				if notify && len(rec.Unhappy) > 0 {
					if err := svc.NotifyUnhappy(cmd.Context(), round, rec.Unhappy); err != nil {
						return err
					}
				}
				return cli.print(rec, func(w io.Writer) { printReconciliation(w, rec) })
			})
		},
	}
	cmd.Flags().StringVar(&folder, "folder", "", `returned reviews folder, e.g. "Python Course/Workbook 1 Reviews"`)
	cmd.Flags().StringVar(&round, "round", "", "title of the round the reviews belong to")
	cmd.Flags().BoolVar(&notify, "notify", false, "email the members who were not reviewed")
	cmd.Flags().BoolVar(&cli.ov.dryRun, "dry-run", false, "print the emails instead of sending them")
	return cmd
}

func (cli *commandLine) notifyCmd() *cobra.Command {
	var (
		round   string
		members []string
	)
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Tell members that their workbook was not reviewed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if round = core.CleanString(round); round == "" {
				return errors.New("--round is required")
			}
			cleaned := make([]string, 0, len(members))
			for _, m := range members {
				if m = core.CleanString(m, true /* lower */); m != "" {
					cleaned = append(cleaned, m)
				}
			}
			if len(cleaned) == 0 {
				return errors.New("at least one --member is required")
			}
			return cli.invoke(func(svc review.Service) error {
				if err := svc.NotifyUnhappy(cmd.Context(), round, cleaned); err != nil {
					return err
				}
				return cli.print(cleaned, func(w io.Writer) {
					fmt.Fprintf(w, "Notified %d member(s) of round %q\n", len(cleaned), round)
				})
			})
		},
	}
	cmd.Flags().StringVar(&round, "round", "", "title of the round")
	cmd.Flags().StringSliceVar(&members, "member", nil, "email of a member to notify (repeatable)")
	cmd.Flags().BoolVar(&cli.ov.dryRun, "dry-run", false, "print the emails instead of sending them")
	return cmd
}

func (cli *commandLine) pairCmd() *cobra.Command {
	var (
		roster string
		round  string
	)
	cmd := &cobra.Command{
		Use:   "pair",
		Short: "Pair the members of a roster file without a mailbox",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if roster == "" {
				return errors.New("--roster is required")
			}
			if round = core.CleanString(round); round == "" {
				return errors.New("--round is required")
			}
			members, err := review.LoadRoster(roster)
			if err != nil {
				return err
			}
			return cli.invoke(func(svc review.Service) error {
				rnd, err := svc.PairRoster(cmd.Context(), round, members)
				if err != nil {
					return err
				}
				return cli.print(rnd, func(w io.Writer) { printRound(w, rnd) })
			})
		},
	}
	cmd.Flags().StringVar(&roster, "roster", "", "YAML roster file")
	cmd.Flags().StringVar(&round, "round", "", "title of the round")
	cli.addPairingFlags(cmd)
	return cmd
}

func (cli *commandLine) showCmd() *cobra.Command {
	var round string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the pairings recorded for a round",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if round = core.CleanString(round); round == "" {
				return errors.New("--round is required")
			}
			return cli.invoke(func(svc review.Service) error {
				rnd, err := svc.GetRound(cmd.Context(), round)
				if err != nil {
					return err
				}
				return cli.print(rnd, func(w io.Writer) { printRound(w, rnd) })
			})
		},
	}
	cmd.Flags().StringVar(&round, "round", "", "title of the round")
	return cmd
}

// promptPassword reads the mailbox password from the terminal.
func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Mailbox password:")
	pwd, err := readPasswordFunc(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
