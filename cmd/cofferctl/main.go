package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	cl "coffer/internal/cli"
	"coffer/internal/config"

	"github.com/spf13/cobra"
)

type globals struct {
	apiBase    string
	defaultAPI string
	token      string
	account    int64
}

func main() {
	cfg := config.LoadCLIFromEnv()
	g := &globals{defaultAPI: cfg.APIBaseURL, token: cfg.Token}

	root := &cobra.Command{
		Use:          "cofferctl",
		Short:        "Operator CLI for the coffer ledger",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&g.apiBase, "api", "", "API base URL (default $COFFER_API_URL or the saved session)")
	root.PersistentFlags().StringVar(&g.token, "token", g.token, "API bearer token")
	root.PersistentFlags().Int64Var(&g.account, "account", 0, "account id to act on (defaults to the saved session)")

	root.AddCommand(
		newLoginCmd(g),
		newLogoutCmd(),
		newBalanceCmd(g),
		newWorkCmd(g),
		newSlotCmd(g),
		newCoinFlipCmd(g),
		newTransferCmd(g),
		newBorrowCmd(g),
		newRepayCmd(g),
		newMoveCmd(g, "deposit", "Move cash into the bank"),
		newMoveCmd(g, "withdraw", "Move bank funds back to cash"),
		newMoveCmd(g, "credit", "Grant coins to an account"),
		newMoveCmd(g, "debit", "Remove coins from an account"),
		newJobsCmd(g),
		newLeaderboardCmd(g),
	)

	if err := root.Execute(); err != nil {
		printError(fmt.Sprintf("error: %v", err))
		os.Exit(1)
	}
}

// client merges flags with the saved session; explicit flags win.
func (g *globals) client() (*cl.Client, int64) {
	apiBase, token, account := g.apiBase, g.token, g.account
	if sess, err := cl.LoadSession(); err == nil {
		if token == "" {
			token = sess.Token
		}
		if apiBase == "" {
			apiBase = sess.APIBaseURL
		}
		if account == 0 {
			account = sess.AccountID
		}
	}
	if apiBase == "" {
		apiBase = g.defaultAPI
	}
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(apiBase), "/"), token), account
}

func (g *globals) accountClient() (*cl.Client, int64, error) {
	client, account := g.client()
	if account <= 0 {
		return nil, 0, errors.New("no account selected: pass --account or run `cofferctl login`")
	}
	return client, account, nil
}

func withTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 30*time.Second)
}

func newLoginCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Save the API URL, token and default account",
		RunE: func(cmd *cobra.Command, args []string) error {
			apiBase := g.apiBase
			if apiBase == "" {
				apiBase = g.defaultAPI
			}
			token := g.token
			if token == "" {
				v, err := promptRequired("API token")
				if err != nil {
					return err
				}
				token = v
			}
			account := g.account
			if account == 0 {
				v, err := promptInt64("Default account id", 1)
				if err != nil {
					return err
				}
				account = v
			}

			ctx, cancel := withTimeout(cmd)
			defer cancel()
			if _, err := cl.NewClient(apiBase, token).Jobs(ctx); err != nil {
				return fmt.Errorf("check credentials: %w", err)
			}
			if err := cl.SaveSession(cl.Session{APIBaseURL: apiBase, Token: token, AccountID: account}); err != nil {
				return err
			}
			printSuccess("Session saved.")
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func newBalanceCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "balance [account_id]",
		Short: "Show an account's balances",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, account, err := g.accountClient()
			if len(args) == 1 {
				client, _ = g.client()
				account, err = parseID(args[0])
			}
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			out, err := client.Balance(ctx, account)
			if err != nil {
				return err
			}
			renderBalance(out)
			return nil
		},
	}
}

func newWorkCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "work",
		Short: "Work a shift for the account's job",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, account, err := g.accountClient()
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			out, err := client.Work(ctx, account)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Worked as %s and earned %s. Cash: %s", out.JobID, coins(out.Earnings), coins(out.Cash)))
			return nil
		},
	}
}

func newSlotCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "slot <stake>",
		Short: "Spin the slot machine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, account, err := g.accountClient()
			if err != nil {
				return err
			}
			stake, err := parseAmount(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			out, err := client.Slot(ctx, account, stake)
			if err != nil {
				return err
			}
			renderSlot(out)
			return nil
		},
	}
}

func newCoinFlipCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "coinflip <stake>",
		Short: "Bet on a coin flip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, account, err := g.accountClient()
			if err != nil {
				return err
			}
			stake, err := parseAmount(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			out, err := client.CoinFlip(ctx, account, stake)
			if err != nil {
				return err
			}
			if out.Won {
				printSuccess(fmt.Sprintf("Heads! You won %s. Cash: %s", coins(out.Net), coins(out.Cash)))
			} else {
				printWarn(fmt.Sprintf("Tails. You lost %s. Cash: %s", coins(-out.Net), coins(out.Cash)))
			}
			return nil
		},
	}
}

func newTransferCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <to_account> <amount>",
		Short: "Send cash to another account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, account, err := g.accountClient()
			if err != nil {
				return err
			}
			to, err := parseID(args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			if err := client.Transfer(ctx, account, to, amount); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Sent %s to %d.", coins(amount), to))
			return nil
		},
	}
}

func newBorrowCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "borrow <amount>",
		Short: "Take a loan against net worth",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, account, err := g.accountClient()
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			if err := client.Borrow(ctx, account, amount); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Borrowed %s.", coins(amount)))
			return nil
		},
	}
}

func newRepayCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "repay <amount>",
		Short: "Pay down debt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, account, err := g.accountClient()
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			out, err := client.Repay(ctx, account, amount)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Repaid %s. Remaining debt: %s", coins(out.Repaid), coins(out.RemainingDebt)))
			return nil
		},
	}
}

func newMoveCmd(g *globals, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <amount>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, account, err := g.accountClient()
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			out, err := client.Move(ctx, account, action, amount)
			if err != nil {
				return err
			}
			renderBalance(out)
			return nil
		},
	}
}

func newJobsCmd(g *globals) *cobra.Command {
	jobs := &cobra.Command{
		Use:   "jobs",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _ := g.client()
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			out, err := client.Jobs(ctx)
			if err != nil {
				return err
			}
			renderJobs(out)
			return nil
		},
	}
	jobs.AddCommand(&cobra.Command{
		Use:   "take <job_id>",
		Short: "Buy a job for the account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, account, err := g.accountClient()
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			out, err := client.ChangeJob(ctx, account, strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Now working as %s. Cash: %s", out.JobID, coins(out.Cash)))
			return nil
		},
	})
	return jobs
}

func newLeaderboardCmd(g *globals) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the richest accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _ := g.client()
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			out, err := client.Leaderboard(ctx, limit)
			if err != nil {
				return err
			}
			renderLeaderboard(out)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of rows (max 100)")
	return cmd
}

func parseID(raw string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid account id %q", raw)
	}
	return v, nil
}

func parseAmount(raw string) (int64, error) {
	v, err := strconv.ParseInt(strings.ReplaceAll(strings.TrimSpace(raw), ",", ""), 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("amount must be a positive whole number, got %q", raw)
	}
	return v, nil
}
