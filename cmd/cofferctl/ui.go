package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"coffer/internal/economy"

	"github.com/fatih/color"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	printer     = message.NewPrinter(language.English)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Fprintln(os.Stderr, msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptInt64(label string, min int64) (int64, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			printWarn("Enter a whole number.")
			continue
		}
		if v < min {
			printWarn(fmt.Sprintf("Value must be >= %d", min))
			continue
		}
		return v, nil
	}
}

func coins(v int64) string {
	return printer.Sprintf("%d", v)
}

func colorizeNet(v int64) string {
	text := coins(v)
	switch {
	case v > 0:
		return success.Sprint("+" + text)
	case v < 0:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

func renderBalance(b economy.Balance) {
	accent.Printf("\n== ACCOUNT %d ==\n", b.AccountID)
	fmt.Printf("%-10s %14s\n", "Cash", coins(b.Cash))
	fmt.Printf("%-10s %14s\n", "Bank", coins(b.Bank))
	fmt.Printf("%-10s %14s\n", "Debt", coins(b.Debt))
	fmt.Printf("%-10s %14s\n", "Net worth", colorizeNet(b.NetWorth))
	fmt.Printf("%-10s %14s\n\n", "Job", b.JobID)
}

func renderSlot(r economy.SlotResult) {
	symbols := make([]string, len(r.Symbols))
	for i, s := range r.Symbols {
		symbols[i] = string(s)
	}
	accent.Printf("\n[ %s ]\n", strings.Join(symbols, " | "))
	fmt.Printf("Payout %s, net %s. Cash: %s\n\n", coins(r.Payout), colorizeNet(r.Net), coins(r.Cash))
}

func renderJobs(jobs []economy.JobDefinition) {
	accent.Println("\n== JOBS ==")
	if len(jobs) == 0 {
		printInfo("No jobs configured.")
		return
	}
	fmt.Printf("%-12s %-20s %12s %8s %12s\n", "ID", "TITLE", "SALARY", "MULT", "COST")
	for _, j := range jobs {
		fmt.Printf("%-12s %-20s %12s %8s %12s\n",
			j.ID,
			truncate(j.Title, 20),
			coins(j.BaseSalary),
			"x"+j.IncomeMultiplier.String(),
			coins(j.PurchaseCost()),
		)
	}
	fmt.Println()
}

func renderLeaderboard(rows []economy.LeaderboardEntry) {
	accent.Println("\n== LEADERBOARD ==")
	if len(rows) == 0 {
		printInfo("No accounts yet.")
		return
	}
	fmt.Printf("%-6s %-20s %16s\n", "RANK", "ACCOUNT", "NET WORTH")
	for _, row := range rows {
		fmt.Printf("%-6d %-20d %16s\n", row.Rank, row.AccountID, coins(row.NetWorth))
	}
	fmt.Println()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
