package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"coffer/internal/economy"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var errUnknownCommand = errors.New("unknown command")

// Invocation is one slash command, flattened out of the interaction payload.
type Invocation struct {
	UserID  economy.AccountID
	Command string
	Amount  int64
	Target  economy.AccountID
	JobID   string
}

type Reply struct {
	Content   string
	Ephemeral bool
}

// ParseInvocation reads the subcommand and its options. userID is the invoking member's snowflake.
func ParseInvocation(data discordgo.ApplicationCommandInteractionData, userID string) (Invocation, error) {
	caller, err := parseSnowflake(userID)
	if err != nil {
		return Invocation{}, err
	}
	inv := Invocation{UserID: caller}
	opts := data.Options
	switch data.Name {
	case GroupCommand:
		if len(opts) != 1 || opts[0].Type != discordgo.ApplicationCommandOptionSubCommand {
			return Invocation{}, errUnknownCommand
		}
		inv.Command = opts[0].Name
		opts = opts[0].Options
	case ShopCommand:
		inv.Command = ShopCommand
	default:
		return Invocation{}, errUnknownCommand
	}

	for _, opt := range opts {
		switch opt.Name {
		case "amount":
			if opt.Type != discordgo.ApplicationCommandOptionInteger {
				return Invocation{}, economy.ErrInvalidAmount
			}
			inv.Amount = opt.IntValue()
		case "user":
			raw, _ := opt.Value.(string)
			target, err := parseSnowflake(raw)
			if err != nil {
				return Invocation{}, economy.ErrInvalidTarget
			}
			inv.Target = target
		case "job":
			raw, _ := opt.Value.(string)
			inv.JobID = strings.TrimSpace(raw)
		}
	}
	return inv, nil
}

func parseSnowflake(raw string) (economy.AccountID, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid snowflake %q", raw)
	}
	return economy.AccountID(v), nil
}

// Handler turns invocations into ledger calls and formats the result for chat.
type Handler struct {
	ledger  *economy.Service
	log     *slog.Logger
	now     func() time.Time
	printer *message.Printer
}

func NewHandler(ledger *economy.Service, logger *slog.Logger) *Handler {
	return &Handler{
		ledger:  ledger,
		log:     logger,
		now:     time.Now,
		printer: message.NewPrinter(language.English),
	}
}

func (h *Handler) coins(v int64) string {
	return h.printer.Sprintf("%d", v)
}

func (h *Handler) Handle(ctx context.Context, inv Invocation) Reply {
	content, err := h.run(ctx, inv)
	if err != nil {
		switch economy.Kind(err) {
		case "storage_unavailable", "internal":
			h.log.Error("discord command failed", "command", inv.Command, "user", int64(inv.UserID), "err", err)
		}
		return errorReply(err)
	}
	return Reply{Content: content}
}

func errorReply(err error) Reply {
	if errors.Is(err, errUnknownCommand) {
		return Reply{Content: "Unknown command.", Ephemeral: true}
	}
	return Reply{Content: "❌ " + economy.Message(err), Ephemeral: true}
}

func (h *Handler) run(ctx context.Context, inv Invocation) (string, error) {
	id := inv.UserID
	switch inv.Command {
	case "bal":
		target := id
		if inv.Target != 0 {
			target = inv.Target
		}
		b, err := h.ledger.Balance(ctx, target)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("💰 <@%d>\nCash: %s\nBank: %s\nDebt: %s\nNet worth: %s\nJob: %s",
			int64(target), h.coins(b.Cash), h.coins(b.Bank), h.coins(b.Debt), h.coins(b.NetWorth), b.JobID), nil

	case "work":
		out, err := h.ledger.Work(ctx, id, h.now())
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("💼 You worked as %s and earned **%s**. Cash: %s", out.JobID, h.coins(out.Earnings), h.coins(out.Cash)), nil

	case "slot":
		out, err := h.ledger.PlaySlot(ctx, id, inv.Amount)
		if err != nil {
			return "", err
		}
		reels := make([]string, len(out.Symbols))
		for i, s := range out.Symbols {
			reels[i] = string(s)
		}
		line := "| " + strings.Join(reels, " | ") + " |"
		if out.Payout == 0 {
			return fmt.Sprintf("🎰 %s\nNo match. You lost %s. Cash: %s", line, h.coins(inv.Amount), h.coins(out.Cash)), nil
		}
		return fmt.Sprintf("🎰 %s\nPayout **%s** (net %s). Cash: %s", line, h.coins(out.Payout), h.signed(out.Net), h.coins(out.Cash)), nil

	case "coinflip":
		out, err := h.ledger.FlipCoin(ctx, id, inv.Amount)
		if err != nil {
			return "", err
		}
		if out.Won {
			return fmt.Sprintf("🪙 Heads! You won **%s**. Cash: %s", h.coins(out.Net), h.coins(out.Cash)), nil
		}
		return fmt.Sprintf("🪙 Tails. You lost %s. Cash: %s", h.coins(-out.Net), h.coins(out.Cash)), nil

	case "send":
		if err := h.ledger.Transfer(ctx, id, inv.Target, inv.Amount); err != nil {
			return "", err
		}
		return fmt.Sprintf("💸 Sent **%s** to <@%d>.", h.coins(inv.Amount), int64(inv.Target)), nil

	case "borrow":
		if err := h.ledger.Borrow(ctx, id, inv.Amount); err != nil {
			return "", err
		}
		return fmt.Sprintf("🏦 Borrowed **%s**.", h.coins(inv.Amount)), nil

	case "repay":
		out, err := h.ledger.Repay(ctx, id, inv.Amount)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("💳 Repaid **%s**. Remaining debt: %s", h.coins(out.Repaid), h.coins(out.RemainingDebt)), nil

	case "deposit":
		b, err := h.ledger.Deposit(ctx, id, inv.Amount)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("🏦 Deposited %s. Cash: %s, bank: %s", h.coins(inv.Amount), h.coins(b.Cash), h.coins(b.Bank)), nil

	case "withdraw":
		b, err := h.ledger.Withdraw(ctx, id, inv.Amount)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("🏦 Withdrew %s. Cash: %s, bank: %s", h.coins(inv.Amount), h.coins(b.Cash), h.coins(b.Bank)), nil

	case "ranking":
		rows, err := h.ledger.Leaderboard(ctx, economy.DefaultLeaderboardLimit)
		if err != nil {
			return "", err
		}
		if len(rows) == 0 {
			return "🏆 Nobody has any coins yet.", nil
		}
		var b strings.Builder
		b.WriteString("🏆 **Richest members**")
		for _, row := range rows {
			fmt.Fprintf(&b, "\n**%d.** <@%d>: %s", row.Rank, int64(row.AccountID), h.coins(row.NetWorth))
		}
		return b.String(), nil

	case "info":
		var b strings.Builder
		b.WriteString("📊 **Jobs**")
		for _, j := range h.ledger.Jobs() {
			fmt.Fprintf(&b, "\n`%s` %s: salary %s, x%s, costs %s",
				j.ID, j.Title, h.coins(j.BaseSalary), j.IncomeMultiplier.String(), h.coins(j.PurchaseCost()))
		}
		b.WriteString("\n🎰 Slot: three 7s pay x10, any triple x3, any pair x1.5")
		b.WriteString("\n🪙 Coin flip: heads pays x2")
		return b.String(), nil

	case ShopCommand:
		if err := h.ledger.ChangeJob(ctx, id, inv.JobID); err != nil {
			return "", err
		}
		return fmt.Sprintf("🎉 Congratulations, you now work as **%s**!", inv.JobID), nil
	}
	return "", errUnknownCommand
}

func (h *Handler) signed(v int64) string {
	if v > 0 {
		return "+" + h.coins(v)
	}
	return h.coins(v)
}
