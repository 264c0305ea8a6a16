package discord

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"coffer/internal/economy"
	"coffer/internal/storage/memory"

	"github.com/bwmarrin/discordgo"
)

type fixedRand struct{ v int }

func (r fixedRand) Intn(n int) int { return r.v % n }

func newTestHandler(t *testing.T, rng economy.Rand) *Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := economy.NewService(memory.New(), nil, logger, economy.WithRand(rng))
	h := NewHandler(svc, logger)
	h.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return h
}

func sub(name string, opts ...*discordgo.ApplicationCommandInteractionDataOption) discordgo.ApplicationCommandInteractionData {
	return discordgo.ApplicationCommandInteractionData{
		Name: GroupCommand,
		Options: []*discordgo.ApplicationCommandInteractionDataOption{{
			Name:    name,
			Type:    discordgo.ApplicationCommandOptionSubCommand,
			Options: opts,
		}},
	}
}

func amount(v int64) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: "amount", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(v)}
}

func user(id string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: "user", Type: discordgo.ApplicationCommandOptionUser, Value: id}
}

func TestParseInvocationSubcommand(t *testing.T) {
	inv, err := ParseInvocation(sub("send", user("222"), amount(750)), "111")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if inv.UserID != 111 || inv.Command != "send" || inv.Target != 222 || inv.Amount != 750 {
		t.Fatalf("unexpected invocation: %+v", inv)
	}
}

func TestParseInvocationShop(t *testing.T) {
	data := discordgo.ApplicationCommandInteractionData{
		Name: ShopCommand,
		Options: []*discordgo.ApplicationCommandInteractionDataOption{{
			Name: "job", Type: discordgo.ApplicationCommandOptionString, Value: " clerk ",
		}},
	}
	inv, err := ParseInvocation(data, "5")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if inv.Command != ShopCommand || inv.JobID != "clerk" {
		t.Fatalf("unexpected invocation: %+v", inv)
	}
}

func TestParseInvocationRejectsBadInput(t *testing.T) {
	if _, err := ParseInvocation(sub("bal"), "not-a-number"); err == nil {
		t.Fatalf("expected error for bad caller id")
	}
	if _, err := ParseInvocation(discordgo.ApplicationCommandInteractionData{Name: "other"}, "1"); err != errUnknownCommand {
		t.Fatalf("expected unknown command, got %v", err)
	}
	if _, err := ParseInvocation(sub("send", user("0"), amount(5)), "1"); economy.Kind(err) != "invalid_target" {
		t.Fatalf("expected invalid_target, got %v", err)
	}
}

func TestHandleWorkThenCooldown(t *testing.T) {
	h := newTestHandler(t, fixedRand{v: 0})
	ctx := context.Background()

	r := h.Handle(ctx, Invocation{UserID: 1, Command: "work"})
	if r.Ephemeral || !strings.Contains(r.Content, "earned **500**") {
		t.Fatalf("unexpected work reply: %+v", r)
	}

	r = h.Handle(ctx, Invocation{UserID: 1, Command: "work"})
	if !r.Ephemeral || !strings.Contains(r.Content, "30m 0s") {
		t.Fatalf("expected cooldown reply, got %+v", r)
	}
}

func TestHandleSendAndBalance(t *testing.T) {
	h := newTestHandler(t, fixedRand{v: 0})
	ctx := context.Background()
	if _, err := h.ledger.Credit(ctx, 1, 1_500_000); err != nil {
		t.Fatalf("credit: %v", err)
	}

	r := h.Handle(ctx, Invocation{UserID: 1, Command: "send", Target: 2, Amount: 1_000_000})
	if r.Ephemeral || !strings.Contains(r.Content, "1,000,000") {
		t.Fatalf("unexpected send reply: %+v", r)
	}

	r = h.Handle(ctx, Invocation{UserID: 1, Command: "bal", Target: 2})
	if !strings.Contains(r.Content, "Cash: 1,000,000") {
		t.Fatalf("unexpected balance reply: %q", r.Content)
	}

	r = h.Handle(ctx, Invocation{UserID: 1, Command: "send", Target: 1, Amount: 10})
	if !r.Ephemeral || r.Content != "❌ "+economy.Message(economy.ErrInvalidTarget) {
		t.Fatalf("expected invalid target, got %+v", r)
	}
}

func TestHandleSlotJackpot(t *testing.T) {
	h := newTestHandler(t, fixedRand{v: len(economy.SlotReel) - 1})
	ctx := context.Background()
	if _, err := h.ledger.Credit(ctx, 9, 300); err != nil {
		t.Fatalf("credit: %v", err)
	}
	r := h.Handle(ctx, Invocation{UserID: 9, Command: "slot", Amount: 300})
	if !strings.Contains(r.Content, "Payout **3,000**") || !strings.Contains(r.Content, "+2,700") {
		t.Fatalf("unexpected slot reply: %q", r.Content)
	}
}

func TestHandleBorrowRepayAndErrors(t *testing.T) {
	h := newTestHandler(t, fixedRand{v: 1})
	ctx := context.Background()

	r := h.Handle(ctx, Invocation{UserID: 4, Command: "borrow", Amount: 20_000})
	if !r.Ephemeral || !strings.Contains(r.Content, "10000 more") {
		t.Fatalf("expected debt limit reply, got %+v", r)
	}
	if r := h.Handle(ctx, Invocation{UserID: 4, Command: "borrow", Amount: 4_000}); r.Ephemeral {
		t.Fatalf("borrow failed: %+v", r)
	}
	r = h.Handle(ctx, Invocation{UserID: 4, Command: "repay", Amount: 10_000})
	if !strings.Contains(r.Content, "Repaid **4,000**") || !strings.Contains(r.Content, "Remaining debt: 0") {
		t.Fatalf("unexpected repay reply: %q", r.Content)
	}
	r = h.Handle(ctx, Invocation{UserID: 4, Command: "repay", Amount: 1})
	if r.Content != "❌ "+economy.Message(economy.ErrNoDebt) {
		t.Fatalf("expected no debt, got %q", r.Content)
	}
}

func TestHandleShopRankingAndUnknown(t *testing.T) {
	h := newTestHandler(t, fixedRand{v: 1})
	ctx := context.Background()

	r := h.Handle(ctx, Invocation{UserID: 3, Command: ShopCommand, JobID: "astronaut"})
	if r.Content != "❌ "+economy.Message(economy.ErrUnknownJob) {
		t.Fatalf("expected unknown job, got %q", r.Content)
	}
	if _, err := h.ledger.Credit(ctx, 3, 15_000); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if r := h.Handle(ctx, Invocation{UserID: 3, Command: ShopCommand, JobID: "dishwasher"}); r.Ephemeral {
		t.Fatalf("shop failed: %+v", r)
	}

	r = h.Handle(ctx, Invocation{UserID: 3, Command: "ranking"})
	if !strings.Contains(r.Content, "**1.** <@3>") {
		t.Fatalf("unexpected ranking: %q", r.Content)
	}
	if r := h.Handle(ctx, Invocation{UserID: 3, Command: "dance"}); r.Content != "Unknown command." {
		t.Fatalf("unexpected reply: %q", r.Content)
	}
}

func TestCommandsShopChoices(t *testing.T) {
	cmds := Commands(economy.DefaultCatalog().List())
	if len(cmds) != 2 || cmds[0].Name != GroupCommand || cmds[1].Name != ShopCommand {
		t.Fatalf("unexpected commands: %+v", cmds)
	}
	choices := cmds[1].Options[0].Choices
	for _, c := range choices {
		if c.Value == economy.DefaultJobID {
			t.Fatalf("default job must not be for sale")
		}
	}
	if len(choices) != len(economy.DefaultCatalog().List())-1 {
		t.Fatalf("unexpected choice count %d", len(choices))
	}
}
