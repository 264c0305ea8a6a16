package discord

import (
	"fmt"

	"coffer/internal/economy"

	"github.com/bwmarrin/discordgo"
)

const (
	GroupCommand = "s"
	ShopCommand  = "shop"
)

var minAmount = 1.0

func amountOption(desc string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        "amount",
		Description: desc,
		Required:    true,
		MinValue:    &minAmount,
	}
}

func subcommand(name, desc string, opts ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        name,
		Description: desc,
		Options:     opts,
	}
}

// Commands returns the slash commands the bot registers. The shop choices come from jobs.
func Commands(jobs []economy.JobDefinition) []*discordgo.ApplicationCommand {
	var choices []*discordgo.ApplicationCommandOptionChoice
	for _, j := range jobs {
		if j.ID == economy.DefaultJobID {
			continue
		}
		// Discord caps choices at 25.
		if len(choices) == 25 {
			break
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  fmt.Sprintf("%s (%d)", j.Title, j.PurchaseCost()),
			Value: j.ID,
		})
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:        GroupCommand,
			Description: "Economy commands",
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("bal", "Show balances", &discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Whose balance to show",
				}),
				subcommand("work", "Work a shift (30 minute cooldown)"),
				subcommand("slot", "Spin the slot machine", amountOption("Stake")),
				subcommand("coinflip", "Bet on a coin flip", amountOption("Stake")),
				subcommand("send", "Send cash to another member",
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionUser,
						Name:        "user",
						Description: "Recipient",
						Required:    true,
					},
					amountOption("Amount to send"),
				),
				subcommand("borrow", "Take a loan", amountOption("Amount to borrow")),
				subcommand("repay", "Pay down your debt", amountOption("Amount to repay")),
				subcommand("deposit", "Move cash into the bank", amountOption("Amount to deposit")),
				subcommand("withdraw", "Move bank funds to cash", amountOption("Amount to withdraw")),
				subcommand("ranking", "Richest members"),
				subcommand("info", "Jobs and game payouts"),
			},
		},
		{
			Name:        ShopCommand,
			Description: "Buy a new job",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "job",
				Description: "Job to buy",
				Required:    true,
				Choices:     choices,
			}},
		},
	}
}
