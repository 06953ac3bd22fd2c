package discord

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stake-plus/landvote/src/governance"
)

const (
	CommandProposals = "proposals"
	CommandTally     = "tally"
)

// Querier is the read side of the controller used by slash commands.
type Querier interface {
	ListProposals(ctx context.Context, f governance.Filter) ([]governance.Proposal, error)
	Tally(ctx context.Context, proposalID string) (governance.TallySnapshot, error)
}

var commandDefinitions = map[string]*discordgo.ApplicationCommand{
	CommandProposals: {
		Name:        CommandProposals,
		Description: "List proposals that are open for voting",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "region",
				Description: "Only show proposals for this region",
				Required:    false,
			},
		},
	},
	CommandTally: {
		Name:        CommandTally,
		Description: "Show the current tally of a proposal",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "proposal",
				Description: "Proposal ID",
				Required:    true,
			},
		},
	},
}

var defaultCommandOrder = []string{CommandProposals, CommandTally}

// RegisterSlashCommands registers the requested slash commands for a guild.
// When no command names are provided, all known commands are registered.
func RegisterSlashCommands(s *discordgo.Session, guildID string, names ...string) error {
	if guildID == "" {
		return fmt.Errorf("discord: guildID is required to register slash commands")
	}
	if len(names) == 0 {
		names = defaultCommandOrder
	}

	var failures []string
	for _, name := range names {
		definition, ok := commandDefinitions[name]
		if !ok {
			log.Printf("discord: unknown slash command %q", name)
			continue
		}
		if _, err := s.ApplicationCommandCreate(s.State.User.ID, guildID, definition); err != nil {
			if isDuplicateCommandError(err) {
				log.Printf("discord: slash command %q already registered", name)
				continue
			}
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			log.Printf("discord: failed to register command %q: %v", name, err)
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("discord: slash command registration errors: %s", strings.Join(failures, "; "))
	}
	return nil
}

func isDuplicateCommandError(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil {
		if strings.Contains(strings.ToLower(restErr.Message.Message), "already exists") {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "50035") && strings.Contains(msg, "already exists")
}

// AnswerCommand renders the reply for a slash command. Unknown commands and
// lookup failures produce a user-facing message rather than an error.
func AnswerCommand(ctx context.Context, q Querier, name string, options map[string]string) string {
	switch name {
	case CommandProposals:
		region := strings.TrimSpace(options["region"])
		list, err := q.ListProposals(ctx, governance.Filter{Status: governance.StatusActive, Region: region})
		if err != nil {
			log.Printf("discord: list proposals: %v", err)
			return "Could not load proposals right now."
		}
		if len(list) == 0 {
			if region != "" {
				return fmt.Sprintf("No proposals are open for voting in **%s**.", region)
			}
			return "No proposals are open for voting."
		}
		var b strings.Builder
		for _, p := range list {
			fmt.Fprintf(&b, "- **%s** (%s) `%s` closes <t:%d:R>\n", p.Title, p.Region, p.ID, p.Deadline.Unix())
		}
		return strings.TrimRight(b.String(), "\n")

	case CommandTally:
		id := strings.TrimSpace(options["proposal"])
		snap, err := q.Tally(ctx, id)
		if errors.Is(err, governance.ErrNotFound) {
			return fmt.Sprintf("Proposal `%s` not found.", id)
		}
		if err != nil {
			log.Printf("discord: tally %s: %v", id, err)
			return "Could not load the tally right now."
		}
		return fmt.Sprintf("`%s` is **%s**: %d for, %d against (%.1f%% support), %d/%d toward quorum, %d eligible.",
			snap.ProposalID, snap.Status, snap.For, snap.Against, snap.ForPercentage, snap.Total, snap.Quorum, snap.EligibleVoters)
	}
	return fmt.Sprintf("Unknown command %q.", name)
}

func commandHandler(q Querier) func(*discordgo.Session, *discordgo.InteractionCreate) {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Type != discordgo.InteractionApplicationCommand {
			return
		}
		data := i.ApplicationCommandData()
		options := make(map[string]string, len(data.Options))
		for _, opt := range data.Options {
			options[opt.Name] = opt.StringValue()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: AnswerCommand(ctx, q, data.Name, options),
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		})
		if err != nil {
			log.Printf("discord: respond to /%s: %v", data.Name, err)
		}
	}
}
