// Package discord announces proposal activity in a Discord channel.
package discord

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stake-plus/landvote/src/governance"
	"github.com/stake-plus/landvote/src/services/core"
)

var (
	_ core.Module          = (*Notifier)(nil)
	_ governance.Publisher = (*Notifier)(nil)
)

const queueSize = 128

type embedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Notifier posts an embed when a proposal opens for voting and when it
// closes. Publish only queues; a worker does the Discord calls so command
// handling never waits on the network.
type Notifier struct {
	session   *discordgo.Session
	sender    embedSender
	channelID string
	guildID   string
	querier   Querier

	queue  chan governance.Event
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNotifier returns a nil Notifier when token or channel are unset; callers
// skip registering it.
func NewNotifier(token, channelID string) (*Notifier, error) {
	if token == "" || channelID == "" {
		return nil, nil
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds
	n := newNotifier(session, channelID)
	n.session = session
	return n, nil
}

func newNotifier(sender embedSender, channelID string) *Notifier {
	return &Notifier{sender: sender, channelID: channelID, queue: make(chan governance.Event, queueSize)}
}

// EnableCommands registers the read-only slash commands in guildID once the
// session opens. Must be called before Start.
func (n *Notifier) EnableCommands(guildID string, q Querier) {
	n.guildID = guildID
	n.querier = q
}

func (n *Notifier) Name() string { return "discord" }

func (n *Notifier) Start(ctx context.Context) error {
	if n.session != nil {
		if n.guildID != "" && n.querier != nil {
			n.session.AddHandler(commandHandler(n.querier))
		}
		if err := n.session.Open(); err != nil {
			return fmt.Errorf("discord: open: %w", err)
		}
		if n.guildID != "" && n.querier != nil {
			if err := RegisterSlashCommands(n.session, n.guildID); err != nil {
				log.Printf("%v", err)
			}
		}
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	n.cancel = cancel
	n.wg.Add(1)
	go n.run(runCtx)
	return nil
}

func (n *Notifier) Stop(context.Context) {
	if n.cancel != nil {
		n.cancel()
	}
	n.wg.Wait()
	if n.session != nil {
		n.session.Close()
	}
}

func (n *Notifier) Publish(_ context.Context, ev governance.Event) error {
	if _, ok := BuildEmbed(ev); !ok {
		return nil
	}
	select {
	case n.queue <- ev:
		return nil
	default:
		return fmt.Errorf("discord: queue full, dropping %s for %s", ev.Kind, ev.ProposalID)
	}
}

func (n *Notifier) run(ctx context.Context) {
	defer n.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-n.queue:
			embed, _ := BuildEmbed(ev)
			if _, err := n.sender.ChannelMessageSendEmbed(n.channelID, embed); err != nil {
				log.Printf("discord: send %s for %s: %v", ev.Kind, ev.ProposalID, err)
			}
		}
	}
}

// BuildEmbed renders the announcement for ev. Only activation and closing are
// announced.
func BuildEmbed(ev governance.Event) (*discordgo.MessageEmbed, bool) {
	embed := &discordgo.MessageEmbed{
		Title:     ev.Title,
		Timestamp: ev.At.Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("LandVote | %s | %s", ev.Region, ev.ProposalID),
		},
	}
	switch ev.Kind {
	case governance.EventProposalActivated:
		embed.Color = 0x0099ff
		embed.Description = fmt.Sprintf("Voting is open for landowners in **%s**.", ev.Region)
		embed.Fields = []*discordgo.MessageEmbedField{
			{Name: "Closes", Value: fmt.Sprintf("<t:%d:F>", ev.Deadline.Unix()), Inline: true},
			{Name: "Approved by", Value: formatAddress(ev.Actor), Inline: true},
		}
	case governance.EventProposalClosed:
		embed.Color = outcomeColor(ev.Status)
		embed.Description = fmt.Sprintf("Voting has closed: **%s**.", ev.Status)
		if ev.Tally != nil {
			embed.Fields = []*discordgo.MessageEmbedField{
				{Name: "For", Value: fmt.Sprint(ev.Tally.For), Inline: true},
				{Name: "Against", Value: fmt.Sprint(ev.Tally.Against), Inline: true},
				{Name: "Support", Value: fmt.Sprintf("%.1f%%", ev.Tally.ForPercentage), Inline: true},
				{Name: "Quorum", Value: fmt.Sprintf("%d/%d", ev.Tally.Total, ev.Tally.Quorum), Inline: true},
			}
		}
	default:
		return nil, false
	}
	return embed, true
}

func outcomeColor(s governance.Status) int {
	switch s {
	case governance.StatusPassed:
		return 0x2ecc71
	case governance.StatusRejected:
		return 0xe74c3c
	default:
		return 0x95a5a6
	}
}

func formatAddress(addr string) string {
	if len(addr) > 16 {
		return addr[:8] + "..." + addr[len(addr)-8:]
	}
	return addr
}
