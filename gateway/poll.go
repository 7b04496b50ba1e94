package gateway

import (
	"context"
	"strconv"
	"strings"

	"github.com/opsmind/pulseguard/core"
	"github.com/opsmind/pulseguard/notifier"
)

// UpdatesNotifier is the subset of notifier.Client/ResilientClient the poll
// loop needs: fetch new messenger updates and answer them.
type UpdatesNotifier interface {
	Notifier
	GetUpdates(ctx context.Context, offset int64) ([]notifier.Update, error)
}

// PollLoop maintains the monotonic last_update_id and turns inbound
// messenger text into Commands.Dispatch calls. ActionStop/Restart/Reload
// results are surfaced to the caller through onAction since the poll loop
// has no business calling os.Exit itself.
type PollLoop struct {
	cfg      *core.Config
	client   UpdatesNotifier
	commands *Commands
	onAction func(ProcessAction)
}

// NewPollLoop wires a PollLoop. onAction may be nil, in which case
// lifecycle-affecting commands are dispatched and acknowledged but have no
// further effect.
func NewPollLoop(cfg *core.Config, client UpdatesNotifier, commands *Commands, onAction func(ProcessAction)) *PollLoop {
	return &PollLoop{cfg: cfg, client: client, commands: commands, onAction: onAction}
}

// Run polls getUpdates until ctx is cancelled, dispatching each message
// that parses as a command.
func (p *PollLoop) Run(ctx context.Context) {
	var offset int64
	for ctx.Err() == nil {
		updates, err := p.client.GetUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			p.handle(ctx, u)
		}
	}
}

func (p *PollLoop) handle(ctx context.Context, u notifier.Update) {
	if u.Message == nil || !strings.HasPrefix(strings.TrimSpace(u.Message.Text), "/") {
		return
	}

	fields := strings.Fields(u.Message.Text)
	name, args := fields[0], fields[1:]

	from := ""
	if u.Message.From != nil {
		from = u.Message.From.Username
	}

	in := CommandInput{
		Name:    name,
		Args:    args,
		From:    from,
		IsAdmin: p.isAdmin(from),
	}

	result := p.commands.Dispatch(in)
	if result.Reply != "" {
		chatID := strconv.FormatInt(u.Message.Chat.ID, 10)
		_ = p.client.SendMessage(ctx, chatID, result.Reply)
	}

	if result.Action != ActionNone && p.onAction != nil {
		p.onAction(result.Action)
	}
}

func (p *PollLoop) isAdmin(username string) bool {
	p.cfg.RLock()
	defer p.cfg.RUnlock()

	if len(p.cfg.Telegram.AdminUsers) == 0 {
		return true
	}
	trimmed := strings.TrimPrefix(username, "@")
	for _, admin := range p.cfg.Telegram.AdminUsers {
		if strings.TrimPrefix(admin, "@") == trimmed {
			return true
		}
	}
	return false
}
