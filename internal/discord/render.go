package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"

	"gitlab.bluewillows.net/root/dnsbot/internal/bot"
)

func responseData(m bot.Message) *discordgo.InteractionResponseData {
	data := &discordgo.InteractionResponseData{
		Content:    m.Content,
		Embeds:     embeds(m.Embeds),
		Components: components(m.Components),
	}
	if m.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return data
}

// webhookEdit replaces the whole message body, clearing embeds and
// components that m does not carry.
func webhookEdit(m bot.Message) *discordgo.WebhookEdit {
	content := m.Content
	e := embeds(m.Embeds)
	c := components(m.Components)
	return &discordgo.WebhookEdit{
		Content:    &content,
		Embeds:     &e,
		Components: &c,
	}
}

func embeds(in []bot.Embed) []*discordgo.MessageEmbed {
	out := make([]*discordgo.MessageEmbed, 0, len(in))
	for _, e := range in {
		out = append(out, embed(e))
	}
	return out
}

func embed(e bot.Embed) *discordgo.MessageEmbed {
	me := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	if e.Footer != "" {
		me.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	if !e.Timestamp.IsZero() {
		me.Timestamp = e.Timestamp.UTC().Format(time.RFC3339)
	}
	for _, f := range e.Fields {
		me.Fields = append(me.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return me
}

func components(rows []bot.ActionRow) []discordgo.MessageComponent {
	out := make([]discordgo.MessageComponent, 0, len(rows))
	for _, row := range rows {
		var items []discordgo.MessageComponent
		if row.Select != nil {
			opts := make([]discordgo.SelectMenuOption, 0, len(row.Select.Options))
			for _, o := range row.Select.Options {
				opts = append(opts, discordgo.SelectMenuOption{Label: o.Label, Value: o.Value, Description: o.Description})
			}
			items = append(items, discordgo.SelectMenu{
				MenuType:    discordgo.StringSelectMenu,
				CustomID:    row.Select.CustomID,
				Placeholder: row.Select.Placeholder,
				Options:     opts,
			})
		}
		for _, b := range row.Buttons {
			items = append(items, discordgo.Button{
				CustomID: b.CustomID,
				Label:    b.Label,
				Style:    buttonStyle(b.Style),
				Disabled: b.Disabled,
			})
		}
		out = append(out, discordgo.ActionsRow{Components: items})
	}
	return out
}

func buttonStyle(s bot.ButtonStyle) discordgo.ButtonStyle {
	switch s {
	case bot.ButtonDanger:
		return discordgo.DangerButton
	case bot.ButtonSecondary:
		return discordgo.SecondaryButton
	default:
		return discordgo.PrimaryButton
	}
}

func applicationCommands(specs []bot.CommandSpec) []*discordgo.ApplicationCommand {
	out := make([]*discordgo.ApplicationCommand, 0, len(specs))
	for _, spec := range specs {
		cmd := &discordgo.ApplicationCommand{
			Name:        spec.Name,
			Description: spec.Description,
		}
		for _, o := range spec.Options {
			opt := &discordgo.ApplicationCommandOption{
				Type:        optionType(o.Type),
				Name:        o.Name,
				Description: o.Description,
				Required:    o.Required,
			}
			for _, c := range o.Choices {
				opt.Choices = append(opt.Choices, &discordgo.ApplicationCommandOptionChoice{Name: c.Name, Value: c.Value})
			}
			cmd.Options = append(cmd.Options, opt)
		}
		out = append(out, cmd)
	}
	return out
}

func optionType(t bot.OptionType) discordgo.ApplicationCommandOptionType {
	switch t {
	case bot.OptionInteger:
		return discordgo.ApplicationCommandOptionInteger
	case bot.OptionBoolean:
		return discordgo.ApplicationCommandOptionBoolean
	default:
		return discordgo.ApplicationCommandOptionString
	}
}
