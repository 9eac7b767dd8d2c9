package channel

import (
	"context"
	"strings"
	"testing"

	"nft-sage-go/internal/config"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	channelID string
	content   string
}

type fakeSender struct {
	sent   []sentMessage
	typing int
}

func (f *fakeSender) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.sent = append(f.sent, sentMessage{channelID, content})
	return &discordgo.Message{}, nil
}

func (f *fakeSender) ChannelTyping(string, ...discordgo.RequestOption) error {
	f.typing++
	return nil
}

func newMessage(guildID, authorID, content string, mentions ...*discordgo.User) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		ChannelID: "c1",
		GuildID:   guildID,
		Author:    &discordgo.User{ID: authorID},
		Content:   content,
		Mentions:  mentions,
	}}
}

func TestNewDiscordChannel_NoToken(t *testing.T) {
	r, _, _, _ := newTestRouter("!")
	_, err := NewDiscordChannel(config.DiscordConfig{}, r)
	assert.Error(t, err)
}

func TestDiscordChannel_Handle(t *testing.T) {
	r, chat, _, _ := newTestRouter("!")
	d, err := NewDiscordChannel(config.DiscordConfig{Token: "t", Prefix: "!"}, r)
	require.NoError(t, err)
	ctx := context.Background()
	self := &discordgo.User{ID: "bot"}

	tests := []struct {
		name  string
		msg   *discordgo.MessageCreate
		reply string
	}{
		{"direct message", newMessage("", "u1", "floor of azuki?"), "echo: floor of azuki?"},
		{"guild prefix command", newMessage("g1", "u1", "!market"), "market is calm"},
		{"guild mention", newMessage("g1", "u1", "<@bot> trending?", self), "echo: trending?"},
		{"guild chatter ignored", newMessage("g1", "u1", "gm everyone"), ""},
		{"own message ignored", newMessage("", "bot", "hello"), ""},
		{"empty mention ignored", newMessage("g1", "u1", "<@!bot>", self), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{}
			d.handle(ctx, sender, "bot", tt.msg)
			if tt.reply == "" {
				assert.Empty(t, sender.sent)
				return
			}
			require.Len(t, sender.sent, 1)
			assert.Equal(t, sentMessage{"c1", tt.reply}, sender.sent[0])
			assert.Equal(t, 1, sender.typing)
		})
	}
	require.NotEmpty(t, chat.reqs)
	assert.Equal(t, "u1", chat.reqs[0].UserID)
}

func TestDiscordChannel_SplitsLongReply(t *testing.T) {
	r, _, _, _ := newTestRouter("!")
	d, _ := NewDiscordChannel(config.DiscordConfig{Token: "t"}, r)
	sender := &fakeSender{}
	d.handle(context.Background(), sender, "bot", newMessage("", "u1", strings.Repeat("x", discordMaxLen*2)))
	assert.Len(t, sender.sent, 3)
}

func TestDiscordChannel_DispatchAfterStop(t *testing.T) {
	r, _, _, _ := newTestRouter("!")
	d, err := NewDiscordChannel(config.DiscordConfig{Token: "t", Prefix: "!"}, r)
	require.NoError(t, err)
	d.ctx, d.cancel = context.WithCancel(context.Background())

	sender := &fakeSender{}
	d.dispatch(sender, "bot", newMessage("", "u1", "floor of azuki?"))
	require.Len(t, sender.sent, 1)

	require.NoError(t, d.Stop())
	d.dispatch(sender, "bot", newMessage("", "u1", "still there?"))
	assert.Len(t, sender.sent, 1)
	assert.Equal(t, 1, sender.typing)
}
