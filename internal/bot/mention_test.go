package bot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		text  string
		botID string
		want  string
	}{
		{"plain", "  hello  ", "UBOT", "hello"},
		{"self mention", "<@UBOT> karma tacos", "UBOT", "karma tacos"},
		{"self mention with label", "<@UBOT|lullabot> uptime", "UBOT", "uptime"},
		{"only one stripped", "<@UBOT> <@UBOT> hi", "UBOT", "<@UBOT> hi"},
		{"other user kept", "<@U123>++", "UBOT", "<@U123>++"},
		{"unknown bot strips any", "<@UXYZ> botsnack", "", "botsnack"},
		{"only mention", "<@UBOT>", "UBOT", ""},
		{"mention not leading", "thanks <@UBOT>", "UBOT", "thanks <@UBOT>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Normalize(tt.text, tt.botID))
		})
	}
}

func TestMentionedUserID(t *testing.T) {
	t.Parallel()

	id, ok := MentionedUserID("thanks <@U12345>!")
	assert.True(t, ok)
	assert.Equal(t, "U12345", id)

	_, ok = MentionedUserID("<@B12345>")
	assert.False(t, ok, "only U and W ids are users")

	assert.True(t, IsRawUserID("W0ABC1"))
	assert.False(t, IsRawUserID("u0abc1"))
}

type stubDirectory map[string]*User

func (s stubDirectory) LookupUser(_ context.Context, id string) (*User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, assert.AnError
}

func TestResolveMentionedUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := stubDirectory{"U1": {ID: "U1", RealName: "Ada Lovelace"}}

	u := ResolveMentionedUser(ctx, dir, "<@U1>")
	if assert.NotNil(t, u) {
		assert.Equal(t, "Ada Lovelace", u.Label("<@U1>"))
	}
	assert.Nil(t, ResolveMentionedUser(ctx, dir, "<@U2>"), "lookup failure is a miss")
	assert.Nil(t, ResolveMentionedUser(ctx, dir, "tacos"))
	assert.Nil(t, ResolveMentionedUser(ctx, nil, "<@U1>"))
}

func TestUserLabel(t *testing.T) {
	t.Parallel()

	var nilUser *User
	assert.Equal(t, "raw", nilUser.Label("raw"))
	assert.Equal(t, "ada", (&User{DisplayName: "ada"}).Label("raw"))
	assert.Equal(t, "raw", (&User{ID: "U1"}).Label("raw"))
}
