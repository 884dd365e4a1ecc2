package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		APIURL:       "https://loop-api.example.com",
		LoopID:       "11111111-2222-3333-4444-555555555555",
		ThreadID:     "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee",
		BotProfileID: "99999999-8888-7777-6666-555555555555",
		Participants: map[string]Participant{
			"a": {ProfileID: "aaaaaaaa-1111-2222-3333-444444444444", Label: "Anna"},
			"b": {ProfileID: "bbbbbbbb-1111-2222-3333-444444444444"},
		},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing api_url", func(c *Config) { c.APIURL = "" }, "api_url is required"},
		{"bad api_url", func(c *Config) { c.APIURL = "ftp://nope" }, "api_url must be a valid HTTP(S) URL"},
		{"missing thread_id", func(c *Config) { c.ThreadID = "" }, "thread_id is required"},
		{"bad thread_id", func(c *Config) { c.ThreadID = "not-a-uuid" }, "thread_id must be a valid UUID"},
		{"bad loop_id", func(c *Config) { c.LoopID = "nope" }, "loop_id must be a valid UUID"},
		{"bad bot profile", func(c *Config) { c.BotProfileID = "nope" }, "bot_profile_id must be a valid UUID"},
		{"limit out of range", func(c *Config) { c.Limit = 200 }, "limit must be between 1 and 100"},
		{
			"participant without profile",
			func(c *Config) { c.Participants["a"] = Participant{} },
			`participant "a": profile_id is required`,
		},
		{
			"participant bad profile",
			func(c *Config) { c.Participants["a"] = Participant{ProfileID: "nope"} },
			`participant "a": profile_id must be a valid UUID`,
		},
		{
			"participant bad thread override",
			func(c *Config) {
				c.Participants["a"] = Participant{
					ProfileID: "aaaaaaaa-1111-2222-3333-444444444444",
					ThreadID:  "nope",
				}
			},
			`participant "a": thread_id must be a valid UUID`,
		},
		{
			"bad participant key",
			func(c *Config) { c.Participants["-bad"] = Participant{ProfileID: "aaaaaaaa-1111-2222-3333-444444444444"} },
			`participant key "-bad"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDefaults(t *testing.T) {
	cfg := &Config{}
	assert.True(t, cfg.PreviewOnSendEnabled())
	assert.False(t, cfg.PreviewAfterPublishEnabled())
	assert.True(t, cfg.LegacyAuthEnabled())
	assert.Equal(t, DefaultLimit, cfg.EffectiveLimit())

	off := false
	on := true
	cfg.PreviewOnSend = &off
	cfg.PreviewAfterPublish = &on
	cfg.LegacyAuth = &off
	cfg.Limit = 25
	assert.False(t, cfg.PreviewOnSendEnabled())
	assert.True(t, cfg.PreviewAfterPublishEnabled())
	assert.False(t, cfg.LegacyAuthEnabled())
	assert.Equal(t, 25, cfg.EffectiveLimit())
}

func TestThreadFor(t *testing.T) {
	cfg := validConfig()
	override := "cccccccc-1111-2222-3333-444444444444"
	p := cfg.Participants["b"]
	p.ThreadID = override
	cfg.Participants["b"] = p

	// Override wins; everyone else (including unknown keys) gets the shared thread.
	assert.Equal(t, override, cfg.ThreadFor("b"))
	assert.Equal(t, cfg.ThreadID, cfg.ThreadFor("a"))
	assert.Equal(t, cfg.ThreadID, cfg.ThreadFor("nobody"))
}

func TestSaveLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	SetPath(path)
	defer SetPath("")

	cfg := validConfig()
	cfg.OperatorToken = "op-token"
	require.NoError(t, cfg.Save())

	// Saved with restrictive permissions and the do-not-commit header.
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "DO NOT COMMIT")

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, cfg.APIURL, loaded.APIURL)
	assert.Equal(t, cfg.OperatorToken, loaded.OperatorToken)
	assert.Equal(t, cfg.Participants["a"].Label, loaded.Participants["a"].Label)
}

func TestLoad_NotExist(t *testing.T) {
	SetPath(filepath.Join(t.TempDir(), FileName))
	defer SetPath("")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}
