package commands

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/loopmsg/loopconsole/internal/client"
	"github.com/loopmsg/loopconsole/internal/config"
	"github.com/loopmsg/loopconsole/internal/coordinator"
	"github.com/loopmsg/loopconsole/internal/observability"
)

// loadConfig loads .loopconsole, applies environment overrides, and validates.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no %s found - run 'loopconsole init' first", config.FileName)
		}
		return nil, err
	}

	if url := strings.TrimSpace(os.Getenv("LOOP_API_URL")); url != "" {
		cfg.APIURL = url
	}
	if token := strings.TrimSpace(os.Getenv("LOOP_OPERATOR_TOKEN")); token != "" {
		cfg.OperatorToken = token
	}
	if profile := strings.TrimSpace(os.Getenv("LOOP_BOT_PROFILE_ID")); profile != "" {
		cfg.BotProfileID = profile
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newAPIClient(cfg *config.Config) *client.Client {
	return client.New(cfg.APIURL)
}

// newCoordinator builds a coordinator from the loaded configuration.
func newCoordinator(cfg *config.Config) (*coordinator.Coordinator, error) {
	participants := make([]coordinator.Participant, 0, len(cfg.Participants))
	keys := make([]string, 0, len(cfg.Participants))
	for key := range cfg.Participants {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		p := cfg.Participants[key]
		participants = append(participants, coordinator.Participant{
			Identity: coordinator.Identity{
				Key:       key,
				ProfileID: p.ProfileID,
				Token:     p.Token,
				Label:     p.Label,
			},
			ThreadID: p.ThreadID,
		})
	}

	return coordinator.New(newAPIClient(cfg), coordinator.Config{
		ThreadID:            cfg.ThreadID,
		LoopID:              cfg.LoopID,
		Limit:               cfg.EffectiveLimit(),
		PreviewOnSend:       cfg.PreviewOnSendEnabled(),
		PreviewAfterPublish: cfg.PreviewAfterPublishEnabled(),
		LegacyAuth:          cfg.LegacyAuthEnabled(),
		OperatorToken:       cfg.OperatorToken,
		BotProfileID:        cfg.BotProfileID,
		Participants:        participants,
	}, coordinator.WithLogger(observability.Logger()))
}

// participantCredential builds the API credential for a configured participant.
func participantCredential(cfg *config.Config, key string) (config.Participant, client.Credential, error) {
	p, ok := cfg.Participants[key]
	if !ok {
		return config.Participant{}, client.Credential{}, fmt.Errorf("unknown participant %q (configured: %s)", key, strings.Join(participantKeys(cfg), ", "))
	}
	if p.Token != "" {
		return p, client.Credential{Token: p.Token, ProfileID: p.ProfileID}, nil
	}
	if cfg.LegacyAuthEnabled() {
		return p, client.Credential{ProfileID: p.ProfileID}, nil
	}
	return config.Participant{}, client.Credential{}, fmt.Errorf("participant %q has no token and legacy auth is disabled", key)
}

// operatorCredential builds the operator-level credential, if configured.
func operatorCredential(cfg *config.Config) (client.Credential, error) {
	if cfg.OperatorToken != "" {
		return client.Credential{Token: cfg.OperatorToken, ProfileID: cfg.BotProfileID}, nil
	}
	if cfg.LegacyAuthEnabled() && cfg.BotProfileID != "" {
		return client.Credential{ProfileID: cfg.BotProfileID}, nil
	}
	return client.Credential{}, fmt.Errorf("no operator credential configured (set operator_token or bot_profile_id)")
}

func participantKeys(cfg *config.Config) []string {
	keys := make([]string, 0, len(cfg.Participants))
	for key := range cfg.Participants {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// labelFor returns the display name for a participant key.
func labelFor(cfg *config.Config, key string) string {
	if p, ok := cfg.Participants[key]; ok && p.Label != "" {
		return p.Label
	}
	return key
}
