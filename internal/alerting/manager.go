// Package alerting pushes webhook notifications for top-scored opportunities
// after each completed scan.
package alerting

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/options-edge-scanner/internal/config"
	"github.com/options-edge-scanner/internal/scan"
)

type Manager struct {
	config        config.AlertingConfig
	resultCh      <-chan scan.Result
	slackClient   *SlackClient
	discordClient *DiscordClient
	cooldown      map[string]time.Time
	mu            sync.Mutex
}

func NewManager(cfg config.AlertingConfig, resultCh <-chan scan.Result) *Manager {
	var slackClient *SlackClient
	var discordClient *DiscordClient

	if cfg.SlackWebhookURL != "" {
		slackClient = NewSlackClient(cfg.SlackWebhookURL)
	}
	if cfg.DiscordWebhookURL != "" {
		discordClient = NewDiscordClient(cfg.DiscordWebhookURL)
	}

	return &Manager{
		config:        cfg,
		resultCh:      resultCh,
		slackClient:   slackClient,
		discordClient: discordClient,
		cooldown:      make(map[string]time.Time),
	}
}

func (m *Manager) Run(ctx context.Context) error {
	if !m.config.Enabled {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case result := <-m.resultCh:
			m.handleResult(&result)
		}
	}
}

func (m *Manager) handleResult(result *scan.Result) {
	// Synthetic fallback data is for the UI only, never for alerts.
	if result.Synthetic {
		return
	}

	picks := m.alertable(result.Tiers.High)
	if len(picks) == 0 {
		return
	}

	message := m.formatDigest(result, picks)

	if m.slackClient != nil {
		go func() {
			if err := m.slackClient.Send(message); err != nil {
				log.Warn().Err(err).Msg("slack alert failed")
			}
		}()
	}
	if m.discordClient != nil {
		go func() {
			if err := m.discordClient.Send(message); err != nil {
				log.Warn().Err(err).Msg("discord alert failed")
			}
		}()
	}
}

// alertable filters the high tier by score floor and per-structure cooldown.
func (m *Manager) alertable(high []scan.Opportunity) []scan.Opportunity {
	cooldownWindow := time.Duration(m.config.CooldownSecs) * time.Second

	m.mu.Lock()
	defer m.mu.Unlock()

	var picks []scan.Opportunity
	for _, opp := range high {
		if opp.Score < m.config.MinScore {
			continue
		}
		key := opp.Symbol + "/" + opp.StrategyName
		if last, seen := m.cooldown[key]; seen && time.Since(last) < cooldownWindow {
			continue
		}
		m.cooldown[key] = time.Now()
		picks = append(picks, opp)
	}
	return picks
}

func (m *Manager) formatDigest(result *scan.Result, picks []scan.Opportunity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎯 **%d high-probability setups** (%d total this scan)\n", len(picks), result.Tiers.Total())

	for _, opp := range picks {
		fmt.Fprintf(&b, "• %s %s exp %s — score %d, prob %d%%, reward/risk %s, max loss %s\n",
			opp.Symbol,
			opp.StrategyName,
			opp.Expiration.Format("Jan 2"),
			opp.Score,
			opp.Probability,
			opp.RewardRisk,
			opp.MaxLoss,
		)
	}
	return b.String()
}
