package channels

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

// StaticDirectory resolves channels from a fixed, configured list.
type StaticDirectory struct {
	channels []domain.ChannelRef
}

func NewStaticDirectory(channels []domain.ChannelRef) (*StaticDirectory, error) {
	seen := make(map[string]struct{}, len(channels))
	normalized := make([]domain.ChannelRef, 0, len(channels))

	for _, channel := range channels {
		if channel.ID == "" {
			return nil, fmt.Errorf("channel id is required")
		}

		if _, ok := seen[channel.ID]; ok {
			return nil, fmt.Errorf("duplicate channel id %q", channel.ID)
		}
		seen[channel.ID] = struct{}{}

		channel.Type = domain.ChannelType(strings.ToLower(string(channel.Type)))
		normalized = append(normalized, channel)
	}

	return &StaticDirectory{channels: normalized}, nil
}

// ResolveChannels returns every configured channel whose id or type was asked
// for, in configuration order. Unknown ids are skipped.
func (d *StaticDirectory) ResolveChannels(ctx context.Context, ids []string, types []domain.ChannelType) ([]domain.ChannelRef, error) {
	wantedIDs := make(map[string]bool, len(ids))
	for _, id := range ids {
		wantedIDs[id] = false
	}

	wantedTypes := make(map[domain.ChannelType]struct{}, len(types))
	for _, channelType := range types {
		wantedTypes[channelType] = struct{}{}
	}

	var resolved []domain.ChannelRef
	for _, channel := range d.channels {
		_, byID := wantedIDs[channel.ID]
		_, byType := wantedTypes[channel.Type]

		if byID {
			wantedIDs[channel.ID] = true
		}

		if byID || byType {
			resolved = append(resolved, channel)
		}
	}

	for id, found := range wantedIDs {
		if !found {
			log.Warn().Str("channel_id", id).Msg("Requested channel is not configured")
		}
	}

	return resolved, nil
}

func (d *StaticDirectory) Channels() []domain.ChannelRef {
	out := make([]domain.ChannelRef, len(d.channels))
	copy(out, d.channels)
	return out
}
