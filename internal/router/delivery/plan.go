package delivery

import (
	"sort"

	"github.com/syntrixbase/topicrouter/internal/core/storage/types"
	"github.com/syntrixbase/topicrouter/internal/core/transport"
)

// Target is one channel an endpoint will deliver to.
type Target struct {
	Platform  string
	ChannelID string
	Endpoint  transport.Endpoint
}

// Plan groups targets by platform. Within a group, order is delivery order.
type Plan map[string][]Target

// Len returns the number of targets across all groups.
func (p Plan) Len() int {
	n := 0
	for _, targets := range p {
		n += len(targets)
	}
	return n
}

// Platforms returns the platforms of the plan, sorted.
func (p Plan) Platforms() []string {
	out := make([]string, 0, len(p))
	for platform := range p {
		out = append(out, platform)
	}
	sort.Strings(out)
	return out
}

type channelKey struct {
	platform  string
	channelID string
}

// BuildPlan pairs every matched subscription with the live endpoints of its
// platform. It never fails; an empty plan means nothing could be paired.
func BuildPlan(matched []*types.Subscription, endpoints []transport.Endpoint, cfg Config) Plan {
	plan := make(Plan)
	seen := make(map[channelKey]struct{})

	for _, sub := range matched {
		for _, ep := range endpoints {
			if ep.Platform() != sub.Platform {
				continue
			}
			if !cfg.IgnoreSelfIDWhenSending && ep.SelfID() != sub.SelfID {
				continue
			}
			key := channelKey{platform: sub.Platform, channelID: sub.ChannelID}
			if cfg.IgnoreTopicMultipleMatches {
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
			}
			plan[sub.Platform] = append(plan[sub.Platform], Target{
				Platform:  sub.Platform,
				ChannelID: sub.ChannelID,
				Endpoint:  ep,
			})
		}
	}
	return plan
}
