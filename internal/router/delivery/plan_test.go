package delivery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/syntrixbase/topicrouter/internal/core/storage/types"
	"github.com/syntrixbase/topicrouter/internal/core/transport"
	"github.com/syntrixbase/topicrouter/internal/core/transport/memory"
)

func sub(platform, selfID, channel, key string) *types.Subscription {
	return &types.Subscription{Platform: platform, SelfID: selfID, ChannelID: channel, BindingKey: key, Enabled: true}
}

func channels(targets []Target) []string {
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		out = append(out, t.ChannelID)
	}
	return out
}

func TestBuildPlan_DedupSameChannel(t *testing.T) {
	ep := memory.NewEndpoint("x", "bot1")
	matched := []*types.Subscription{
		sub("x", "", "c1", "order.#"),
		sub("x", "", "c1", "order.*.eu"),
	}

	cfg := DefaultConfig()
	plan := BuildPlan(matched, []transport.Endpoint{ep}, cfg)
	assert.Equal(t, 1, plan.Len())
	assert.Equal(t, []string{"c1"}, channels(plan["x"]))

	cfg.IgnoreTopicMultipleMatches = false
	plan = BuildPlan(matched, []transport.Endpoint{ep}, cfg)
	assert.Equal(t, 2, plan.Len())
	assert.Equal(t, []string{"c1", "c1"}, channels(plan["x"]))
}

func TestBuildPlan_GroupsByPlatform(t *testing.T) {
	x := memory.NewEndpoint("x", "bot1")
	y := memory.NewEndpoint("y", "bot2")
	matched := []*types.Subscription{
		sub("x", "", "c1", "a"),
		sub("y", "", "c2", "a"),
		sub("x", "", "c3", "a"),
		sub("z", "", "c4", "a"),
	}

	plan := BuildPlan(matched, []transport.Endpoint{x, y}, DefaultConfig())
	assert.Equal(t, []string{"x", "y"}, plan.Platforms())
	assert.Equal(t, []string{"c1", "c3"}, channels(plan["x"]))
	assert.Equal(t, []string{"c2"}, channels(plan["y"]))
	assert.Same(t, x, plan["x"][0].Endpoint)
}

func TestBuildPlan_SelfIDFilter(t *testing.T) {
	bot1 := memory.NewEndpoint("x", "bot1")
	bot2 := memory.NewEndpoint("x", "bot2")
	matched := []*types.Subscription{sub("x", "bot2", "c1", "a")}
	endpoints := []transport.Endpoint{bot1, bot2}

	cfg := DefaultConfig()
	plan := BuildPlan(matched, endpoints, cfg)
	assert.Len(t, plan["x"], 1, "dedup keeps the first endpoint")
	assert.Same(t, bot1, plan["x"][0].Endpoint)

	cfg.IgnoreSelfIDWhenSending = false
	plan = BuildPlan(matched, endpoints, cfg)
	assert.Len(t, plan["x"], 1)
	assert.Same(t, bot2, plan["x"][0].Endpoint)

	cfg.IgnoreTopicMultipleMatches = false
	cfg.IgnoreSelfIDWhenSending = true
	plan = BuildPlan(matched, endpoints, cfg)
	assert.Len(t, plan["x"], 2, "every endpoint of the platform without dedup")
}

func TestBuildPlan_Empty(t *testing.T) {
	plan := BuildPlan(nil, []transport.Endpoint{memory.NewEndpoint("x", "bot1")}, DefaultConfig())
	assert.Empty(t, plan)
	assert.Zero(t, plan.Len())

	plan = BuildPlan([]*types.Subscription{sub("x", "", "c1", "a")}, nil, DefaultConfig())
	assert.Empty(t, plan)
	assert.Empty(t, plan.Platforms())
}
