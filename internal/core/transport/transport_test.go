package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubEndpoint struct {
	platform, selfID string
}

func (s stubEndpoint) Platform() string { return s.platform }
func (s stubEndpoint) SelfID() string   { return s.selfID }
func (s stubEndpoint) Send(context.Context, string, Message) ([]string, error) {
	return nil, nil
}
func (s stubEndpoint) Delete(context.Context, string, string) error { return nil }

func TestLiveSet_AddRemove(t *testing.T) {
	a := stubEndpoint{"x", "bot1"}
	b := stubEndpoint{"y", "bot2"}
	c := stubEndpoint{"x", "bot3"}

	s := NewLiveSet(a, b)
	s.Add(c)
	assert.Equal(t, []Endpoint{a, b, c}, s.Endpoints())
	assert.Equal(t, []string{"x", "y"}, s.Platforms())

	assert.True(t, s.Remove("y", "bot2"))
	assert.False(t, s.Remove("y", "bot2"))
	assert.Equal(t, []Endpoint{a, c}, s.Endpoints())
	assert.Equal(t, []string{"x"}, s.Platforms())
}

func TestLiveSet_AddReplaces(t *testing.T) {
	s := NewLiveSet(stubEndpoint{"x", "bot1"}, stubEndpoint{"x", "bot2"})
	replacement := stubEndpoint{"x", "bot1"}
	s.Add(replacement)

	eps := s.Endpoints()
	assert.Len(t, eps, 2)
	assert.Equal(t, "bot1", eps[0].SelfID())
}

func TestLiveSet_Empty(t *testing.T) {
	s := NewLiveSet()
	assert.Empty(t, s.Endpoints())
	assert.Empty(t, s.Platforms())
}
