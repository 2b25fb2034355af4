package di

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type greeter struct{ name string }

func TestToken_LazySingleton(t *testing.T) {
	c := NewContainer()
	c.Register("name", "chainkit")

	builds := 0
	tok := NewToken[*greeter]("greeter")
	RegisterToken(c, tok, func(sr ServiceRegistry) *greeter {
		builds++
		return &greeter{name: sr.Get("name").(string)}
	})

	assert.Equal(t, 0, builds)
	g1 := GetToken(c, tok)
	g2 := GetToken(c, tok)
	assert.Same(t, g1, g2)
	assert.Equal(t, 1, builds)
	assert.Equal(t, "chainkit", g1.name)
}

func TestContainer_Panics(t *testing.T) {
	c := NewContainer()
	assert.Panics(t, func() { c.Get("missing") })

	c.RegisterFactory("a", func(sr ServiceRegistry) any { return sr.Get("a") })
	assert.Panics(t, func() { c.Get("a") }, "cycle")

	c.Register("wrong", 42)
	assert.Panics(t, func() { GetToken(c, NewToken[string]("wrong")) })
}
