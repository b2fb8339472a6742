package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fisherman-publications/fisherman/internal/navigation"
)

func TestRouter(t *testing.T) {
	r := NewRouter(navigation.RouteLogin)
	assert.Equal(t, navigation.RouteLogin, r.Current())
	assert.False(t, r.Back())

	r.Push(navigation.RouteForgotPassword)
	r.Push(navigation.RouteForgotPassword)
	assert.Equal(t, navigation.RouteForgotPassword, r.Current())

	assert.True(t, r.Back())
	assert.Equal(t, navigation.RouteLogin, r.Current())
	assert.False(t, r.Back())
}

func TestRouter_ReplaceDropsHistory(t *testing.T) {
	r := NewRouter(navigation.RouteHome)
	r.Push(navigation.RouteProfile)
	r.Push(navigation.RouteEditProfile)

	r.Replace(navigation.RouteLogin)
	assert.Equal(t, navigation.RouteLogin, r.Current())
	assert.False(t, r.Back())
}

func TestRouterIsNavigator(t *testing.T) {
	var _ navigation.Navigator = NewRouter(navigation.RouteLogin)
}
