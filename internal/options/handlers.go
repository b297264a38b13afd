// Package options holds the configuration aggregates of the server and
// validation components.
//
// Options are built during start-up by the builders and are treated as
// frozen once the component starts serving; nothing here synchronizes
// mutation against concurrent reads.
package options

import (
	"reflect"

	"github.com/project-kessel/oidcforge/internal/handler"
)

// HandlerLists are the two ordered handler collections of a component
type HandlerLists struct {
	// CustomHandlers are registered by the application, in registration order
	CustomHandlers []handler.Descriptor

	// DefaultHandlers are the built-in handlers; they can only be removed
	DefaultHandlers []handler.Descriptor
}

// Remove deletes every descriptor whose service type is serviceType from
// both lists and returns the number of removed entries.
func (l *HandlerLists) Remove(serviceType reflect.Type) int {
	return removeFrom(&l.CustomHandlers, serviceType) + removeFrom(&l.DefaultHandlers, serviceType)
}

// Contains reports whether either list holds serviceType
func (l *HandlerLists) Contains(serviceType reflect.Type) bool {
	for _, list := range [][]handler.Descriptor{l.CustomHandlers, l.DefaultHandlers} {
		for _, d := range list {
			if d.ServiceType == serviceType {
				return true
			}
		}
	}
	return false
}

func removeFrom(list *[]handler.Descriptor, serviceType reflect.Type) int {
	removed := 0
	s := *list
	for i := len(s) - 1; i >= 0; i-- {
		if s[i].ServiceType == serviceType {
			s = append(s[:i], s[i+1:]...)
			removed++
		}
	}
	*list = s
	return removed
}
