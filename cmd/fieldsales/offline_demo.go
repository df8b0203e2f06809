//go:build demo

package main

import (
	"github.com/utafrali/fieldsales/internal/session"
	"github.com/utafrali/fieldsales/internal/session/demo"
)

// offlineStrategy enables the demo accounts when the backend is down.
func offlineStrategy() session.OfflineStrategy {
	return demo.New()
}
