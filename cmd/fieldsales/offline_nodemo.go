//go:build !demo

package main

import "github.com/utafrali/fieldsales/internal/session"

func offlineStrategy() session.OfflineStrategy { return nil }
