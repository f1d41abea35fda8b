// Package handlers contains the update handlers behind the router.
package handlers

import (
	tele "gopkg.in/telebot.v3"
)

// Handler processes bot commands and messages.
type Handler func(c tele.Context) error

// CallbackHandler processes inline callback events.
type CallbackHandler func(c tele.Context) error

// Middleware wraps handlers with additional behavior.
type Middleware func(Handler) Handler
