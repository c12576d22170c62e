package services

import (
	"context"
	"time"
)

// Clock abstracts time so strike timestamps and decay can be tested.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func SystemClock() Clock { return systemClock{} }

// Notifier delivers user-facing notices (decay, renewal, tamper warnings).
type Notifier interface {
	Notify(ctx context.Context, msg string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, msg string)

func (f NotifierFunc) Notify(ctx context.Context, msg string) { f(ctx, msg) }

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string) {}
