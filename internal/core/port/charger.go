package port

import "context"

type ChargerSwitch interface {
	SetSwitch(ctx context.Context, on bool) error
}

type ChargerCurrentSelect interface {
	SetOption(ctx context.Context, option string) error
}
