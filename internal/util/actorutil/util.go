package actorutil

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/berfenger/evcharge2mqtt/internal/core/domain"
	"github.com/berfenger/evcharge2mqtt/internal/mqtt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/lmittmann/tint"
	"go.uber.org/zap"
)

func PipeToSelfWithRecover(ctx actor.Context, future *actor.Future, mapFn func(error) any) {
	ctx.ReenterAfter(future, func(msg any, err error) {
		if err != nil {
			ctx.Send(ctx.Self(), mapFn(err))
			return
		}
		ctx.Send(ctx.Self(), msg)
	})
}

func NewActorSystemWithZapLogger(logger *zap.Logger) *actor.ActorSystem {
	stdOutLogger := zap.NewStdLog(logger)

	var slogLevel slog.Level = slog.LevelInfo

	switch logger.Level() {
	case zap.DebugLevel:
		slogLevel = slog.LevelDebug
	case zap.InfoLevel:
		slogLevel = slog.LevelInfo
	case zap.WarnLevel:
		slogLevel = slog.LevelWarn
	case zap.ErrorLevel:
		slogLevel = slog.LevelError
	case zap.PanicLevel:
		slogLevel = slog.LevelError
	}

	return actor.NewActorSystem(actor.WithLoggerFactory(func(system *actor.ActorSystem) *slog.Logger {

		// create a new logger
		return slog.New(tint.NewHandler(stdOutLogger.Writer(), &tint.Options{
			Level:      slogLevel,
			TimeFormat: time.DateTime,
		}))
	}))
}

func ActorLogger(actorName string, logger *zap.Logger) *zap.Logger {
	return logger.With(zap.String("actor", actorName))
}

var ErrUnknownCommand = errors.New("unknown command")

// ParsedMQTTCommandToCommand maps an entity command received over MQTT to a charge control request.
func ParsedMQTTCommandToCommand(cmd mqtt.ParsedMQTTCommand) (domain.ChargeControlRequest, error) {
	switch cmd.DeviceId {
	case domain.SWITCH_ID_MANUAL_OVERRIDE:
		return domain.ChargeControlSetManualOverrideRequest{
			Enable: isOnPayload(cmd.Payload),
		}, nil
	case domain.SWITCH_ID_CHARGER_ENABLED:
		return domain.ChargeControlSetChargerEnabledRequest{
			Enable: isOnPayload(cmd.Payload),
		}, nil
	case domain.INPUT_NUMBER_ID_MAX_CURRENT_CAP:
		value, err := strconv.ParseFloat(strings.TrimSpace(cmd.Payload), 64)
		if err != nil {
			return nil, err
		}
		capAmps := int(value)
		if float64(capAmps) != value {
			return nil, fmt.Errorf("max current cap must be an integer: %s", cmd.Payload)
		}
		if err := domain.ValidateMaxCurrentCap(capAmps); err != nil {
			return nil, err
		}
		return domain.ChargeControlSetMaxCurrentCapRequest{
			CapAmps: capAmps,
		}, nil
	case domain.BUTTON_ID_UPDATE_NOW:
		return domain.ChargeControlUpdateNowRequest{}, nil
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrUnknownCommand, cmd.Command, cmd.DeviceId)
}

func isOnPayload(payload string) bool {
	return strings.EqualFold(strings.TrimSpace(payload), mqtt.MQTT_PAYLOAD_ON)
}

// SelfNotifier returns a function that delivers messages to the actor from any
// goroutine, for callbacks of MQTT tokens and event stream subscriptions.
func SelfNotifier(ctx actor.Context) func(msg any) {
	root, self := ctx.ActorSystem().Root, ctx.Self()
	return func(msg any) {
		root.Send(self, msg)
	}
}
