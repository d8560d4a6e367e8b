package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "github.com/berfenger/evcharge2mqtt/internal/adapter/actor"
	"github.com/berfenger/evcharge2mqtt/internal/adapter/charger"
	"github.com/berfenger/evcharge2mqtt/internal/adapter/sensor"
	"github.com/berfenger/evcharge2mqtt/internal/config"
	"github.com/berfenger/evcharge2mqtt/internal/core/actor"
	"github.com/berfenger/evcharge2mqtt/internal/core/service"
	"github.com/berfenger/evcharge2mqtt/internal/metrics"
	"github.com/berfenger/evcharge2mqtt/internal/mqtt"
	"github.com/berfenger/evcharge2mqtt/internal/server"
	"github.com/berfenger/evcharge2mqtt/internal/util/actorutil"
	"github.com/berfenger/evcharge2mqtt/pkg/sunspec_modbus"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/benbjohnson/clock"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	bridgeConnectTimeout = 10 * time.Second
	meterMaxAge          = 1 * time.Second
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		os.Exit(1)
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	clk := clock.New()
	metrics.Init()

	// sensor states and charger commands travel over their own connection
	stateCache := sensor.NewMQTTStateCache(clk, logger)
	var bridge *mqtt.MQTTClient
	bridge = mqtt.CreateMQTTClient(cfg, mqtt.BridgeOptsFromConfig(cfg), func(_ pahomqtt.Client) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), bridgeConnectTimeout)
			defer cancel()
			if err := stateCache.SubscribeAll(ctx, bridge); err != nil {
				logger.Error("could not subscribe to sensor topics", zap.Error(err))
			}
		}()
	}, func(_ pahomqtt.Client, err error) {
		logger.Warn("sensor bridge connection lost", zap.Error(err))
	})

	orchestrator, meter, err := buildOrchestrator(cfg, clk, stateCache, bridge, logger)
	if err != nil {
		logger.Error("could not set up charge control", zap.Error(err))
		os.Exit(1)
	}
	if meter != nil {
		defer meter.Close()
	}

	bridge.Connect(func(err error) {
		if err != nil {
			logger.Warn("sensor bridge not connected yet, retrying in background", zap.Error(err))
		}
	}, bridgeConnectTimeout)

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, mqttActorProvider(cfg, logger),
			chargeControlActorProvider(orchestrator, bridge.IsConnected, logger), logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		logger.Error("could not spawn master actor", zap.Error(err))
		return
	}

	server := server.NewServer(*cfg, ctx, pid)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()
	bridge.Disconnect(time.Second)
}

func buildOrchestrator(cfg *config.Config, clk clock.Clock, stateCache *sensor.MQTTStateCache,
	bridge *mqtt.MQTTClient, logger *zap.Logger) (*service.ChargeControlOrchestrator, *sensor.ModbusMeter, error) {

	var meter *sensor.ModbusMeter
	if cfg.MeterModbusTcp.Enabled() {
		reader, err := sunspec_modbus.CreateACMeterIntSFModbusReader(cfg.MeterModbusTcp.Host,
			cfg.MeterModbusTcp.Port, uint8(cfg.MeterModbusTcp.MeterId),
			time.Duration(cfg.MeterModbusTcp.TimeoutMillis)*time.Millisecond,
			cfg.MeterModbusTcp.IgnoreFronius, logger, nil)
		if err != nil {
			return nil, nil, err
		}
		meter = sensor.NewModbusMeter(reader, meterMaxAge, clk, logger)
	}

	sensors, err := sensor.NewSensorSet(cfg, sensor.Deps{
		Clock:      clk,
		StateCache: stateCache,
		Meter:      meter,
	})
	if err != nil {
		return nil, nil, err
	}

	settings, err := cfg.ControlSettings()
	if err != nil {
		return nil, nil, err
	}

	sw, sel := charger.NewFromConfig(cfg.Charger, bridge, logger)
	orchestrator, err := service.NewChargeControlOrchestrator(service.OrchestratorOptions{
		Sensors:       sensors,
		Switch:        sw,
		CurrentSelect: sel,
		Settings:      settings,
		Flags:         cfg.ControlFlags(),
		Clock:         clk,
		Logger:        logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return orchestrator, meter, nil
}

func initConfig() (*config.Config, error) {

	// alias PORT => EVCHARGE_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("EVCHARGE_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("evcharge")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

func chargeControlActorProvider(orchestrator *service.ChargeControlOrchestrator, ioHealthy func() bool,
	logger *zap.Logger) actor.ChargeControlActorProvider {
	return func(es *eventstream.EventStream) *actor.ChargeControlActor {
		return actor.NewChargeControlActor(orchestrator, es, ioHealthy, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "evcharge")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("meter_modbus_tcp.port", 502)
	viper.SetDefault("meter_modbus_tcp.meter_id", 200)
	viper.SetDefault("meter_modbus_tcp.ignore_fronius", false)
	viper.SetDefault("meter_modbus_tcp.timeout_millis", 1000)
	viper.SetDefault("sensors.stale_after_seconds", 0)
	viper.SetDefault("charger.switch.payload_on", mqtt.MQTT_PAYLOAD_ON)
	viper.SetDefault("charger.switch.payload_off", mqtt.MQTT_PAYLOAD_OFF)
	viper.SetDefault("charger.command_timeout_millis", 5000)
	viper.SetDefault("charge_control.update_interval_seconds", 10)
	viper.SetDefault("charge_control.max_current_cap", 32)
	viper.SetDefault("charge_control.manual_override", false)
	viper.SetDefault("charge_control.charger_enabled", true)
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
