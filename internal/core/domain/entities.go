package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE          = "bridge"
	SENSOR_ID_CHARGING_ALLOWED      = "charging_allowed"
	SENSOR_ID_MAX_CHARGING_CURRENT  = "max_charging_current"
	SENSOR_ID_CHARGE_CONTROL_REASON = "charge_control_reason"
	SENSOR_ID_APPLIED_CURRENT       = "applied_current"
	SENSOR_ID_INSTANTANEOUS_POWER   = "instantaneous_power"
	SENSOR_ID_HOUSEHOLD_POWER       = "household_power"
	SENSOR_ID_AVAILABLE_POWER       = "available_power"
	SENSOR_ID_AVG_POWER_30S         = "avg_power_30s"
	SWITCH_ID_MANUAL_OVERRIDE       = "manual_override"
	SWITCH_ID_CHARGER_ENABLED       = "charger_enabled"
	INPUT_NUMBER_ID_MAX_CURRENT_CAP = "max_current_cap"
	BUTTON_ID_UPDATE_NOW            = "update_now"
	STATE_CLASS_MEASUREMENT         = "measurement"
	DEVICE_CLASS_CURRENT            = "current"
	DEVICE_CLASS_POWER              = "power"
	DEVICE_CLASS_CONNECTIVITY       = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC         = "diagnostic"
	ENTITY_CLASS_CONFIG             = "config"
	SENSOR_TYPE_SENSOR              = "sensor"
	SENSOR_TYPE_BINARY              = "binary_sensor"
	INPUT_NUMBER_MODE_BOX           = "box"
	INPUT_NUMBER_MODE_SLIDER        = "slider"
)

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("evcharge_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "ACasal",
		Model:        "EVCharge2MQTT",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("EV Charge Control %s", md5HashShort(baseTopic)),
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {
	return []GenericSensor{
		{
			Entity:         NewEntity(bridgeDevice, SENSOR_ID_BRIDGE_STATE, "Connection state", ""),
			SensorType:     SENSOR_TYPE_BINARY,
			DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
			EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		},
	}
}

func ChargeControlSensors(device Device) []GenericSensor {
	sensors := []GenericSensor{
		{
			Entity:     NewEntity(device, SENSOR_ID_CHARGING_ALLOWED, "Charging allowed", "mdi:ev-station"),
			SensorType: SENSOR_TYPE_BINARY,
		},
		{
			Entity:            NewEntity(device, SENSOR_ID_MAX_CHARGING_CURRENT, "Max charging current", "mdi:current-ac"),
			SensorType:        SENSOR_TYPE_SENSOR,
			StateClass:        STATE_CLASS_MEASUREMENT,
			DeviceClass:       DEVICE_CLASS_CURRENT,
			UnitOfMeasurement: "A",
		},
		{
			Entity:     NewEntity(device, SENSOR_ID_CHARGE_CONTROL_REASON, "Charge control reason", "mdi:information-outline"),
			SensorType: SENSOR_TYPE_SENSOR,
		},
	}

	diagnostic := []struct {
		id   string
		name string
		unit string
		dc   string
	}{
		{SENSOR_ID_APPLIED_CURRENT, "Applied charging current", "A", DEVICE_CLASS_CURRENT},
		{SENSOR_ID_INSTANTANEOUS_POWER, "Instantaneous power", "W", DEVICE_CLASS_POWER},
		{SENSOR_ID_HOUSEHOLD_POWER, "Household power", "W", DEVICE_CLASS_POWER},
		{SENSOR_ID_AVAILABLE_POWER, "Available power", "W", DEVICE_CLASS_POWER},
		{SENSOR_ID_AVG_POWER_30S, "Average power 30s", "W", DEVICE_CLASS_POWER},
	}
	for _, d := range diagnostic {
		sensors = append(sensors, GenericSensor{
			Entity:            NewEntity(IdDevice(device), d.id, d.name, ""),
			SensorType:        SENSOR_TYPE_SENSOR,
			StateClass:        STATE_CLASS_MEASUREMENT,
			DeviceClass:       d.dc,
			UnitOfMeasurement: d.unit,
			EntityCategory:    ENTITY_CLASS_DIAGNOSTIC,
		})
	}

	return sensors
}

func ChargeControlSwitches(device Device) []GenericSwitch {
	return []GenericSwitch{
		{NewEntity(IdDevice(device), SWITCH_ID_MANUAL_OVERRIDE, "Manual override", "mdi:hand-back-right")},
		{NewEntity(IdDevice(device), SWITCH_ID_CHARGER_ENABLED, "Allow charging", "mdi:power")},
	}
}

func ChargeControlInputNumbers(device Device) []GenericInputNumber {
	return []GenericInputNumber{
		{
			Entity:            NewEntity(IdDevice(device), INPUT_NUMBER_ID_MAX_CURRENT_CAP, "Max charging current cap", "mdi:speedometer"),
			UnitOfMeasurement: "A",
			Min:               MIN_CURRENT_AMPS,
			Max:               MAX_CURRENT_AMPS,
			Step:              1,
			Mode:              INPUT_NUMBER_MODE_SLIDER,
			InitialValue:      DEFAULT_MAX_CURRENT_CAP_AMPS,
		},
	}
}

func ChargeControlButtons(device Device) []GenericButton {
	return []GenericButton{
		{NewEntity(IdDevice(device), BUTTON_ID_UPDATE_NOW, "Update charger now", "mdi:refresh")},
	}
}

func uniqueId(deviceId, sensorId string) string {
	return fmt.Sprintf("%s_%s", deviceId, sensorId)
}

func md5HashShort(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])[0:6]
}
