package domain

import "strconv"

const (
	PAYLOAD_ON  = "on"
	PAYLOAD_OFF = "off"
)

type SensorUpdateEventMixIn struct {
	Id string
}

// SensorUpdateEvent is the new state of one published entity.
type SensorUpdateEvent interface {
	SensorId() string
	// Payload is the entity state as published on its state topic.
	Payload() string
}

func (e SensorUpdateEventMixIn) SensorId() string {
	return e.Id
}

type FloatSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value    float64
	Decimals uint
}

func NewFloatSensorUpdate(id string, value float64, decimals uint) FloatSensorUpdateEvent {
	return FloatSensorUpdateEvent{SensorUpdateEventMixIn{Id: id}, value, decimals}
}

func (e FloatSensorUpdateEvent) Payload() string {
	return strconv.FormatFloat(e.Value, 'f', int(e.Decimals), 64)
}

type BinarySensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

func NewBinarySensorUpdate(id string, value bool) BinarySensorUpdateEvent {
	return BinarySensorUpdateEvent{SensorUpdateEventMixIn{Id: id}, value}
}

func (e BinarySensorUpdateEvent) Payload() string {
	return onOff(e.Value)
}

type SwitchSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

func NewSwitchUpdate(id string, value bool) SwitchSensorUpdateEvent {
	return SwitchSensorUpdateEvent{SensorUpdateEventMixIn{Id: id}, value}
}

func (e SwitchSensorUpdateEvent) Payload() string {
	return onOff(e.Value)
}

type TextSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value string
}

func NewTextSensorUpdate(id string, value string) TextSensorUpdateEvent {
	return TextSensorUpdateEvent{SensorUpdateEventMixIn{Id: id}, value}
}

func (e TextSensorUpdateEvent) Payload() string {
	return e.Value
}

type InputNumberSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value    float64
	Decimals uint
}

func NewInputNumberUpdate(id string, value float64, decimals uint) InputNumberSensorUpdateEvent {
	return InputNumberSensorUpdateEvent{SensorUpdateEventMixIn{Id: id}, value, decimals}
}

func (e InputNumberSensorUpdateEvent) Payload() string {
	return strconv.FormatFloat(e.Value, 'f', int(e.Decimals), 64)
}

func onOff(v bool) string {
	if v {
		return PAYLOAD_ON
	}
	return PAYLOAD_OFF
}
