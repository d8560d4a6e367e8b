package domain

// Device groups entities in Home Assistant.
type Device struct {
	Id           string
	Name         string
	Version      string
	Model        string
	Manufacturer string
	ViaDevice    string
}

// Entity holds what every published entity has in common.
type Entity struct {
	Device   Device
	Id       string
	Name     string
	UniqueId string
	Icon     string
}

func NewEntity(device Device, id, name, icon string) Entity {
	return Entity{
		Device:   device,
		Id:       id,
		Name:     name,
		UniqueId: uniqueId(device.Id, id),
		Icon:     icon,
	}
}

type GenericSensor struct {
	Entity
	SensorType        string
	UnitOfMeasurement string
	StateClass        string // measurement
	DeviceClass       string // current, power, connectivity
	EntityCategory    string // diagnostic, config or empty
	EnabledByDefault  *bool
}

type GenericSwitch struct {
	Entity
}

type GenericInputNumber struct {
	Entity
	UnitOfMeasurement string
	Max               float64
	Min               float64
	Step              float64
	Mode              string
	InitialValue      float64
}

type GenericButton struct {
	Entity
}
