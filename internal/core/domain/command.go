package domain

import "fmt"

// ChargeControlRequest

type ChargeControlRequest interface {
	ActorRequest
	ChargeControlCommand() string
}

type ChargeControlRequestMixIn struct {
	ActorRequestMixIn
}

func (r ChargeControlRequestMixIn) ChargeControlCommand() string {
	return fmt.Sprintf("%T", r)
}

// ChargeControl commands

type ChargeControlTickRequest struct {
	ChargeControlRequestMixIn
}

type ChargeControlUpdateNowRequest struct {
	ChargeControlRequestMixIn
}

type ChargeControlUpdateNowResponse struct {
	ActorResponseMixIn
	Result TickResult
}

type ChargeControlSetManualOverrideRequest struct {
	ChargeControlRequestMixIn
	Enable bool
}

type ChargeControlSetChargerEnabledRequest struct {
	ChargeControlRequestMixIn
	Enable bool
}

type ChargeControlSetMaxCurrentCapRequest struct {
	ChargeControlRequestMixIn
	CapAmps int
}

type ChargeControlGetStatusRequest struct {
	ChargeControlRequestMixIn
}

type ChargeControlGetStatusResponse struct {
	ActorResponseMixIn
	Status ChargeControlStatus
}

// ensure interface compliance
var _ ChargeControlRequest = (*ChargeControlTickRequest)(nil)
var _ ChargeControlRequest = (*ChargeControlUpdateNowRequest)(nil)
var _ ChargeControlRequest = (*ChargeControlSetMaxCurrentCapRequest)(nil)

// ChargeControlPublishStatusRequest asks the controller to republish every entity state.
type ChargeControlPublishStatusRequest struct {
	ChargeControlRequestMixIn
}
