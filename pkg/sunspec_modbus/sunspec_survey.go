package sunspec_modbus

import (
	"errors"

	"github.com/simonvetter/modbus"
)

const (
	SUNSPEC_WK_COMMON      = 1
	SUNSPEC_WK_ACMETER_MIN = 201
	SUNSPEC_WK_ACMETER_MAX = 204
	SUNSPEC_BASE_ADDRESS   = 40000
	SUNSPEC_MAX_BLOCKS     = 10
	SUNSPEC_END_BLOCK      = 0xFFFF
)

// "SunS" as two big endian registers
var sunspecMarker = [2]uint16{0x5375, 0x6e53}

var (
	ErrNotSunSpec     = errors.New("could not find a SunSpec device")
	ErrBlocksNotFound = errors.New("could not find all required sunspec blocks (common, ac_meter)")
)

type registerReader interface {
	ReadRegisters(addr uint16, quantity uint16, regType modbus.RegType) ([]uint16, error)
}

type modbusBlock struct {
	id       uint16
	baseAddr uint16
	length   uint16
}

func (block *modbusBlock) isEndBlock() bool {
	return block.id == SUNSPEC_END_BLOCK
}

func (block *modbusBlock) isACMeter() bool {
	return block.id >= SUNSPEC_WK_ACMETER_MIN && block.id <= SUNSPEC_WK_ACMETER_MAX
}

// sunspecBlocks holds the base address of each model block used by the meter reader.
type sunspecBlocks struct {
	common       uint16
	acMeter      uint16
	acMeterModel uint16
}

func (b sunspecBlocks) complete() bool {
	return b.common > 0 && b.acMeter > 0
}

func readBlockHeader(r registerReader, baseAddr uint16) (*modbusBlock, error) {
	header, err := r.ReadRegisters(baseAddr, 2, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}
	return &modbusBlock{
		id:       header[0],
		length:   header[1],
		baseAddr: baseAddr,
	}, nil
}

// surveyBlocks walks the SunSpec model chain until the common and AC meter
// blocks are found.
func surveyBlocks(r registerReader) (sunspecBlocks, error) {
	var blocks sunspecBlocks
	marker, err := r.ReadRegisters(SUNSPEC_BASE_ADDRESS, 2, modbus.HOLDING_REGISTER)
	if err != nil {
		return blocks, err
	}
	if marker[0] != sunspecMarker[0] || marker[1] != sunspecMarker[1] {
		return blocks, ErrNotSunSpec
	}

	var addr uint16 = SUNSPEC_BASE_ADDRESS + 2
	for n := 0; n < SUNSPEC_MAX_BLOCKS && !blocks.complete(); n++ {
		block, err := readBlockHeader(r, addr)
		if err != nil {
			return blocks, err
		}
		if block.isEndBlock() {
			break
		}
		switch {
		case block.id == SUNSPEC_WK_COMMON:
			blocks.common = block.baseAddr
		case block.isACMeter():
			blocks.acMeter = block.baseAddr
			blocks.acMeterModel = block.id
		}
		addr += block.length + 2
	}
	if !blocks.complete() {
		return blocks, ErrBlocksNotFound
	}
	return blocks, nil
}
