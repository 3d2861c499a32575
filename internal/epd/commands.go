package epd

// Controller command codes.
const (
	cmdDriverOutputControl     = 0x01
	cmdBoosterSoftStartControl = 0x0C
	cmdDeepSleepMode           = 0x10
	cmdDataEntryModeSetting    = 0x11
	cmdSWReset                 = 0x12
	cmdMasterActivation        = 0x20
	cmdDisplayUpdateControl2   = 0x22
	cmdWriteRAM                = 0x24
	cmdWriteVCOMRegister       = 0x2C
	cmdWriteLUTRegister        = 0x32
	cmdSetDummyLinePeriod      = 0x3A
	cmdSetGateTime             = 0x3B
	cmdSetRAMXAddressStartEnd  = 0x44
	cmdSetRAMYAddressStartEnd  = 0x45
	cmdSetRAMXAddressCounter   = 0x4E
	cmdSetRAMYAddressCounter   = 0x4F
	cmdTerminateFrameReadWrite = 0xFF
)

// Command payloads.
const (
	boosterSoftStartA = 0xD7
	boosterSoftStartB = 0xD6
	boosterSoftStartC = 0x9D
	vcomValue         = 0xA8
	dummyLinePeriod   = 0x1A // 4 dummy lines per gate
	gateTime          = 0x08 // 2us per line
	dataEntryXYInc    = 0x03 // X increment, Y increment
	updateSequence    = 0xC4 // enable clock, enable analog, display
	deepSleepEnter    = 0x01
)

// LUT is a 30-byte waveform table.
type LUT [30]byte

// Waveform tables. Selected per refresh, never mutated.
var (
	lutFullUpdate = LUT{
		0x02, 0x02, 0x01, 0x11, 0x12, 0x12, 0x22, 0x22,
		0x66, 0x69, 0x69, 0x59, 0x58, 0x99, 0x99, 0x88,
		0x00, 0x00, 0x00, 0x00, 0xF8, 0xB4, 0x13, 0x51,
		0x35, 0x51, 0x51, 0x19, 0x01, 0x00,
	}

	lutPartialUpdate = LUT{
		0x10, 0x18, 0x18, 0x08, 0x18, 0x18, 0x08, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x13, 0x14, 0x44, 0x12,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}
)

