package protocol

import (
	"fmt"

	"github.com/zhxie/playwith"
)

const (
	// FlashSize is the size of the controller's SPI flash (512 KiB).
	FlashSize = 0x80000

	// FlashReadMax is the largest chunk a single SPI read may request.
	FlashReadMax = 0x1D
)

// Conventional flash offsets read during the console handshake.
// https://github.com/dekuNukem/Nintendo_Switch_Reverse_Engineering/blob/master/spi_flash_notes.md
const (
	flashSerialNumber       = 0x6000
	flashFactoryConfig      = 0x6020
	flashFactoryStickCal    = 0x603D
	flashBodyColor          = 0x6050
	flashFactorySensorCal   = 0x6080
	flashFactoryStickParams = 0x6098
	flashUserStickCal       = 0x8010
)

// ErrFlashRange rejects SPI reads past the image bounds or over FlashReadMax.
var ErrFlashRange = playwith.NewError(playwith.KindProtocol, "spi flash read out of range")

// FlashImage is the simulated non-volatile memory served by the SPI flash
// read subcommand. It is prepopulated with the factory calibration regions
// the console reads while enumerating a controller.
type FlashImage struct {
	data []byte
}

// NewFlashImage builds an image erased to 0xFF with factory stick
// calibration and body colors written at their conventional offsets. An
// all-0xFF serial number region reads as "no serial number", which the
// console accepts.
func NewFlashImage() *FlashImage {
	data := make([]byte, FlashSize)
	for i := range data {
		data[i] = 0xFF
	}
	f := &FlashImage{data: data}

	// Factory stick calibration, left then right. These agree with the
	// centered stick encodings sent in every input report.
	copy(data[flashFactoryStickCal:], []byte{
		0xBA, 0xF5, 0x62, 0x6F, 0xC8, 0x77, 0xED, 0x95, 0x5B,
		0x16, 0xD8, 0x7D, 0xF2, 0xB5, 0x5F, 0x86, 0x65, 0x5E,
	})

	// Body and button colors (dark gray body, light gray buttons).
	copy(data[flashBodyColor:], []byte{
		0x32, 0x32, 0x32, 0xFF, 0xFF, 0xFF,
	})

	return f
}

// Read serves length bytes starting at offset. Reads past the image bounds
// or longer than FlashReadMax fail outright; partial data is never returned.
func (f *FlashImage) Read(offset uint32, length byte) ([]byte, error) {
	if length > FlashReadMax {
		return nil, fmt.Errorf("%w: length 0x%02X", ErrFlashRange, length)
	}
	end := uint64(offset) + uint64(length)
	if end > uint64(len(f.data)) {
		return nil, fmt.Errorf("%w: offset 0x%X length 0x%02X", ErrFlashRange, offset, length)
	}
	return append([]byte(nil), f.data[offset:end]...), nil
}

// Write stores data at offset. It exists so tests and future subcommands
// (SPI flash write, 0x11) can modify the image under the same bounds rules.
func (f *FlashImage) Write(offset uint32, data []byte) error {
	end := uint64(offset) + uint64(len(data))
	if len(data) > FlashReadMax || end > uint64(len(f.data)) {
		return fmt.Errorf("%w: offset 0x%X length 0x%02X", ErrFlashRange, offset, len(data))
	}
	copy(f.data[offset:], data)
	return nil
}
