package radeon

import "errors"

var (
	ErrConfig                 = errors.New("radeon: invalid config")
	ErrUnknownArch            = errors.New("radeon: unknown architecture")
	ErrResourceUnavailable    = errors.New("radeon: resource unavailable")
	ErrUnsupportedConfig      = errors.New("radeon: unsupported configuration")
	ErrUnsupportedPixelFormat = errors.New("radeon: unsupported pixel format")
	ErrPLLOutOfRange          = errors.New("radeon: pixel clock out of PLL range")
	ErrDeviceTimeout          = errors.New("radeon: device timeout")
	ErrPLLUpdateTimeout       = errors.New("radeon: PLL update not acknowledged")
	ErrNotOpen                = errors.New("radeon: device isn't open")
	ErrAlreadyOpen            = errors.New("radeon: device is already open")
)
