package config

import (
	"errors"
	"fmt"
	"strings"
)

var supportedBaudRates = map[int]struct{}{
	1200: {}, 2400: {}, 4800: {}, 9600: {}, 19200: {}, 38400: {}, 57600: {}, 115200: {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSerial(); err != nil {
		return err
	}
	if err := c.validateScale(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateCamera(); err != nil {
		return err
	}
	if c.Web.PerPage <= 0 {
		return errors.New("web.per_page must be positive")
	}
	return nil
}

func (c *Config) validateSerial() error {
	if strings.TrimSpace(c.Serial.Device) == "" {
		return errors.New("serial.device must be set")
	}
	if _, ok := supportedBaudRates[c.Serial.BaudRate]; !ok {
		return fmt.Errorf("serial.baud_rate %d is not supported", c.Serial.BaudRate)
	}
	if c.Serial.DataBits < 5 || c.Serial.DataBits > 8 {
		return errors.New("serial.data_bits must be between 5 and 8")
	}
	if c.Serial.StopBits != 1 && c.Serial.StopBits != 2 {
		return errors.New("serial.stop_bits must be 1 or 2")
	}
	switch c.Serial.Parity {
	case "none", "even", "odd":
	default:
		return fmt.Errorf("serial.parity %q must be none, even, or odd", c.Serial.Parity)
	}
	return nil
}

func (c *Config) validateScale() error {
	if c.Scale.Offset < 0 {
		return errors.New("scale.offset must be >= 0")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Driver {
	case StorageSQLite:
		if strings.TrimSpace(c.Storage.Path) == "" {
			return errors.New("storage.path must be set when storage.driver is sqlite")
		}
	case StoragePostgres:
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return errors.New("storage.dsn must be set when storage.driver is postgres (or set WEIGHSTATION_POSTGRES_DSN)")
		}
	default:
		return fmt.Errorf("storage.driver %q must be sqlite or postgres", c.Storage.Driver)
	}
	return nil
}

func (c *Config) validateCamera() error {
	if !c.CameraEnabled() {
		return nil
	}
	if !strings.HasPrefix(strings.ToLower(c.Camera.RTSPURL), "rtsp://") && !strings.HasPrefix(strings.ToLower(c.Camera.RTSPURL), "rtsps://") {
		return errors.New("camera.rtsp_url must start with rtsp:// or rtsps://")
	}
	if c.Camera.TimeoutSeconds <= 0 {
		return errors.New("camera.timeout_seconds must be positive")
	}
	return nil
}
