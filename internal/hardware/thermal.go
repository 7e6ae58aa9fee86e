package hardware

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultThermalPath is the Raspberry Pi SoC thermal zone.
const DefaultThermalPath = "/sys/class/thermal/thermal_zone0/temp"

// ReadCPUTemperature reads a sysfs thermal zone (millidegrees Celsius).
func ReadCPUTemperature(path string) (float64, error) {
	if path == "" {
		path = DefaultThermalPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read thermal zone: %w", err)
	}
	milli, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse thermal zone %q: %w", path, err)
	}
	return float64(milli) / 1000, nil
}
